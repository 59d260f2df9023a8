package experiments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/samuelfneumann/rllaunch/algo"
	"github.com/samuelfneumann/rllaunch/bonus"
	"github.com/samuelfneumann/rllaunch/environment/atari"
	"github.com/samuelfneumann/rllaunch/environment/atari/ataritest"
	"github.com/samuelfneumann/rllaunch/environment/envconfig"
	"github.com/samuelfneumann/rllaunch/experiment/tracker"
	"github.com/samuelfneumann/rllaunch/launch"
	"github.com/zclconf/go-cty/cty"
)

const launchFile = `
experiment "pong-sweep" {
  prefix     = "sweeps/pong"
  batch_size = 2000
  n_itr      = 10

  env {
    game     = "pong"
    obs_type = "ram"
  }

  placement {
    instance = "c4.xlarge"
    subnet   = "us-west-1b"
  }

  variant "seed" {
    values = [1, 2]
  }

  variant "step_size" {
    values = [0.01, 0.05]
  }

  variant "note" {
    values = ["a"]
    hidden = true
  }
}

experiment "venture-bonus" {
  algorithm = "BonusTRPO"

  env {
    game     = "venture"
    obs_type = "ram"
  }

  bonus {
    count_target = "ram_states"
    dim_key      = 64
    bucket_sizes = [999999937, 999999929]
    bonus_coeff  = 0.01
  }

  variant "dim_key" {
    values = [32, 128]
  }
}
`

func writeLaunchFile(t *testing.T, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "launch.hcl")
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	return filename
}

func TestParseLaunchFile(t *testing.T) {
	f, err := ParseLaunchFile(writeLaunchFile(t, launchFile))
	if err != nil {
		t.Fatalf("parseLaunchFile: %v", err)
	}
	if len(f.Experiments) != 2 {
		t.Fatalf("experiments: got %v, want 2", len(f.Experiments))
	}

	want := placement{instanceType: "c4.xlarge", subnet: "us-west-1b"}
	if got := f.placement(); got != want {
		t.Errorf("placement: got %+v, want %+v", got, want)
	}

	jobs, err := f.Jobs("local", now, defaultSettings(t, ""))
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	if len(jobs) != 6 {
		t.Fatalf("jobs: got %v, want 6", len(jobs))
	}

	seeds := make(map[int]bool)
	steps := make(map[float64]bool)
	for _, job := range jobs[:4] {
		if err := job.Validate(launch.Local); err != nil {
			t.Errorf("validate: %v", err)
		}
		if job.ExpPrefix != "sweeps/pong" {
			t.Errorf("prefix: got %v, want sweeps/pong", job.ExpPrefix)
		}
		if !strings.HasPrefix(job.ExpName, "pong-sweep_"+launch.TimeStamp(now)) {
			t.Errorf("name: got %v", job.ExpName)
		}
		trpo, ok := job.Algo.Node.(algo.TRPO)
		if !ok {
			t.Fatalf("algorithm: got %T, want algo.TRPO", job.Algo.Node)
		}
		if job.Seed != job.Variant.Int("seed") {
			t.Errorf("seed: got %v, want %v", job.Seed, job.Variant.Int("seed"))
		}
		if trpo.StepSize != job.Variant.Float("step_size") {
			t.Errorf("step size: got %v, want %v", trpo.StepSize,
				job.Variant.Float("step_size"))
		}
		if trpo.BatchSize != 2000 || trpo.NItr != 10 {
			t.Errorf("batch: got %v/%v, want 2000/10", trpo.BatchSize,
				trpo.NItr)
		}
		seeds[job.Seed] = true
		steps[trpo.StepSize] = true
	}
	if len(seeds) != 2 || len(steps) != 2 {
		t.Errorf("variants: got seeds %v and step sizes %v", seeds, steps)
	}

	for _, job := range jobs[4:] {
		if err := job.Validate(launch.Local); err != nil {
			t.Errorf("validate: %v", err)
		}
		if job.Algo.Type != algo.BonusTRPOType {
			t.Errorf("algorithm: got %v, want %v", job.Algo.Type,
				algo.BonusTRPOType)
		}
		a := job.Algo.Node.(algo.BonusTRPO)
		if !a.Env.Atari.RecordRAM {
			t.Error("env: RAM counts must record RAM")
		}
		h := a.Bonus.BonusEvaluator.Node.(algo.ALEHashing)
		if h.Hash.DimKey != job.Variant.Int("dim_key") {
			t.Errorf("dim key: got %v, want %v", h.Hash.DimKey,
				job.Variant.Int("dim_key"))
		}
	}
}

func TestParseLaunchFileErrors(t *testing.T) {
	tests := map[string]string{
		"empty":  ``,
		"syntax": `experiment "a" {`,
		"unknown attribute": `experiment "a" {
  colour = "red"
}`,
	}

	for name, content := range tests {
		if _, err := ParseLaunchFile(writeLaunchFile(t, content)); err == nil {
			t.Errorf("%v: expected error", name)
		}
	}
}

func TestLaunchFileJobsErrors(t *testing.T) {
	tests := map[string]string{
		"duplicate variant": `experiment "a" {
  env {
    game = "pong"
  }
  variant "seed" {
    values = [1]
  }
  variant "seed" {
    values = [2]
  }
}`,
		"missing game": `experiment "a" {
  env {
    obs_type = "ram"
  }
}`,
		"bonus without block": `experiment "a" {
  algorithm = "BonusTRPO"
  env {
    game = "pong"
  }
}`,
		"unknown policy": `experiment "a" {
  policy = "lstm"
  env {
    game = "pong"
  }
}`,
	}

	for name, content := range tests {
		f, err := ParseLaunchFile(writeLaunchFile(t, content))
		if err != nil {
			t.Fatalf("%v: parseLaunchFile: %v", name, err)
		}
		if _, err := f.Jobs("local", now, defaultSettings(t, "")); err == nil {
			t.Errorf("%v: expected error", name)
		}
	}
}

func TestCtyValues(t *testing.T) {
	got, err := ctyValues(cty.TupleVal([]cty.Value{
		cty.NumberIntVal(3),
		cty.NumberFloatVal(0.5),
		cty.StringVal("pong"),
		cty.True,
	}))
	if err != nil {
		t.Fatalf("ctyValues: %v", err)
	}
	want := []interface{}{3, 0.5, "pong", true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ctyValues (-want +got):\n%v", diff)
	}

	if _, err := ctyValues(cty.StringVal("pong")); err == nil {
		t.Error("ctyValues: expected error for a string")
	}
	if _, err := ctyValues(cty.TupleVal([]cty.Value{
		cty.ListValEmpty(cty.Number),
	})); err == nil {
		t.Error("ctyValues: expected error for a nested list")
	}
}

func TestCheckGames(t *testing.T) {
	dir := t.TempDir()
	if _, err := ataritest.WriteROM(dir, "pong"); err != nil {
		t.Fatalf("writeROM: %v", err)
	}

	missing := CheckGames(dir, []string{"pong", "venture"})
	if len(missing) != 1 {
		t.Fatalf("checkGames: got %v missing, want 1", len(missing))
	}
	if err := missing["venture"]; !errors.Is(err, atari.ErrGameNotFound) {
		t.Errorf("venture: got %v, want ErrGameNotFound", err)
	}
}

func TestCheckGamesCommand(t *testing.T) {
	dir := t.TempDir()
	ataritest.WriteROM(dir, "pong")

	var out bytes.Buffer
	cmd := GetRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check-games", "--rom-dir", dir, "pong", "venture"})
	err := cmd.Execute()
	if !errors.Is(err, atari.ErrGameNotFound) {
		t.Errorf("execute: got %v, want ErrGameNotFound", err)
	}
	if !strings.Contains(out.String(), "pong\tok") ||
		!strings.Contains(out.String(), "venture\tmissing") {
		t.Errorf("output: got %q", out.String())
	}
}

func TestProbe(t *testing.T) {
	c := ProbeConfig{
		Game:          "pong",
		ObsType:       atari.RAM,
		Target:        bonus.RAMStates,
		Iterations:    3,
		BatchSize:     50,
		MaxPathLength: 100,
		DimKey:        16,
		Fake:          true,
		Dir:           t.TempDir(),
		Seed:          1,
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if err := Probe(context.Background(), c, logger); err != nil {
		t.Fatalf("probe: %v", err)
	}

	coverage, err := tracker.LoadData(filepath.Join(c.Dir, CoverageFile))
	if err != nil {
		t.Fatalf("loadData: %v", err)
	}
	if len(coverage) != c.Iterations {
		t.Fatalf("coverage: got %v iterations, want %v", len(coverage),
			c.Iterations)
	}
	for i := 1; i < len(coverage); i++ {
		if coverage[i] < coverage[i-1] {
			t.Errorf("coverage: decreased from %v to %v", coverage[i-1],
				coverage[i])
		}
	}
	if coverage[0] < 1 {
		t.Errorf("coverage: got %v distinct states, want at least 1",
			coverage[0])
	}

	for _, file := range []string{ReturnsFile, LengthsFile} {
		if _, err := os.Stat(filepath.Join(c.Dir, file)); err != nil {
			t.Errorf("%v: %v", file, err)
		}
	}
}

func TestItemDim(t *testing.T) {
	c := atari.NewConfig("pong", atari.RAM)
	if got, _ := itemDim(c, bonus.RAMStates); got != atariRAMSize {
		t.Errorf("ram states: got %v, want %v", got, atariRAMSize)
	}
	if got, _ := itemDim(c, bonus.Observations); got != c.ObservationLen(atariRAMSize) {
		t.Errorf("observations: got %v, want %v", got,
			c.ObservationLen(atariRAMSize))
	}
	if _, err := itemDim(c, "pixels"); err == nil {
		t.Error("itemDim: expected error for unknown target")
	}
}

func TestPlot(t *testing.T) {
	dirs := []string{t.TempDir(), t.TempDir()}
	for i, dir := range dirs {
		data := []float64{1, 2, 3, float64(i)}
		if err := tracker.SaveData(filepath.Join(dir, ReturnsFile), data); err != nil {
			t.Fatalf("saveData: %v", err)
		}
	}
	tracker.SaveData(filepath.Join(dirs[0], CoverageFile), []float64{4, 8})

	out := t.TempDir()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if err := Plot(dirs, out, 2, logger); err != nil {
		t.Fatalf("plot: %v", err)
	}
	for _, file := range []string{"returns.png", "coverage.png"} {
		if _, err := os.Stat(filepath.Join(out, file)); err != nil {
			t.Errorf("%v: %v", file, err)
		}
	}
}

func TestSmooth(t *testing.T) {
	got := smooth([]float64{2, 4, 6, 8}, 2)
	want := []float64{2, 3, 5, 7}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("smooth (-want +got):\n%v", diff)
	}
}

func TestLogin(t *testing.T) {
	got := Login("1.2.3.4", "rllab-us-west-1", "private/key_pairs")
	want := []string{"ssh", "ubuntu@1.2.3.4", "-i",
		"private/key_pairs/rllab-us-west-1.pem", "-o", "IdentitiesOnly yes"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("login (-want +got):\n%v", diff)
	}

	tests := []struct {
		pem, bucket, want string
	}{
		{"", "hrtang0", "rllab-us-west-1"},
		{"", "rllab-hrtang", "hrtang-us-west-1"},
		{"mine", "hrtang0", "mine"},
	}
	for _, test := range tests {
		key, err := keyPair(test.pem, test.bucket)
		if err != nil || key != test.want {
			t.Errorf("keyPair(%q, %q): got %v, %v, want %v", test.pem,
				test.bucket, key, err, test.want)
		}
	}
	if _, err := keyPair("", "unknown"); err == nil {
		t.Error("keyPair: expected error for unknown bucket")
	}
}

func TestLoginCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := GetRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"login", "10.0.0.1", "--pem", "key"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := "ssh ubuntu@10.0.0.1 -i private/key_pairs/key.pem -o IdentitiesOnly yes\n"
	if out.String() != want {
		t.Errorf("output: got %q, want %q", out.String(), want)
	}
}

func TestLoadEnvConfig(t *testing.T) {
	c := envconfig.NewAtari(atari.NewConfig("pong", atari.RAM), 0.99, 100,
		true)
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	filename := filepath.Join(t.TempDir(), "env.json")
	if err := os.WriteFile(filename, data, 0644); err != nil {
		t.Fatalf("writeFile: %v", err)
	}

	got, err := loadEnvConfig(filename, "roms")
	if err != nil {
		t.Fatalf("loadEnvConfig: %v", err)
	}
	if got.Atari.ROMDir != "roms" {
		t.Errorf("rom dir: got %q, want roms", got.Atari.ROMDir)
	}
	if got.Atari.Game != "pong" || got.EpisodeCutoff != 100 || !got.ClipReward {
		t.Errorf("loadEnvConfig: got %+v", got)
	}

	if _, err := loadEnvConfig(filepath.Join(t.TempDir(), "missing.json"),
		""); err == nil {
		t.Error("loadEnvConfig: expected error for missing file")
	}
}

func TestAnimationDisabled(t *testing.T) {
	animate, err := animation("", 1)
	if err != nil {
		t.Fatalf("animation: %v", err)
	}
	if err := animate(nil); err != nil {
		t.Errorf("animate: %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "key", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("newLogger: info logged at warn level: %q", out)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(out), &entry); err != nil {
		t.Fatalf("newLogger: output is not JSON: %v", err)
	}
	if entry["msg"] != "shown" {
		t.Errorf("msg: got %v, want shown", entry["msg"])
	}
}
