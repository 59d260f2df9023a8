package atari_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/rllaunch/environment"
	"github.com/samuelfneumann/rllaunch/environment/atari"
	"github.com/samuelfneumann/rllaunch/environment/atari/ataritest"
	ts "github.com/samuelfneumann/rllaunch/timestep"
	"gonum.org/v1/gonum/mat"
)

const game = "pong"

// newEnv creates an Atari environment over a fake emulator with a ROM
// written to a temporary directory
func newEnv(t *testing.T, c atari.Config, emu *ataritest.Emulator,
	opts ...atari.Option) (*atari.Atari, ts.TimeStep) {
	t.Helper()

	dir := t.TempDir()
	if _, err := ataritest.WriteROM(dir, game); err != nil {
		t.Fatalf("could not write ROM: %v", err)
	}
	c.Game = game
	c.ROMDir = dir

	env, step, err := atari.New(c, emu, opts...)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return env, step
}

func action(i int) *mat.VecDense {
	return mat.NewVecDense(1, []float64{float64(i)})
}

func checkBounds(t *testing.T, obs *mat.VecDense) {
	t.Helper()
	for i := 0; i < obs.Len(); i++ {
		if v := obs.AtVec(i); v < -1.0 || v > 1.0 {
			t.Fatalf("observation component %v = %v outside [-1, 1]", i, v)
		}
	}
}

func TestNewMissingROM(t *testing.T) {
	c := atari.NewConfig("not_a_game", atari.RAM)
	c.ROMDir = t.TempDir()

	_, _, err := atari.New(c, ataritest.New())
	if !errors.Is(err, atari.ErrGameNotFound) {
		t.Errorf("new: expected ErrGameNotFound, got %v", err)
	}
}

func TestNewUnknownObsType(t *testing.T) {
	dir := t.TempDir()
	ataritest.WriteROM(dir, game)

	c := atari.NewConfig(game, "pixels")
	c.ROMDir = dir
	_, _, err := atari.New(c, ataritest.New())
	if !errors.Is(err, environment.ErrNotImplemented) {
		t.Errorf("new: expected ErrNotImplemented, got %v", err)
	}
}

func TestObservations(t *testing.T) {
	tests := []struct {
		name    string
		obsType atari.ObsType
		screens int
		rams    int
		want    int
	}{
		{"ram", atari.RAM, 1, 1, ataritest.RAMSize},
		{"ram-history", atari.RAM, 1, 3, 3 * ataritest.RAMSize},
		{"image", atari.Image, 1, 1, 40 * 52},
		{"image-history", atari.Image, 4, 1, 4 * 40 * 52},
		{"ram+image", atari.RAMImage, 2, 2,
			2*ataritest.RAMSize + 2*40*52},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := atari.NewConfig(game, test.obsType)
			c.NLastScreens = test.screens
			c.NLastRAMs = test.rams

			env, step := newEnv(t, c, ataritest.New())
			if !step.First() {
				t.Errorf("new: expected first step, got %v", step.StepType)
			}
			if got := step.Observation.Len(); got != test.want {
				t.Errorf("observation length: got %v, want %v", got,
					test.want)
			}
			if got := env.ObservationSpec().Shape.Len(); got != test.want {
				t.Errorf("observation spec: got %v, want %v", got, test.want)
			}
			checkBounds(t, step.Observation)

			for i := 0; i < 5; i++ {
				step, _, err := env.Step(action(1))
				if err != nil {
					t.Fatalf("step: %v", err)
				}
				checkBounds(t, step.Observation)
			}
		})
	}
}

func TestHistoryStartsBlank(t *testing.T) {
	c := atari.NewConfig(game, atari.RAM)
	c.NLastRAMs = 2
	_, step := newEnv(t, c, ataritest.New())

	for i := 0; i < ataritest.RAMSize; i++ {
		if v := step.Observation.AtVec(i); v != -1.0 {
			t.Fatalf("oldest frame should be blank after reset, "+
				"component %v = %v", i, v)
		}
	}
}

func TestFrameSkipReward(t *testing.T) {
	c := atari.NewConfig(game, atari.RAM)
	c.FrameSkip = 4
	emu := ataritest.New()
	env, _ := newEnv(t, c, emu)

	step, done, err := env.Step(action(1))
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if done {
		t.Error("step: episode should not be done")
	}
	if step.Reward != 4.0 {
		t.Errorf("reward: got %v, want 4", step.Reward)
	}
	if emu.Frame() != 4 {
		t.Errorf("frames: got %v, want 4", emu.Frame())
	}
	if step.Number != 1 {
		t.Errorf("step number: got %v, want 1", step.Number)
	}

	step, _, _ = env.Step(action(0))
	if step.Reward != 0.0 {
		t.Errorf("noop reward: got %v, want 0", step.Reward)
	}
}

func TestActionOutOfRange(t *testing.T) {
	env, _ := newEnv(t, atari.NewConfig(game, atari.RAM), ataritest.New())
	if _, _, err := env.Step(action(env.NumActions())); err == nil {
		t.Error("step: expected error for out of range action")
	}
	if _, _, err := env.Step(mat.NewVecDense(2, nil)); err == nil {
		t.Error("step: expected error for multi-dimensional action")
	}
}

func TestLifeLoss(t *testing.T) {
	c := atari.NewConfig(game, atari.RAM)
	c.FrameSkip = 4
	c.DeathPenalty = 10
	emu := ataritest.New()
	emu.LifeEvery = 4
	env, _ := newEnv(t, c, emu)

	// Three lives, one lost per step
	for i := 0; i < 3; i++ {
		step, done, err := env.Step(action(1))
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		if step.Reward != 4.0-10.0 {
			t.Errorf("step %v reward: got %v, want -6", i, step.Reward)
		}
		if lost, _ := step.Info[ts.LostLife].(bool); !lost {
			t.Errorf("step %v: expected lost life", i)
		}
		if wantDone := i == 2; done != wantDone {
			t.Errorf("step %v: got done %v, want %v", i, done, wantDone)
		}
	}
}

func TestLifeLossSinceReset(t *testing.T) {
	c := atari.NewConfig(game, atari.RAM)
	c.FrameSkip = 4
	c.DeathPenalty = 1
	emu := ataritest.New()
	emu.StartLives = 5
	emu.LifeEvery = 8
	env, _ := newEnv(t, c, emu)

	// A life is lost on the second step only, but every later step is
	// still below the lives at reset
	tests := []struct {
		lives  int
		reward float64
		lost   bool
	}{
		{5, 4, false},
		{4, 3, true},
		{4, 3, true},
	}
	for i, test := range tests {
		step, _, err := env.Step(action(1))
		if err != nil {
			t.Fatalf("step %v: %v", i, err)
		}
		if emu.Lives() != test.lives {
			t.Errorf("step %v lives: got %v, want %v", i, emu.Lives(),
				test.lives)
		}
		if step.Reward != test.reward {
			t.Errorf("step %v reward: got %v, want %v", i, step.Reward,
				test.reward)
		}
		if lost, _ := step.Info[ts.LostLife].(bool); lost != test.lost {
			t.Errorf("step %v lost life: got %v, want %v", i, lost, test.lost)
		}
	}

	// Resetting takes the new lives as the reference
	if _, err := env.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	step, _, err := env.Step(action(1))
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if lost, _ := step.Info[ts.LostLife].(bool); lost {
		t.Error("step after reset: unexpected lost life")
	}
}

func TestDeathEndsEpisode(t *testing.T) {
	c := atari.NewConfig(game, atari.RAM)
	c.DeathEndsEpisode = true
	c.FrameSkip = 2
	emu := ataritest.New()
	emu.LifeEvery = 2
	env, _ := newEnv(t, c, emu)

	step, done, err := env.Step(action(0))
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if !done || !step.Last() {
		t.Error("step: losing a life should end the episode")
	}
	if emu.Lives() != 2 {
		t.Errorf("lives: got %v, want 2", emu.Lives())
	}
}

func TestAvoidLifeLost(t *testing.T) {
	c := atari.NewConfig(game, atari.RAM)
	c.AvoidLifeLost = true
	emu := ataritest.New()
	emu.LifeEvery = 3
	env, _ := newEnv(t, c, emu)

	step, done, err := env.Step(action(1))
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if done {
		t.Error("step: episode should continue")
	}
	if emu.Lives() != 3 || emu.Frame() != 0 {
		t.Errorf("state should be restored, got lives %v frame %v",
			emu.Lives(), emu.Frame())
	}
	if lost, _ := step.Info[ts.LostLife].(bool); !lost {
		t.Error("step: expected lost life to be reported")
	}
}

func TestGameOver(t *testing.T) {
	c := atari.NewConfig(game, atari.RAM)
	c.FrameSkip = 1
	emu := ataritest.New()
	emu.MaxFrames = 3
	env, _ := newEnv(t, c, emu)

	var done bool
	var n int
	for !done {
		var err error
		if _, done, err = env.Step(action(1)); err != nil {
			t.Fatalf("step: %v", err)
		}
		n++
	}
	if n != 3 {
		t.Errorf("episode length: got %v, want 3", n)
	}
	if !env.CurrentTimeStep().Last() {
		t.Error("current step should be last")
	}

	step, err := env.Reset()
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !step.First() || emu.Frame() != 0 {
		t.Error("reset: should start a new game")
	}
}

func TestStartNullops(t *testing.T) {
	c := atari.NewConfig(game, atari.RAM)
	c.MaxStartNullops = 10
	emu := ataritest.New()
	env, _ := newEnv(t, c, emu)

	sawNullop := false
	for i := 0; i < 30; i++ {
		if _, err := env.Reset(); err != nil {
			t.Fatalf("reset: %v", err)
		}
		if emu.Frame() > 10 {
			t.Fatalf("reset: %v nullops exceeds maximum", emu.Frame())
		}
		sawNullop = sawNullop || emu.Frame() > 0
	}
	if !sawNullop {
		t.Error("reset: expected some no-op frames at the start")
	}
}

func TestRecord(t *testing.T) {
	c := atari.NewConfig(game, atari.RAM)
	c.RecordRAM = true
	c.RecordImage = true
	c.RecordRGBImage = true
	c.RecordInternalState = true
	emu := ataritest.New()
	env, _ := newEnv(t, c, emu)

	step, _, err := env.Step(action(1))
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	for _, key := range []string{ts.RAMs, ts.Images, ts.RGBImages,
		ts.InternalStates, ts.EnvID} {
		if _, ok := step.Info[key]; !ok {
			t.Errorf("info: missing %v", key)
		}
	}
	if img := step.Info[ts.Images].([]float64); len(img) != 40*52 {
		t.Errorf("recorded image: got length %v, want %v", len(img), 40*52)
	}

	frame := emu.Frame()
	env.Step(action(1))
	state := step.Info[ts.InternalStates].([]byte)
	if err := emu.RestoreState(state); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if emu.Frame() != frame {
		t.Errorf("restored frame: got %v, want %v", emu.Frame(), frame)
	}
}

func TestSaveLoadResetter(t *testing.T) {
	c := atari.NewConfig(game, atari.RAM)
	emu := ataritest.New()
	env, _ := newEnv(t, c, emu)

	env.Step(action(1))
	env.Step(action(1))
	want := emu.Frame()

	dir := t.TempDir()
	if err := atari.SaveState(env, filepath.Join(dir, "0"+atari.StateExt)); err != nil {
		t.Fatalf("saveState: %v", err)
	}

	r, err := atari.NewSaveLoadResetter(dir, 1)
	if err != nil {
		t.Fatalf("newSaveLoadResetter: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("len: got %v, want 1", r.Len())
	}

	env, _ = newEnv(t, c, emu, atari.WithResetter(r))
	if emu.Frame() != want {
		t.Errorf("reset: got frame %v, want %v", emu.Frame(), want)
	}
}

func TestSpecs(t *testing.T) {
	env, _ := newEnv(t, atari.NewConfig(game, atari.RAM), ataritest.New())

	n, err := env.ActionSpec().DiscreteActions()
	if err != nil {
		t.Fatalf("discreteActions: %v", err)
	}
	if n != 4 {
		t.Errorf("actions: got %v, want 4", n)
	}
	if d := env.DiscountSpec().LowerBound.AtVec(0); d != atari.DefaultDiscount {
		t.Errorf("discount: got %v, want %v", d, atari.DefaultDiscount)
	}
}

func TestRenderTo(t *testing.T) {
	env, _ := newEnv(t, atari.NewConfig(game, atari.Image), ataritest.New())
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := env.RenderTo(path, 2); err != nil {
		t.Errorf("renderTo: %v", err)
	}
}
