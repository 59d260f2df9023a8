package experiment_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/rllaunch/environment/atari"
	"github.com/samuelfneumann/rllaunch/environment/atari/ataritest"
	"github.com/samuelfneumann/rllaunch/environment/envconfig"
	"github.com/samuelfneumann/rllaunch/experiment"
	"github.com/samuelfneumann/rllaunch/experiment/checkpointer"
	"github.com/samuelfneumann/rllaunch/experiment/tracker"
	"github.com/samuelfneumann/rllaunch/experiment/trackers"
	"github.com/samuelfneumann/rllaunch/rollout"
)

type counter struct{ steps int }

func (c *counter) Save(filename string) error {
	return os.WriteFile(filename, []byte{byte(c.steps)}, 0644)
}

func fake() (atari.Emulator, error) {
	e := ataritest.New()
	e.MaxFrames = 40
	return e, nil
}

func TestOnline(t *testing.T) {
	romDir := t.TempDir()
	ataritest.WriteROM(romDir, "pong")
	game := atari.NewConfig("pong", atari.RAM)
	game.ROMDir = romDir

	conf := experiment.Config{
		Type:          experiment.OnlineExp,
		Iterations:    3,
		BatchSize:     15,
		MaxPathLength: 100,
		EnvConf:       envconfig.NewAtari(game, 0.99, 0, false),
		Policy:        "random",
		SnapshotMode:  checkpointer.Last,
	}

	dir := t.TempDir()
	ret := trackers.NewReturn(filepath.Join(dir, "returns.bin"))
	snap := &counter{}
	exp, err := conf.CreateExp(1, fake, dir, snap, ret)
	if err != nil {
		t.Fatalf("createExp: %v", err)
	}

	exp.OnIteration(func(itr int, paths []rollout.Path) error {
		// Episodes last 10 steps, so two fill a batch of 15
		if len(paths) != 2 {
			t.Errorf("iteration %v: got %v paths, want 2", itr, len(paths))
		}
		for _, p := range paths {
			snap.steps += p.Len()
		}
		return nil
	})

	if err := exp.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if exp.Iteration() != 3 {
		t.Errorf("iterations: got %v, want 3", exp.Iteration())
	}
	if err := exp.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := tracker.LoadData(filepath.Join(dir, "returns.bin"))
	if err != nil {
		t.Fatalf("loadData: %v", err)
	}
	if len(data) != 6 {
		t.Errorf("returns: got %v episodes, want 6", len(data))
	}
	if _, err := os.Stat(checkpointer.LastFile(dir)); err != nil {
		t.Errorf("snapshot: %v", err)
	}
}

func TestCreateExpUnknownType(t *testing.T) {
	_, err := experiment.Config{Type: "Offline"}.CreateExp(0, fake, "", nil)
	if err == nil {
		t.Error("createExp: expected error for unknown type")
	}
}
