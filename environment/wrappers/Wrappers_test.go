package wrappers_test

import (
	"testing"

	"github.com/samuelfneumann/rllaunch/environment/atari"
	"github.com/samuelfneumann/rllaunch/environment/atari/ataritest"
	"github.com/samuelfneumann/rllaunch/environment/wrappers"
	"gonum.org/v1/gonum/mat"
)

func newAtari(t *testing.T, emu *ataritest.Emulator) *atari.Atari {
	t.Helper()
	dir := t.TempDir()
	if _, err := ataritest.WriteROM(dir, "pong"); err != nil {
		t.Fatal(err)
	}
	c := atari.NewConfig("pong", atari.RAM)
	c.ROMDir = dir

	env, _, err := atari.New(c, emu)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return env
}

func TestClipReward(t *testing.T) {
	emu := ataritest.New()
	emu.Reward = 5
	env, _, err := wrappers.NewClipReward(newAtari(t, emu), -1, 1)
	if err != nil {
		t.Fatalf("newClipReward: %v", err)
	}

	step, _, err := env.Step(mat.NewVecDense(1, []float64{1}))
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if step.Reward != 1.0 {
		t.Errorf("reward: got %v, want 1", step.Reward)
	}
	if raw := step.Info[wrappers.RawReward].(float64); raw != 20.0 {
		t.Errorf("raw reward: got %v, want 20", raw)
	}
	if env.CurrentTimeStep().Reward != 1.0 {
		t.Error("current step should hold the clipped reward")
	}
}

func TestStepLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
	}{
		{"one", 1},
		{"several", 7},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			env, _, err := wrappers.NewStepLimit(newAtari(t, ataritest.New()),
				test.limit)
			if err != nil {
				t.Fatalf("newStepLimit: %v", err)
			}

			for episode := 0; episode < 2; episode++ {
				n := 0
				for done := false; !done; n++ {
					step, d, err := env.Step(mat.NewVecDense(1, []float64{0}))
					if err != nil {
						t.Fatalf("step: %v", err)
					}
					done = d
					if done && !step.Last() {
						t.Error("final step should be last")
					}
				}
				if n != test.limit {
					t.Errorf("episode length: got %v, want %v", n,
						test.limit)
				}
				if _, err := env.Reset(); err != nil {
					t.Fatalf("reset: %v", err)
				}
			}
		})
	}

	if _, _, err := wrappers.NewStepLimit(newAtari(t, ataritest.New()),
		0); err == nil {
		t.Error("newStepLimit: expected error for zero limit")
	}
}
