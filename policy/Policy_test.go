package policy_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/samuelfneumann/rllaunch/environment"
	"github.com/samuelfneumann/rllaunch/environment/atari"
	"github.com/samuelfneumann/rllaunch/environment/atari/ataritest"
	"github.com/samuelfneumann/rllaunch/policy"
	"gonum.org/v1/gonum/mat"
)

func newEnv(t *testing.T) *atari.Atari {
	t.Helper()
	dir := t.TempDir()
	ataritest.WriteROM(dir, "breakout")

	c := atari.NewConfig("breakout", atari.RAM)
	c.ROMDir = dir
	env, _, err := atari.New(c, ataritest.New())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return env
}

func TestNewUnknown(t *testing.T) {
	_, err := policy.New("mlp", newEnv(t), 1)
	if !errors.Is(err, environment.ErrNotImplemented) {
		t.Errorf("new: expected ErrNotImplemented, got %v", err)
	}
}

func TestCategoricalRandom(t *testing.T) {
	env := newEnv(t)
	p, err := policy.New(policy.Random, env, 11)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	counts := make([]int, env.NumActions())
	step := env.CurrentTimeStep()
	for i := 0; i < 2000; i++ {
		a := int(p.SelectAction(step).AtVec(0))
		if a < 0 || a >= len(counts) {
			t.Fatalf("selectAction: action %v out of range", a)
		}
		counts[a]++
	}
	for a, n := range counts {
		if n < 350 || n > 650 {
			t.Errorf("action %v selected %v/2000 times, expected uniform",
				a, n)
		}
	}
}

func TestCategoricalLinear(t *testing.T) {
	env := newEnv(t)
	p, err := policy.NewCategoricalLinear(env, 3)
	if err != nil {
		t.Fatalf("newCategoricalLinear: %v", err)
	}

	step := env.CurrentTimeStep()
	sum := 0.0
	for _, prob := range p.Probabilities(step) {
		sum += prob
	}
	if sum < 1-1e-9 || sum > 1+1e-9 {
		t.Errorf("probabilities sum to %v, want 1", sum)
	}

	// Make action 2 dominate
	w, b := p.Weights()
	b.SetVec(2, 100)
	if err := p.SetWeights(w, b); err != nil {
		t.Fatalf("setWeights: %v", err)
	}
	p.Greedy = true
	if a := p.SelectAction(step).AtVec(0); a != 2 {
		t.Errorf("greedy action: got %v, want 2", a)
	}

	if err := p.SetWeights(w, mat.NewVecDense(1, nil)); err == nil {
		t.Error("setWeights: expected error for mismatched bias")
	}
}

func TestCategoricalLinearSaveLoad(t *testing.T) {
	env := newEnv(t)
	p, _ := policy.NewCategoricalLinear(env, 5)
	p.Greedy = true

	path := filepath.Join(t.TempDir(), "policy.gob")
	if err := p.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := policy.LoadCategoricalLinear(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	step := env.CurrentTimeStep()
	want, got := p.Probabilities(step), loaded.Probabilities(step)
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("loaded probabilities differ: got %v, want %v", got,
				want)
		}
	}
	if !loaded.Greedy {
		t.Error("load: greedy flag not restored")
	}
}
