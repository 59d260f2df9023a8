package bonus_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/samuelfneumann/rllaunch/bonus"
	"github.com/samuelfneumann/rllaunch/environment"
	"github.com/samuelfneumann/rllaunch/environment/atari"
	"github.com/samuelfneumann/rllaunch/environment/atari/ataritest"
	"github.com/samuelfneumann/rllaunch/policy"
	"github.com/samuelfneumann/rllaunch/rollout"
)

func TestBonusForm(t *testing.T) {
	tests := []struct {
		form bonus.BonusForm
		n    int
		want float64
	}{
		{bonus.InvSqrt, 4, 0.5},
		{bonus.InvSqrt, 0, 1},
		{bonus.Inv, 8, 0.125},
		{bonus.InvLog, 1, 1},
		{bonus.InvLog, 100, 1 / math.Log(100)},
	}
	for _, test := range tests {
		got, err := test.form.Bonus(test.n)
		if err != nil {
			t.Fatalf("bonus: %v", err)
		}
		if math.Abs(got-test.want) > 1e-12 {
			t.Errorf("%v(%v): got %v, want %v", test.form, test.n, got,
				test.want)
		}
	}

	if _, err := bonus.BonusForm("1/n^2").Bonus(1); !errors.Is(err,
		environment.ErrNotImplemented) {
		t.Errorf("bonus: expected ErrNotImplemented, got %v", err)
	}
}

func paths(t *testing.T, n int) []rollout.Path {
	t.Helper()
	dir := t.TempDir()
	ataritest.WriteROM(dir, "montezuma_revenge")

	c := atari.NewConfig("montezuma_revenge", atari.RAM)
	c.ROMDir = dir
	c.RecordRAM = true
	c.RecordImage = true
	env, _, err := atari.New(c, ataritest.New())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	p, _ := policy.NewCategoricalRandom(env, 1)

	var out []rollout.Path
	for i := 0; i < n; i++ {
		path, err := rollout.Rollout(context.Background(), env, p, 20)
		if err != nil {
			t.Fatalf("rollout: %v", err)
		}
		out = append(out, path)
	}
	return out
}

func TestHashing(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		target bonus.CountTarget
		pre    bonus.Preprocessor
	}{
		{bonus.Observations, bonus.Identity{Dim: ataritest.RAMSize}},
		{bonus.RAMStates, bonus.ImageVectorize{NChannel: 1, Width: 128,
			Height: 1}},
		{bonus.Images, bonus.ImageVectorize{NChannel: 1, Width: 40,
			Height: 52}},
	}

	ps := paths(t, 2)
	for _, test := range tests {
		t.Run(string(test.target), func(t *testing.T) {
			hash, err := bonus.NewSimHash(test.pre.OutputDim(), 256, nil, 1,
				nil)
			if err != nil {
				t.Fatalf("newSimHash: %v", err)
			}
			h, err := bonus.NewHashing(hash, test.pre, bonus.Inv, test.target,
				nil)
			if err != nil {
				t.Fatalf("newHashing: %v", err)
			}

			before, err := h.Predict(ctx, ps[0])
			if err != nil {
				t.Fatalf("predict: %v", err)
			}
			for _, b := range before {
				if b != 1 {
					t.Fatalf("unvisited bonus: got %v, want 1", b)
				}
			}

			// Fitting the same paths twice halves the bonus at least
			if err := h.Fit(ctx, ps); err != nil {
				t.Fatalf("fit: %v", err)
			}
			if err := h.Fit(ctx, ps); err != nil {
				t.Fatalf("fit: %v", err)
			}
			after, err := h.Predict(ctx, ps[0])
			if err != nil {
				t.Fatalf("predict: %v", err)
			}
			if len(after) != ps[0].Len() {
				t.Fatalf("predict: got %v bonuses, want %v", len(after),
					ps[0].Len())
			}
			for _, b := range after {
				if b > 0.5 {
					t.Errorf("visited bonus: got %v, want at most 0.5", b)
				}
			}
		})
	}
}

func TestNewHashingErrors(t *testing.T) {
	hash, _ := bonus.NewSimHash(4, 8, nil, 1, nil)
	pre := bonus.Identity{Dim: 4}

	if _, err := bonus.NewHashing(hash, pre, bonus.Inv, "pixels",
		nil); !errors.Is(err, environment.ErrNotImplemented) {
		t.Errorf("newHashing: expected ErrNotImplemented, got %v", err)
	}
	if _, err := bonus.NewHashing(hash, pre, "exp(-n)", bonus.Observations,
		nil); !errors.Is(err, environment.ErrNotImplemented) {
		t.Errorf("newHashing: expected ErrNotImplemented, got %v", err)
	}
	if _, err := bonus.NewHashing(hash, bonus.Identity{Dim: 3}, bonus.Inv,
		bonus.Observations, nil); err == nil {
		t.Error("newHashing: expected error for mismatched dimensions")
	}
}

func TestHashingMissingRecord(t *testing.T) {
	hash, _ := bonus.NewSimHash(40*52, 8, nil, 1, nil)
	h, _ := bonus.NewHashing(hash, bonus.Identity{Dim: 40 * 52}, bonus.Inv,
		bonus.Images, nil)

	path := rollout.Path{Rewards: []float64{0}, EnvInfos: []map[string]interface{}{nil}}
	if err := h.Fit(context.Background(), []rollout.Path{path}); err == nil {
		t.Error("fit: expected error when images are not recorded")
	}
}

func TestZero(t *testing.T) {
	ps := paths(t, 1)
	var z bonus.Zero
	if err := z.Fit(context.Background(), ps); err != nil {
		t.Fatalf("fit: %v", err)
	}
	b, _ := z.Predict(context.Background(), ps[0])
	for _, v := range b {
		if v != 0 {
			t.Fatalf("predict: got %v, want 0", v)
		}
	}
}
