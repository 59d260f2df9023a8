package envconfig_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/samuelfneumann/rllaunch/environment"
	"github.com/samuelfneumann/rllaunch/environment/atari"
	"github.com/samuelfneumann/rllaunch/environment/atari/ataritest"
	"github.com/samuelfneumann/rllaunch/environment/envconfig"
	"github.com/samuelfneumann/rllaunch/environment/wrappers"
	"gonum.org/v1/gonum/mat"
)

func fake() (atari.Emulator, error) {
	e := ataritest.New()
	e.Reward = 3
	return e, nil
}

func TestCreateAtari(t *testing.T) {
	dir := t.TempDir()
	ataritest.WriteROM(dir, "venture")

	c := atari.NewConfig("venture", atari.RAM)
	c.ROMDir = dir
	conf := envconfig.NewAtari(c, 0.95, 3, true)

	env, step, err := conf.CreateWith(7, fake)
	if err != nil {
		t.Fatalf("createWith: %v", err)
	}
	if !step.First() {
		t.Error("createWith: expected a first step")
	}
	if d := env.DiscountSpec().LowerBound.AtVec(0); d != 0.95 {
		t.Errorf("discount: got %v, want 0.95", d)
	}

	steps := 0
	for done := false; !done; steps++ {
		step, done, err = env.Step(mat.NewVecDense(1, []float64{1}))
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		if step.Reward != 1.0 {
			t.Errorf("reward should be clipped, got %v", step.Reward)
		}
		if _, ok := step.Info[wrappers.RawReward]; !ok {
			t.Error("info: missing raw reward")
		}
	}
	if steps != 3 {
		t.Errorf("episode cutoff: got %v steps, want 3", steps)
	}
}

func TestCreateUnknown(t *testing.T) {
	_, _, err := envconfig.Config{Environment: "Snake"}.CreateWith(0, fake)
	if !errors.Is(err, environment.ErrNotImplemented) {
		t.Errorf("create: expected ErrNotImplemented, got %v", err)
	}
}

func TestCreateMissingGame(t *testing.T) {
	c := atari.NewConfig("missing", atari.RAM)
	c.ROMDir = t.TempDir()

	_, _, err := envconfig.NewAtari(c, 0.99, 0, false).CreateWith(0, fake)
	if !errors.Is(err, atari.ErrGameNotFound) {
		t.Errorf("create: expected ErrGameNotFound, got %v", err)
	}
}

func TestCreateMissingGameBeforeEmulator(t *testing.T) {
	c := atari.NewConfig("missing", atari.RAM)
	c.ROMDir = t.TempDir()

	built := false
	unavailable := func() (atari.Emulator, error) {
		built = true
		return nil, errors.New("emulator unavailable")
	}
	_, _, err := envconfig.NewAtari(c, 0.99, 0, false).CreateWith(0,
		unavailable)
	if !errors.Is(err, atari.ErrGameNotFound) {
		t.Errorf("create: expected ErrGameNotFound, got %v", err)
	}
	if built {
		t.Error("create: emulator built for a missing game")
	}
}

func TestJSON(t *testing.T) {
	c := atari.NewConfig("pong", atari.Image)
	c.NLastScreens = 4
	want := envconfig.NewAtari(c, 0.99, 4500, true)

	b, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got envconfig.Config
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// The discount and ROM directory are not serialized with the game
	opt := cmpopts.IgnoreFields(atari.Config{}, "Discount", "ROMDir")
	if diff := cmp.Diff(want, got, opt); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}
