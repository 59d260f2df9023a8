// Package atari implements Atari 2600 environments on top of a native
// emulator.
//
// The environment normalizes RAM or image observations to [-1, 1],
// repeats each action for a fixed number of frames, and tracks the
// loss of lives. The emulator itself is abstracted behind the Emulator
// interface, see package ale for the native backend.
package atari

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/samuelfneumann/rllaunch/environment"
	ts "github.com/samuelfneumann/rllaunch/timestep"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Atari implements an Atari game as an environment.Environment
type Atari struct {
	config    Config
	emu       Emulator
	actionSet []int
	resetter  Resetter
	rng       *rand.Rand
	logger    *slog.Logger

	ramSize   int
	rams      *frameHistory
	screens   *frameHistory
	lastImage []float64

	startLives  int
	currentStep ts.TimeStep
}

// Option configures optional parts of an Atari environment
type Option func(*Atari)

// WithResetter sets the Resetter used at the start of each episode
func WithResetter(r Resetter) Option {
	return func(a *Atari) {
		a.resetter = r
	}
}

// WithLogger sets the logger of the environment
func WithLogger(l *slog.Logger) Option {
	return func(a *Atari) {
		a.logger = l
	}
}

// New creates a new Atari environment driving emu. The game ROM is
// resolved and loaded before the first episode is started. If the ROM
// does not exist, an error wrapping ErrGameNotFound is returned.
func New(c Config, emu Emulator, opts ...Option) (*Atari, ts.TimeStep,
	error) {
	c = c.withDefaults()
	if err := c.Validate(); err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %w", err)
	}

	path, err := CheckGame(c.ROMDir, c.Game)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %w", err)
	}

	emu.SetInt(RandomSeedKey, int(c.Seed%(1<<31)))
	if err := emu.LoadROM(path); err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: could not load ROM "+
			"%v: %w", path, err)
	}

	actionSet := emu.MinimalActionSet()
	if len(actionSet) == 0 {
		return nil, ts.TimeStep{}, fmt.Errorf("new: game %v has no "+
			"actions", c.Game)
	}

	a := &Atari{
		config:    c,
		emu:       emu,
		actionSet: actionSet,
		rng:       rand.New(rand.NewSource(c.Seed)),
		logger:    slog.Default(),
		ramSize:   len(emu.RAM()),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.rams = newFrameHistory(c.NLastRAMs, a.ramSize)
	a.screens = newFrameHistory(c.NLastScreens, c.ImgWidth*c.ImgHeight)

	step, err := a.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %w", err)
	}
	return a, step, nil
}

// Config returns the configuration of the environment
func (a *Atari) Config() Config {
	return a.config
}

// Emulator returns the emulator driven by the environment
func (a *Atari) Emulator() Emulator {
	return a.emu
}

// NumActions returns the size of the minimal action set
func (a *Atari) NumActions() int {
	return len(a.actionSet)
}

// Reset starts a new episode. The emulator is reset, either directly or
// through the registered Resetter, and a random number of no-op frames
// is then executed.
func (a *Atari) Reset() (ts.TimeStep, error) {
	if a.resetter == nil {
		a.emu.ResetGame()
	} else if err := a.resetter.Reset(a); err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: %w", err)
	}

	if a.config.MaxStartNullops > 0 {
		nullops := a.rng.Intn(a.config.MaxStartNullops + 1)
		for i := 0; i < nullops; i++ {
			a.emu.Act(NoOp)
			if a.emu.GameOver() {
				a.emu.ResetGame()
			}
		}
	}

	a.startLives = a.emu.Lives()
	a.rams.clear()
	a.screens.clear()

	obs := a.observe()
	step := ts.New(ts.First, 0, a.config.Discount, obs, 0)
	a.record(&step)
	a.currentStep = step

	return step, nil
}

// Step repeats the action for FrameSkip frames and returns the next
// TimeStep, whose reward is the accumulated reward over the frames
func (a *Atari) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	if action == nil || action.Len() != 1 {
		return ts.TimeStep{}, true, fmt.Errorf("step: expected a single " +
			"discrete action")
	}
	index := int(action.AtVec(0))
	if index < 0 || index >= len(a.actionSet) {
		return ts.TimeStep{}, true, fmt.Errorf("step: action %v out of "+
			"range [0, %v)", index, len(a.actionSet))
	}
	raw := a.actionSet[index]

	var before []byte
	if a.config.AvoidLifeLost {
		var err error
		if before, err = a.emu.CloneState(); err != nil {
			return ts.TimeStep{}, true, fmt.Errorf("step: could not "+
				"clone state: %w", err)
		}
	}

	reward := 0.0
	for i := 0; i < a.config.FrameSkip; i++ {
		reward += float64(a.emu.Act(raw))
	}

	// Lives are compared with those at the start of the episode, so
	// every step after a death reports it
	lives := a.emu.Lives()
	loseLife := lives < a.startLives

	done := a.emu.GameOver()
	if loseLife {
		reward -= a.config.DeathPenalty
		a.logger.Debug("life lost", "game", a.config.Game, "lives", lives,
			"penalty", a.config.DeathPenalty)

		if a.config.DeathEndsEpisode {
			done = true
		} else if a.config.AvoidLifeLost {
			if err := a.emu.RestoreState(before); err != nil {
				return ts.TimeStep{}, true, fmt.Errorf("step: could not "+
					"restore state: %w", err)
			}
			done = a.emu.GameOver()
		}
	}

	obs := a.observe()
	stepType := ts.Mid
	if done {
		stepType = ts.Last
	}
	step := ts.New(stepType, reward, a.config.Discount, obs,
		a.currentStep.Number+1)
	a.record(&step)
	if loseLife {
		step.SetInfo(ts.LostLife, true)
	}
	a.currentStep = step

	return step, done, nil
}

// observe pushes the current emulator frame into the frame histories
// and returns the stacked observation
func (a *Atari) observe() *mat.VecDense {
	obs := make([]float64, 0, a.config.ObservationLen(a.ramSize))

	if a.config.ObsType == RAM || a.config.ObsType == RAMImage {
		a.rams.push(NormalizeRAM(a.emu.RAM()))
		obs = a.rams.appendTo(obs)
	}

	a.lastImage = nil
	if a.config.ObsType == Image || a.config.ObsType == RAMImage ||
		a.config.RecordImage {
		a.lastImage = PreprocessImage(a.emu.ScreenRGB(), a.config.ImgWidth,
			a.config.ImgHeight, a.config.CorrectLuminance)
	}
	if a.config.ObsType == Image || a.config.ObsType == RAMImage {
		a.screens.push(a.lastImage)
		obs = a.screens.appendTo(obs)
	}

	return mat.NewVecDense(len(obs), obs)
}

// record stores the auxiliary data requested by the Config in step
func (a *Atari) record(step *ts.TimeStep) {
	if a.config.RecordRAM {
		step.SetInfo(ts.RAMs, a.emu.RAM())
	}
	if a.config.RecordImage {
		img := make([]float64, len(a.lastImage))
		copy(img, a.lastImage)
		step.SetInfo(ts.Images, img)
	}
	if a.config.RecordRGBImage {
		step.SetInfo(ts.RGBImages, a.emu.ScreenRGB())
	}
	if a.config.RecordInternalState {
		state, err := a.emu.CloneState()
		if err != nil {
			a.logger.Warn("could not record internal state", "error", err)
		} else {
			step.SetInfo(ts.InternalStates, state)
		}
		step.SetInfo(ts.EnvID, fmt.Sprintf("%p", a))
	}
}

// CurrentTimeStep returns the most recent TimeStep
func (a *Atari) CurrentTimeStep() ts.TimeStep {
	return a.currentStep
}

// ObservationSpec returns the observation specification. Every
// observation component lies in [-1, 1].
func (a *Atari) ObservationSpec() environment.Spec {
	return environment.NewBoxSpec(a.config.ObservationLen(a.ramSize),
		environment.Observation, -1.0, 1.0)
}

// ActionSpec returns the action specification, a single discrete
// action indexing the minimal action set
func (a *Atari) ActionSpec() environment.Spec {
	return environment.NewDiscreteSpec(len(a.actionSet), environment.Action)
}

// DiscountSpec returns the discount specification of the environment
func (a *Atari) DiscountSpec() environment.Spec {
	return environment.NewBoxSpec(1, environment.Discount, a.config.Discount,
		a.config.Discount)
}

// Render returns the current RGB frame
func (a *Atari) Render() (image.Image, error) {
	return a.emu.ScreenRGB(), nil
}

// Close releases the emulator
func (a *Atari) Close() error {
	return a.emu.Close()
}

func (a *Atari) String() string {
	return fmt.Sprintf("Atari(%v, %v)", a.config.Game, a.config.ObsType)
}
