// Package envconfig provides configuration structs for configuring
// environments. Environment configurations in this package are JSON
// serializable so that they can be stored alongside experiment data and
// handed to the training framework.
package envconfig

import (
	"fmt"

	env "github.com/samuelfneumann/rllaunch/environment"
	"github.com/samuelfneumann/rllaunch/environment/atari"
	"github.com/samuelfneumann/rllaunch/environment/atari/ale"
	"github.com/samuelfneumann/rllaunch/environment/gym"
	"github.com/samuelfneumann/rllaunch/environment/wrappers"
	ts "github.com/samuelfneumann/rllaunch/timestep"
)

// EnvName stores the name of environments that can be configured with
// this package
type EnvName string

// Environments available for configuration
const (
	Atari EnvName = "Atari"
	Gym   EnvName = "Gym"
)

// EmulatorFactory creates the emulator driven by an Atari environment
type EmulatorFactory func() (atari.Emulator, error)

// Config implements a specific configuration of an environment
type Config struct {
	Environment EnvName `json:"environment"`

	// Atari configures Atari environments
	Atari atari.Config `json:"atari,omitempty"`

	// GymID is the environment id of a Gym environment
	GymID string `json:"gym_id,omitempty"`

	// RestoredStateFolder holds emulator states to start episodes from
	RestoredStateFolder string `json:"restored_state_folder,omitempty"`

	Discount      float64 `json:"discount"`
	EpisodeCutoff int     `json:"episode_cutoff"`
	ClipReward    bool    `json:"clip_reward"`
}

// NewAtari returns a Config for an Atari environment
func NewAtari(c atari.Config, discount float64, episodeCutoff int,
	clipReward bool) Config {
	return Config{
		Environment:   Atari,
		Atari:         c,
		Discount:      discount,
		EpisodeCutoff: episodeCutoff,
		ClipReward:    clipReward,
	}
}

// NewGym returns a Config for a Gym environment
func NewGym(id string, discount float64, episodeCutoff int,
	clipReward bool) Config {
	return Config{
		Environment:   Gym,
		GymID:         id,
		Discount:      discount,
		EpisodeCutoff: episodeCutoff,
		ClipReward:    clipReward,
	}
}

// Create returns the environment described by the Config as well as
// the first timestep of the environment. Atari environments use the
// native emulator.
func (c Config) Create(seed uint64) (env.Environment, ts.TimeStep, error) {
	return c.CreateWith(seed, ale.New)
}

// CreateWith is like Create but builds Atari emulators with
// newEmulator
func (c Config) CreateWith(seed uint64,
	newEmulator EmulatorFactory) (env.Environment, ts.TimeStep, error) {
	var e env.Environment
	var step ts.TimeStep
	var err error

	switch c.Environment {
	case Atari:
		e, step, err = c.createAtari(seed, newEmulator)

	case Gym:
		e, step, err = gym.New(c.GymID, c.discount(), seed)

	default:
		return nil, ts.TimeStep{}, fmt.Errorf("create: %w: environment %q",
			env.ErrNotImplemented, c.Environment)
	}
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("create: %w", err)
	}

	if c.ClipReward {
		if e, step, err = wrappers.NewClipReward(e, -1, 1); err != nil {
			return nil, ts.TimeStep{}, fmt.Errorf("create: %w", err)
		}
	}
	if c.EpisodeCutoff > 0 {
		e, step, err = wrappers.NewStepLimit(e, c.EpisodeCutoff)
		if err != nil {
			return nil, ts.TimeStep{}, fmt.Errorf("create: %w", err)
		}
	}
	return e, step, nil
}

func (c Config) createAtari(seed uint64,
	newEmulator EmulatorFactory) (env.Environment, ts.TimeStep, error) {
	// The ROM is resolved before any emulator is built
	if _, err := atari.CheckGame(c.Atari.ROMDir, c.Atari.Game); err != nil {
		return nil, ts.TimeStep{}, err
	}

	emu, err := newEmulator()
	if err != nil {
		return nil, ts.TimeStep{}, err
	}

	conf := c.Atari
	conf.Seed = seed
	conf.Discount = c.discount()

	var opts []atari.Option
	if c.RestoredStateFolder != "" {
		r, err := atari.NewSaveLoadResetter(c.RestoredStateFolder, seed)
		if err != nil {
			emu.Close()
			return nil, ts.TimeStep{}, err
		}
		opts = append(opts, atari.WithResetter(r))
	}

	a, step, err := atari.New(conf, emu, opts...)
	if err != nil {
		emu.Close()
		return nil, ts.TimeStep{}, err
	}
	return a, step, nil
}

func (c Config) discount() float64 {
	if c.Discount == 0 {
		return atari.DefaultDiscount
	}
	return c.Discount
}

func (c Config) String() string {
	switch c.Environment {
	case Atari:
		return fmt.Sprintf("Atari(%v, %v)", c.Atari.Game, c.Atari.ObsType)
	case Gym:
		return fmt.Sprintf("Gym(%v)", c.GymID)
	}
	return string(c.Environment)
}
