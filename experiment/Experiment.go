// Package experiment implements functionality for running a policy in
// an environment outside of the training framework, for probing and
// replaying experiments.
package experiment

import (
	"context"
	"fmt"

	"github.com/samuelfneumann/rllaunch/environment/envconfig"
	"github.com/samuelfneumann/rllaunch/experiment/checkpointer"
	"github.com/samuelfneumann/rllaunch/experiment/tracker"
	"github.com/samuelfneumann/rllaunch/policy"
	"github.com/samuelfneumann/rllaunch/rollout"
)

// Interface Experiment outlines structs that can run experiments.
// Experiments send each environment TimeStep to their Trackers, which
// cache the data they track until Save is called. Run runs all
// iterations, while RunIteration runs a single one.
type Experiment interface {
	Run(ctx context.Context) error

	// RunIteration runs a single iteration and returns its paths
	RunIteration(ctx context.Context) ([]rollout.Path, error)

	// Save all tracked data to disk
	Save() error

	// Register adds a new tracker.Tracker to the (possibly already
	// running) experiment.
	Register(t tracker.Tracker)
}

type Type string

const (
	OnlineExp Type = "OnlineExperiment"
)

// Config represents a configuration of an experiment
type Config struct {
	Type          Type             `json:"type"`
	Iterations    int              `json:"n_itr"`
	BatchSize     int              `json:"batch_size"`
	MaxPathLength int              `json:"max_path_length"`
	EnvConf       envconfig.Config `json:"env"`
	Policy        policy.Type      `json:"policy"`

	SnapshotMode checkpointer.Mode `json:"snapshot_mode"`
	SnapshotGap  int               `json:"snapshot_gap"`
}

// CreateExp creates the experiment described by the Config. The
// environment's emulator is created with newEmulator, and snapshots of
// snapshot are written to dir.
func (c Config) CreateExp(seed uint64, newEmulator envconfig.EmulatorFactory,
	dir string, snapshot checkpointer.Serializable,
	t ...tracker.Tracker) (*Online, error) {
	if c.Type != OnlineExp {
		return nil, fmt.Errorf("createExp: no such experiment type %v",
			c.Type)
	}

	env, _, err := c.EnvConf.CreateWith(seed, newEmulator)
	if err != nil {
		return nil, fmt.Errorf("createExp: could not create "+
			"environment: %w", err)
	}
	p, err := policy.New(c.Policy, env, seed)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("createExp: could not create policy: %w", err)
	}

	var check []checkpointer.Checkpointer
	if snapshot != nil {
		cp, err := checkpointer.New(c.SnapshotMode, c.SnapshotGap, dir,
			snapshot)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("createExp: %w", err)
		}
		check = append(check, cp)
	}

	return NewOnline(env, p, c.Iterations, c.BatchSize, c.MaxPathLength,
		t, check), nil
}
