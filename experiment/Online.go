package experiment

import (
	"context"
	"fmt"
	"log/slog"

	env "github.com/samuelfneumann/rllaunch/environment"
	"github.com/samuelfneumann/rllaunch/experiment/checkpointer"
	"github.com/samuelfneumann/rllaunch/experiment/tracker"
	"github.com/samuelfneumann/rllaunch/policy"
	"github.com/samuelfneumann/rllaunch/rollout"
	ts "github.com/samuelfneumann/rllaunch/timestep"
)

// IterationHook is called with the paths of each finished iteration,
// before the iteration is checkpointed
type IterationHook func(itr int, paths []rollout.Path) error

// Online is an Experiment that collects batches of rollouts of a fixed
// policy. Each iteration collects at least batchSize steps.
type Online struct {
	env.Environment
	policy.Policy

	iterations    int
	batchSize     int
	maxPathLength int
	currentItr    int

	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
	hooks         []IterationHook
	logger        *slog.Logger
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given policy.
func NewOnline(e env.Environment, p policy.Policy, iterations, batchSize,
	maxPathLength int, t []tracker.Tracker,
	c []checkpointer.Checkpointer) *Online {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Online{
		Environment:   e,
		Policy:        p,
		iterations:    iterations,
		batchSize:     batchSize,
		maxPathLength: maxPathLength,
		trackers:      t,
		checkpointers: c,
		logger:        slog.Default(),
	}
}

// SetLogger sets the logger of the experiment
func (o *Online) SetLogger(l *slog.Logger) {
	o.logger = l
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// OnIteration registers a hook called after every iteration
func (o *Online) OnIteration(h IterationHook) {
	o.hooks = append(o.hooks, h)
}

// Iteration returns the number of finished iterations
func (o *Online) Iteration() int {
	return o.currentItr
}

// RunIteration collects one batch of paths, then calls the iteration
// hooks and checkpointers
func (o *Online) RunIteration(ctx context.Context) ([]rollout.Path,
	error) {
	var paths []rollout.Path
	steps := 0
	for steps < o.batchSize {
		path, err := rollout.Rollout(ctx, o.Environment, o.Policy,
			o.maxPathLength, rollout.WithStepHook(o.track))
		if err != nil {
			return paths, fmt.Errorf("runIteration: %w", err)
		}
		paths = append(paths, path)
		steps += path.Len()
	}

	itr := o.currentItr
	for _, h := range o.hooks {
		if err := h(itr, paths); err != nil {
			return paths, fmt.Errorf("runIteration: %w", err)
		}
	}
	for _, c := range o.checkpointers {
		if err := c.Checkpoint(itr); err != nil {
			return paths, fmt.Errorf("runIteration: could not "+
				"checkpoint: %w", err)
		}
	}
	o.currentItr++

	o.logger.Info("iteration finished", "itr", itr, "paths", len(paths),
		"steps", steps)
	return paths, nil
}

// Run runs all remaining iterations of the experiment
func (o *Online) Run(ctx context.Context) error {
	for o.currentItr < o.iterations {
		if _, err := o.RunIteration(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	return nil
}

// track tracks the current timestep by caching its data in each tracker
func (o *Online) track(t ts.TimeStep) {
	for _, tr := range o.trackers {
		tr.Track(t)
	}
}
