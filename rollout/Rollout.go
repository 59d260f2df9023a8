// Package rollout runs single episodes of a policy in an environment
// and collects the resulting paths.
package rollout

import (
	"context"
	"fmt"
	"time"

	"github.com/samuelfneumann/rllaunch/environment"
	"github.com/samuelfneumann/rllaunch/policy"
	ts "github.com/samuelfneumann/rllaunch/timestep"
	"gonum.org/v1/gonum/mat"
)

// DefaultTimeStep is the wall-clock duration of one animated step
// before applying the speedup
const DefaultTimeStep time.Duration = 50 * time.Millisecond

// Path holds the data generated in one episode. Observations[i] is the
// observation in which Actions[i] was taken.
type Path struct {
	Observations []*mat.VecDense
	Actions      []*mat.VecDense
	Rewards      []float64
	EnvInfos     []map[string]interface{}
}

// Len returns the number of steps in the path
func (p Path) Len() int {
	return len(p.Rewards)
}

// Return returns the undiscounted return of the path
func (p Path) Return() float64 {
	ret := 0.0
	for _, r := range p.Rewards {
		ret += r
	}
	return ret
}

// Infos returns the values recorded under key in each step's info
func (p Path) Infos(key string) []interface{} {
	infos := make([]interface{}, 0, len(p.EnvInfos))
	for _, info := range p.EnvInfos {
		if v, ok := info[key]; ok {
			infos = append(infos, v)
		}
	}
	return infos
}

type config struct {
	animate  func(environment.Environment) error
	onStep   []func(ts.TimeStep)
	timeStep time.Duration
	speedup  float64
}

// Option configures a rollout
type Option func(*config)

// WithAnimation calls animate after every step and paces the rollout
// at DefaultTimeStep/speedup per step
func WithAnimation(animate func(environment.Environment) error,
	speedup float64) Option {
	return func(c *config) {
		c.animate = animate
		c.speedup = speedup
	}
}

// WithStepHook calls hook with every TimeStep of the episode, including
// the first
func WithStepHook(hook func(ts.TimeStep)) Option {
	return func(c *config) {
		c.onStep = append(c.onStep, hook)
	}
}

// Rollout resets env and runs p for at most maxPathLength steps or
// until the episode ends. A non-positive maxPathLength runs until the
// episode ends.
func Rollout(ctx context.Context, env environment.Environment,
	p policy.Policy, maxPathLength int, opts ...Option) (Path, error) {
	c := config{timeStep: DefaultTimeStep, speedup: 1}
	for _, opt := range opts {
		opt(&c)
	}
	if c.speedup <= 0 {
		c.speedup = 1
	}

	var path Path
	step, err := env.Reset()
	if err != nil {
		return path, fmt.Errorf("rollout: %w", err)
	}
	c.track(step)
	if err := c.render(ctx, env); err != nil {
		return path, err
	}

	for maxPathLength <= 0 || path.Len() < maxPathLength {
		if err := ctx.Err(); err != nil {
			return path, err
		}

		action := p.SelectAction(step)
		next, done, err := env.Step(action)
		if err != nil {
			return path, fmt.Errorf("rollout: %w", err)
		}
		c.track(next)

		path.Observations = append(path.Observations, step.Observation)
		path.Actions = append(path.Actions, action)
		path.Rewards = append(path.Rewards, next.Reward)
		path.EnvInfos = append(path.EnvInfos, next.Info)

		if done {
			break
		}
		step = next
		if err := c.render(ctx, env); err != nil {
			return path, err
		}
	}
	return path, nil
}

func (c config) track(step ts.TimeStep) {
	for _, hook := range c.onStep {
		hook(step)
	}
}

func (c config) render(ctx context.Context, env environment.Environment) error {
	if c.animate == nil {
		return nil
	}
	if err := c.animate(env); err != nil {
		return fmt.Errorf("rollout: could not animate: %w", err)
	}

	delay := time.Duration(float64(c.timeStep) / c.speedup)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
