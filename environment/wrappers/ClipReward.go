// Package wrappers implements environment wrappers, which alter the
// rewards or episode boundaries of the environments they wrap.
//
// Wrappers embed the wrapped environment.Environment and are therefore
// themselves environments.
package wrappers

import (
	"fmt"

	"github.com/samuelfneumann/rllaunch/environment"
	ts "github.com/samuelfneumann/rllaunch/timestep"
	"github.com/samuelfneumann/rllaunch/utils/floatutils"
	"gonum.org/v1/gonum/mat"
)

// RawReward is the info key under which ClipReward stores the reward
// before clipping
const RawReward string = "raw_reward"

// ClipReward wraps an environment and clips each reward to
// [Min, Max], usually [-1, 1]
type ClipReward struct {
	environment.Environment
	min, max float64

	currentStep ts.TimeStep
}

// NewClipReward returns a new ClipReward wrapping env. It panics if
// min > max.
func NewClipReward(env environment.Environment, min,
	max float64) (*ClipReward, ts.TimeStep, error) {
	if min > max {
		panic(fmt.Sprintf("newClipReward: min %v > max %v", min, max))
	}
	c := &ClipReward{Environment: env, min: min, max: max}

	step, err := c.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("newClipReward: %w", err)
	}
	return c, step, nil
}

// Reset resets the wrapped environment
func (c *ClipReward) Reset() (ts.TimeStep, error) {
	step, err := c.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, err
	}
	c.currentStep = step
	return step, nil
}

// Step steps the wrapped environment and clips the reward. The
// unclipped reward is kept in the step's info under RawReward.
func (c *ClipReward) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	step, done, err := c.Environment.Step(action)
	if err != nil {
		return step, done, err
	}

	step.SetInfo(RawReward, step.Reward)
	step.Reward = floatutils.Clip(step.Reward, c.min, c.max)
	c.currentStep = step

	return step, done, nil
}

// CurrentTimeStep returns the last clipped TimeStep
func (c *ClipReward) CurrentTimeStep() ts.TimeStep {
	return c.currentStep
}

// RewardSpec returns the reward specification of the environment
func (c *ClipReward) RewardSpec() environment.Spec {
	return environment.NewBoxSpec(1, environment.Reward, c.min, c.max)
}

func (c *ClipReward) String() string {
	return fmt.Sprintf("ClipReward(%v, [%v, %v])", c.Environment, c.min,
		c.max)
}
