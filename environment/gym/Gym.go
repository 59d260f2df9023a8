// Package gym provides access to OpenAI Gym environments, including the
// Gym builds of the Atari games, through the Go bindings found at
// https://github.com/samuelfneumann/GoGym.
//
// Environments only work with their default tasks and episode cutoffs.
// Use package wrappers to impose a different cutoff.
package gym

import (
	"fmt"
	"image"

	"github.com/samuelfneumann/gogym"
	env "github.com/samuelfneumann/rllaunch/environment"
	ts "github.com/samuelfneumann/rllaunch/timestep"
	"gonum.org/v1/gonum/mat"
)

// GymEnv implements access to an OpenAI Gym environment using GoGym
type GymEnv struct {
	gogym.Environment

	name        string
	currentStep ts.TimeStep
	discount    float64
}

// New returns a new GymEnv with the given name, which must be a legal
// name from the OpenAI Gym suite.
func New(name string, discount float64, seed uint64) (*GymEnv,
	ts.TimeStep, error) {
	goGymEnv, err := gogym.Make(name)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: could not create "+
			"environment %v: %w", name, err)
	}

	goGymEnv.Seed(int(seed))
	gymEnv := &GymEnv{
		Environment: goGymEnv,
		name:        name,
		discount:    discount,
	}

	t, err := gymEnv.Reset()
	if err != nil {
		goGymEnv.Close()
		return nil, ts.TimeStep{}, fmt.Errorf("new: %w", err)
	}
	return gymEnv, t, nil
}

// Step takes a single environmental step. Discrete actions are given as
// the index of the action.
func (g *GymEnv) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	obs, reward, done, err := g.Environment.Step(a)
	if err != nil {
		return ts.TimeStep{}, true, fmt.Errorf("step: could not step "+
			"GoGym environment: %w", err)
	}

	t := ts.New(ts.Mid, reward, g.discount, obs, g.currentStep.Number+1)
	if done {
		t.StepType = ts.Last
	}
	g.currentStep = t

	return t, done, nil
}

// Reset resets the environment to some starting state
func (g *GymEnv) Reset() (ts.TimeStep, error) {
	obs, err := g.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: could not reset "+
			"environment: %w", err)
	}

	t := ts.New(ts.First, 0, g.discount, obs, 0)
	g.currentStep = t

	return t, nil
}

// CurrentTimeStep returns the current timestep in the environment
func (g *GymEnv) CurrentTimeStep() ts.TimeStep {
	return g.currentStep
}

// ObservationSpec returns the observation spec of the environment
func (g *GymEnv) ObservationSpec() env.Spec {
	return spaceSpec(g.ObservationSpace(), env.Observation)
}

// ActionSpec returns the action specification of the environment. A
// discrete action space yields a single discrete action whose bounds
// are the first and last action index.
func (g *GymEnv) ActionSpec() env.Spec {
	return spaceSpec(g.ActionSpace(), env.Action)
}

func spaceSpec(space gogym.Space, t env.SpecType) env.Spec {
	low := space.Low()[0]
	high := space.High()[0]
	shape := mat.NewVecDense(low.Len(), nil)

	switch space.(type) {
	case *gogym.BoxSpace:
		return env.NewSpec(shape, t, low, high, env.Continuous)
	case *gogym.DiscreteSpace:
		return env.NewSpec(shape, t, low, high, env.Discrete)
	default:
		panic(fmt.Sprintf("spec: invalid space type %T, package gym "+
			"supports only GoGym's BoxSpace or DiscreteSpace", space))
	}
}

// DiscountSpec returns the discount specification of the environment
func (g *GymEnv) DiscountSpec() env.Spec {
	return env.NewBoxSpec(1, env.Discount, g.discount, g.discount)
}

// Render is not supported through GoGym
func (g *GymEnv) Render() (image.Image, error) {
	return nil, fmt.Errorf("render: %w: gym environment %v",
		env.ErrNotImplemented, g.name)
}

// Close performs resource cleanup after the environment is no longer
// needed
func (g *GymEnv) Close() error {
	g.Environment.Close()
	return nil
}

func (g *GymEnv) String() string {
	return fmt.Sprintf("Gym(%v)", g.name)
}
