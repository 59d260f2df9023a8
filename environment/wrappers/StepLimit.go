package wrappers

import (
	"fmt"

	"github.com/samuelfneumann/rllaunch/environment"
	ts "github.com/samuelfneumann/rllaunch/timestep"
	"gonum.org/v1/gonum/mat"
)

// Truncated is the info key set on the last step of an episode that was
// cut off by a StepLimit rather than ended by the environment
const Truncated string = "truncated"

// StepLimit wraps an environment and ends episodes once they reach a
// fixed number of steps
type StepLimit struct {
	environment.Environment
	episodeSteps int

	currentStep ts.TimeStep
}

// NewStepLimit returns a new StepLimit ending episodes of env after
// episodeSteps steps
func NewStepLimit(env environment.Environment,
	episodeSteps int) (*StepLimit, ts.TimeStep, error) {
	if episodeSteps < 1 {
		return nil, ts.TimeStep{}, fmt.Errorf("newStepLimit: episode steps "+
			"must be positive, got %v", episodeSteps)
	}
	s := &StepLimit{Environment: env, episodeSteps: episodeSteps}

	step, err := s.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("newStepLimit: %w", err)
	}
	return s, step, nil
}

// Reset resets the wrapped environment
func (s *StepLimit) Reset() (ts.TimeStep, error) {
	step, err := s.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, err
	}
	s.currentStep = step
	return step, nil
}

// Step steps the wrapped environment, ending the episode if the step
// limit is reached
func (s *StepLimit) Step(action *mat.VecDense) (ts.TimeStep, bool, error) {
	step, done, err := s.Environment.Step(action)
	if err != nil {
		return step, done, err
	}

	if !done && step.Number >= s.episodeSteps {
		step.StepType = ts.Last
		step.SetInfo(Truncated, true)
		done = true
	}
	s.currentStep = step

	return step, done, nil
}

// CurrentTimeStep returns the last TimeStep
func (s *StepLimit) CurrentTimeStep() ts.TimeStep {
	return s.currentStep
}

func (s *StepLimit) String() string {
	return fmt.Sprintf("StepLimit(%v, %v)", s.Environment, s.episodeSteps)
}
