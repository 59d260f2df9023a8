// Package policy implements the policies used for simulating and
// probing environments outside of the training framework.
package policy

import (
	"errors"
	"fmt"

	"github.com/samuelfneumann/rllaunch/environment"
	ts "github.com/samuelfneumann/rllaunch/timestep"
	"gonum.org/v1/gonum/mat"
)

// Policy selects actions given the current TimeStep
type Policy interface {
	SelectAction(t ts.TimeStep) *mat.VecDense
}

// Type names a kind of policy
type Type string

const (
	Random Type = "random"
	Linear Type = "linear"
)

var errNotDiscrete = errors.New("policy requires a single discrete action")

// New returns a new policy of type t for env
func New(t Type, env environment.Environment, seed uint64) (Policy, error) {
	switch t {
	case Random:
		return NewCategoricalRandom(env, seed)
	case Linear:
		return NewCategoricalLinear(env, seed)
	}
	return nil, fmt.Errorf("new: %w: policy type %q",
		environment.ErrNotImplemented, t)
}

// numActions returns the number of discrete actions of env
func numActions(env environment.Environment) (int, error) {
	actionSpec := env.ActionSpec()
	if actionSpec.Shape.Len() != 1 ||
		actionSpec.Cardinality != environment.Discrete {
		return 0, errNotDiscrete
	}
	return actionSpec.DiscreteActions()
}
