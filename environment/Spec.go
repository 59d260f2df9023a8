package environment

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SpecType determines what kind of specification a Spec is. A Spec can
// specify the layout of an acion, an observation, a discount, or a reward
type SpecType int

const (
	Action SpecType = iota
	Observation
	Discount
	Reward
)

// Cardinality determines the cardinality of a number (discrete or continuous)
type Cardinality string

const (
	Continuous Cardinality = "Continuous"
	Discrete   Cardinality = "Discrete"
)

// Spec implements an environment specification, which tells the type,
// shape, and bounds of an action, observation, discount, or reward in
// an environment
type Spec struct {
	Shape      *mat.VecDense
	Type       SpecType
	LowerBound *mat.VecDense
	UpperBound *mat.VecDense
	Cardinality
}

// NewSpec constructs a new environment specification
// The shape argument outlines the shape of the data described by the
// specification. The argument t outlines what the specification is
// describing (e.g. actions, observations, etc.). The cardinality
// arguments describes whether the values that the spec describes are
// continuous or discrete.
func NewSpec(shape *mat.VecDense, t SpecType, lowerBound,
	upperBound *mat.VecDense, cardinality Cardinality) Spec {
	if shape.Len() != lowerBound.Len() {
		panic(fmt.Sprintf("shape length %v must match lower bounds length %v",
			shape.Len(), lowerBound.Len()))
	}
	if shape.Len() != upperBound.Len() {
		panic(fmt.Sprintf("shape length %v must match upper bounds length %v",
			shape.Len(), upperBound.Len()))
	}
	return Spec{shape, t, lowerBound, upperBound, cardinality}
}

// NewBoxSpec returns a continuous Spec of n values, each bounded in
// [low, high]
func NewBoxSpec(n int, t SpecType, low, high float64) Spec {
	lower := make([]float64, n)
	upper := make([]float64, n)
	for i := range lower {
		lower[i] = low
		upper[i] = high
	}
	return NewSpec(mat.NewVecDense(n, nil), t, mat.NewVecDense(n, lower),
		mat.NewVecDense(n, upper), Continuous)
}

// NewDiscreteSpec returns a Spec of a single discrete value in
// [0, n-1]
func NewDiscreteSpec(n int, t SpecType) Spec {
	return NewSpec(mat.NewVecDense(1, nil), t, mat.NewVecDense(1, nil),
		mat.NewVecDense(1, []float64{float64(n - 1)}), Discrete)
}

// DiscreteActions returns the number of discrete actions described by
// an action Spec
func (s Spec) DiscreteActions() (int, error) {
	if s.Cardinality != Discrete || s.Shape.Len() != 1 {
		return 0, fmt.Errorf("discreteActions: spec is not a single " +
			"discrete value")
	}
	return int(s.UpperBound.AtVec(0)) + 1, nil
}
