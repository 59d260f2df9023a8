// Package environment outlines the interfaces and structs needed to implement
// concrete environments
package environment

import (
	"errors"
	"image"

	ts "github.com/samuelfneumann/rllaunch/timestep"
	"gonum.org/v1/gonum/mat"
)

// ErrNotImplemented is returned when a configuration names an
// environment, observation type, or other option that does not exist
var ErrNotImplemented = errors.New("not implemented")

// Environment implements a simulated environment. Environments are
// driven by a training loop that owns each returned TimeStep for the
// duration of a single step.
type Environment interface {
	// Reset resets the environment between episodes and returns the
	// first TimeStep of the new episode
	Reset() (ts.TimeStep, error)

	// Step takes a single environmental step, returning the next
	// TimeStep and whether the episode has ended
	Step(action *mat.VecDense) (ts.TimeStep, bool, error)

	// CurrentTimeStep returns the most recent TimeStep
	CurrentTimeStep() ts.TimeStep

	ObservationSpec() Spec
	ActionSpec() Spec
	DiscountSpec() Spec

	// Close releases any resources held by the environment
	Close() error
}

// Renderer is an Environment that can produce an image of its current
// state
type Renderer interface {
	Environment
	Render() (image.Image, error)
}
