// Package checkpointer implements snapshotting of serializable objects
// at the end of training iterations.
package checkpointer

import (
	"fmt"
	"path/filepath"

	"github.com/samuelfneumann/rllaunch/environment"
)

// Extension is the file extension of snapshots
const Extension string = ".gob"

// Serializable is an object that can be saved to a file
type Serializable interface {
	Save(filename string) error
}

// Checkpointer checkpoints/saves serializable objects at the end of
// iterations
type Checkpointer interface {
	Checkpoint(itr int) error
}

// Mode determines which iterations are snapshotted
type Mode string

const (
	// All snapshots every iteration to itr_<n>.gob
	All Mode = "all"

	// Last keeps only the most recent iteration in params.gob
	Last Mode = "last"

	// Gap snapshots every gap iterations to itr_<n>.gob
	Gap Mode = "gap"

	// None never snapshots
	None Mode = "none"
)

// Validate returns an error if the Mode is unknown
func (m Mode) Validate() error {
	switch m {
	case All, Last, Gap, None:
		return nil
	}
	return fmt.Errorf("validate: %w: snapshot mode %q",
		environment.ErrNotImplemented, m)
}

// IterationFile returns the snapshot filename of iteration itr in dir
func IterationFile(dir string, itr int) string {
	return filepath.Join(dir, fmt.Sprintf("itr_%d%v", itr, Extension))
}

// LastFile returns the snapshot filename used in Last mode
func LastFile(dir string) string {
	return filepath.Join(dir, "params"+Extension)
}

// New returns a Checkpointer saving object to dir according to mode.
// The gap is only used in Gap mode and must then be positive.
func New(mode Mode, gap int, dir string,
	object Serializable) (Checkpointer, error) {
	if err := mode.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	switch mode {
	case All:
		return NewNStep(1, object, func(itr int) string {
			return IterationFile(dir, itr)
		}), nil

	case Gap:
		if gap < 1 {
			return nil, fmt.Errorf("new: snapshot gap must be positive, "+
				"got %v", gap)
		}
		return NewNStep(gap, object, func(itr int) string {
			return IterationFile(dir, itr)
		}), nil

	case Last:
		return NewNStep(1, object, func(int) string {
			return LastFile(dir)
		}), nil
	}
	return none{}, nil
}

type none struct{}

func (none) Checkpoint(int) error { return nil }
