//go:build !cgo || !ale

package ale

import (
	"errors"

	"github.com/samuelfneumann/rllaunch/environment/atari"
)

// ErrUnavailable is returned when the binary was built without the
// native emulator
var ErrUnavailable = errors.New("native emulator unavailable, rebuild " +
	"with -tags ale")

// New always fails without the native emulator
func New() (atari.Emulator, error) {
	return nil, ErrUnavailable
}
