package atari

import "image"

// NoOp is the raw emulator action that does nothing. It is the first
// action of every minimal action set.
const NoOp int = 0

// RandomSeedKey is the emulator setting used to seed its internal
// randomness
const RandomSeedKey string = "random_seed"

// Emulator is the native Atari emulator that an Atari environment
// drives. Implementations are not safe for concurrent use; each
// environment owns its own Emulator.
type Emulator interface {
	// LoadROM loads the game ROM at path. Settings must be applied
	// with SetInt before the ROM is loaded.
	LoadROM(path string) error
	SetInt(key string, value int)

	// MinimalActionSet returns the raw emulator actions that have an
	// effect in the loaded game
	MinimalActionSet() []int

	// Act applies a raw emulator action for a single frame and returns
	// the reward obtained
	Act(action int) int

	GameOver() bool
	ResetGame()
	Lives() int

	// RAM returns a copy of the console RAM (128 bytes on the 2600)
	RAM() []byte

	// ScreenRGB returns the current frame
	ScreenRGB() *image.RGBA

	// CloneState and RestoreState snapshot and restore the emulator
	// state, including pseudorandomness
	CloneState() ([]byte, error)
	RestoreState(state []byte) error

	Close() error
}
