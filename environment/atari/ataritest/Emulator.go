// Package ataritest provides a scripted, in-memory emulator that
// satisfies atari.Emulator. It is used in tests and dry runs where the
// native emulator is unavailable.
package ataritest

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
)

const (
	RAMSize      int = 128
	ScreenWidth  int = 160
	ScreenHeight int = 210
)

// Emulator is a deterministic stand-in for the native Atari emulator.
// Each frame advances a counter from which the RAM and screen are
// derived. Lives are lost at a fixed frame interval and the game ends
// when no lives remain or after a fixed number of frames.
type Emulator struct {
	// Actions is the minimal action set, {0, 1, 3, 4} if empty
	Actions []int

	// StartLives is the number of lives at the start of a game
	StartLives int

	// LifeEvery is the number of frames between lost lives, or 0 if
	// lives are never lost
	LifeEvery int

	// MaxFrames ends the game after this many frames, or never if 0
	MaxFrames int

	// Reward is given on every frame in which a non-noop action is
	// taken
	Reward int

	ROM    string
	Seed   int
	Closed bool

	state state
}

type state struct {
	Frame      int
	Lives      int
	LastAction int
}

// New returns a new Emulator with three lives that rewards every
// non-noop frame
func New() *Emulator {
	return &Emulator{StartLives: 3, Reward: 1}
}

// WriteROM creates an empty ROM file for game in dir and returns its
// path
func WriteROM(dir, game string) (string, error) {
	path := filepath.Join(dir, game+".bin")
	return path, os.WriteFile(path, []byte{}, 0644)
}

func (e *Emulator) LoadROM(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("loadROM: %w", err)
	}
	e.ROM = path
	e.ResetGame()
	return nil
}

func (e *Emulator) SetInt(key string, value int) {
	if key == "random_seed" {
		e.Seed = value
	}
}

func (e *Emulator) MinimalActionSet() []int {
	if len(e.Actions) == 0 {
		return []int{0, 1, 3, 4}
	}
	actions := make([]int, len(e.Actions))
	copy(actions, e.Actions)
	return actions
}

func (e *Emulator) Act(action int) int {
	if e.GameOver() {
		return 0
	}
	e.state.Frame++
	e.state.LastAction = action
	if e.LifeEvery > 0 && e.state.Frame%e.LifeEvery == 0 {
		e.state.Lives--
	}
	if action != 0 {
		return e.Reward
	}
	return 0
}

func (e *Emulator) GameOver() bool {
	if e.state.Lives <= 0 && e.StartLives > 0 {
		return true
	}
	return e.MaxFrames > 0 && e.state.Frame >= e.MaxFrames
}

func (e *Emulator) ResetGame() {
	e.state = state{Lives: e.StartLives}
}

func (e *Emulator) Lives() int {
	return e.state.Lives
}

// Frame returns the number of frames emulated since the last reset
func (e *Emulator) Frame() int {
	return e.state.Frame
}

func (e *Emulator) RAM() []byte {
	ram := make([]byte, RAMSize)
	for i := range ram {
		ram[i] = byte((e.state.Frame*7 + i*3 + e.state.LastAction*11 +
			e.Seed) % 256)
	}
	return ram
}

func (e *Emulator) ScreenRGB() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, ScreenWidth, ScreenHeight))
	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: byte(x + e.state.Frame),
				G: byte(y),
				B: byte(e.state.LastAction * 40),
				A: 255,
			})
		}
	}
	return img
}

func (e *Emulator) CloneState() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e.state); err != nil {
		return nil, fmt.Errorf("cloneState: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *Emulator) RestoreState(b []byte) error {
	var s state
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&s); err != nil {
		return fmt.Errorf("restoreState: %w", err)
	}
	e.state = s
	return nil
}

func (e *Emulator) Close() error {
	e.Closed = true
	return nil
}
