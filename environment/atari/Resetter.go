package atari

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/exp/rand"
)

// StateExt is the file extension of saved emulator states
const StateExt string = ".state"

// Resetter resets an Atari environment at the start of an episode
type Resetter interface {
	Reset(a *Atari) error
}

// SaveLoadResetter resets the game and then restores an emulator state
// sampled uniformly from a set of saved states. With no saved states,
// it simply resets the game.
type SaveLoadResetter struct {
	states [][]byte
	rng    *rand.Rand
}

// NewSaveLoadResetter returns a SaveLoadResetter that restores the
// states saved in folder. An empty folder name yields a resetter with
// no saved states.
func NewSaveLoadResetter(folder string, seed uint64) (*SaveLoadResetter,
	error) {
	r := &SaveLoadResetter{rng: rand.New(rand.NewSource(seed))}
	if folder == "" {
		return r, nil
	}

	paths, err := filepath.Glob(filepath.Join(folder, "*"+StateExt))
	if err != nil {
		return nil, fmt.Errorf("newSaveLoadResetter: %w", err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		state, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("newSaveLoadResetter: could not read "+
				"state: %w", err)
		}
		r.states = append(r.states, state)
	}
	return r, nil
}

// Len returns the number of saved states
func (s *SaveLoadResetter) Len() int {
	return len(s.states)
}

// Reset implements the Resetter interface
func (s *SaveLoadResetter) Reset(a *Atari) error {
	a.Emulator().ResetGame()
	if len(s.states) == 0 {
		return nil
	}

	state := s.states[s.rng.Intn(len(s.states))]
	if err := a.Emulator().RestoreState(state); err != nil {
		return fmt.Errorf("reset: could not restore state: %w", err)
	}
	return nil
}

// SaveState writes the current emulator state of a to path, so that it
// can later be restored by a SaveLoadResetter
func SaveState(a *Atari, path string) error {
	state, err := a.Emulator().CloneState()
	if err != nil {
		return fmt.Errorf("saveState: %w", err)
	}
	return os.WriteFile(path, state, 0644)
}
