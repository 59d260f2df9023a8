package atari

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ROMDirEnv is the environment variable consulted for the ROM
// directory when a Config does not name one
const ROMDirEnv string = "ATARI_ROM_DIR"

// ErrGameNotFound is returned when the ROM of a requested game does not
// exist
var ErrGameNotFound = errors.New("game not found")

// GamePath returns the path of the ROM file for game within romDir. If
// romDir is empty, the directory named by ATARI_ROM_DIR is used.
func GamePath(romDir, game string) string {
	if romDir == "" {
		romDir = os.Getenv(ROMDirEnv)
	}
	return filepath.Join(romDir, game+".bin")
}

// CheckGame returns the ROM path of game, or an error wrapping
// ErrGameNotFound if the ROM does not exist
func CheckGame(romDir, game string) (string, error) {
	if game == "" {
		return "", fmt.Errorf("checkGame: %w: empty game name", ErrGameNotFound)
	}
	path := GamePath(romDir, game)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("checkGame: %w: you asked for game %v but "+
			"path %v does not exist", ErrGameNotFound, game, path)
	}
	return path, nil
}
