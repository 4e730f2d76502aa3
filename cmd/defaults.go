package cmd

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultDataDir is the default data directory to use for the database and
// other persistence requirements.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir.
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "VeloType")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Local", "VeloType")
		} else {
			return filepath.Join(home, ".velotype")
		}
	}
	// As we cannot guess a stable location, return empty and handle later.
	return ""
}
