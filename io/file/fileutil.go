// Package file enforces a single entrypoint with standardized permissions for
// every file and directory the server writes.
package file

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	// ReadWritePermissions for data files written by the server.
	ReadWritePermissions = os.FileMode(0600)
	// ReadWriteExecutePermissions for directories created by the server.
	ReadWriteExecutePermissions = os.FileMode(0700)
)

// ExpandPath given a string which may be a relative path, expands ~ and
// environment variables and returns an absolute path.
func ExpandPath(p string) (string, error) {
	if len(p) > 1 && p[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "could not resolve home directory")
		}
		p = filepath.Join(home, p[2:])
	}
	return filepath.Abs(filepath.Clean(os.ExpandEnv(p)))
}

// MkdirAll creates a directory with standardized permissions, expanding the
// path if necessary. An existing directory at the path is left untouched.
func MkdirAll(dirPath string) error {
	expanded, err := ExpandPath(dirPath)
	if err != nil {
		return err
	}
	exists, err := DirExists(expanded)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return os.MkdirAll(expanded, ReadWriteExecutePermissions)
}

// WriteFile writes data to a file with standardized permissions.
func WriteFile(fileName string, data []byte) error {
	expanded, err := ExpandPath(fileName)
	if err != nil {
		return err
	}
	if FileExists(expanded) {
		info, err := os.Stat(expanded)
		if err != nil {
			return err
		}
		if info.Mode() != ReadWritePermissions {
			return errors.Errorf("file already exists without proper 0600 permissions: %s", expanded)
		}
	}
	return ioutil.WriteFile(expanded, data, ReadWritePermissions)
}

// FileExists returns true if a file is found at the specified path.
func FileExists(fileName string) bool {
	info, err := os.Stat(fileName)
	if err != nil {
		return false
	}
	return info != nil && !info.IsDir()
}

// DirExists returns true if a directory is found at the specified path.
func DirExists(dirPath string) (bool, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
