// Package filesystem resolves SHAI state paths under the user's home directory.
package filesystem

import (
	"os"
	"path/filepath"
	"strings"
)

const stateDirName = ".shai"

// UserHomeDir returns the current user's home directory, or "." when it
// cannot be determined.
func UserHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// StatePath joins elem under ~/.shai.
func StatePath(elem ...string) string {
	return filepath.Join(append([]string{UserHomeDir(), stateDirName}, elem...)...)
}

// ExpandHome resolves a leading "~" against the home directory and cleans
// relative paths. Empty and absolute paths are returned unchanged.
func ExpandHome(path string) string {
	switch {
	case path == "" || filepath.IsAbs(path):
		return path
	case path == "~":
		return UserHomeDir()
	case strings.HasPrefix(path, "~/"):
		return filepath.Join(UserHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}
