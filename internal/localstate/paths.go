// Package localstate resolves where the local build target keeps its
// database and vector collection.
package localstate

import (
	"fmt"
	"os"
	"path/filepath"
)

// MemoryPath keeps the database or collection in memory.
const MemoryPath = ":memory:"

const (
	envHome    = "SALON_ASSISTANT_HOME" // override for tests
	dirName    = ".salon-assistant"     // default under $HOME
	dbFilename = "assistant.db"
	chromemDir = "chromem"
)

// DataDir returns the directory where local state is stored (~/.salon-assistant).
// It creates the directory with 0700 permissions if it does not exist.
func DataDir() (string, error) {
	if custom := os.Getenv(envHome); custom != "" {
		if err := os.MkdirAll(custom, 0o700); err != nil {
			return "", err
		}
		return custom, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user home: %w", err)
	}
	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// DBPath returns the absolute path to the SQLite database file.
func DBPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, dbFilename), nil
}

// ChromemPath returns the directory of the persistent chromem collection.
func ChromemPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, chromemDir), nil
}

// Resolve fills an empty path with def(). MemoryPath is returned as is and
// means the caller should keep the data in memory.
func Resolve(path string, def func() (string, error)) (string, error) {
	if path != "" {
		return path, nil
	}
	return def()
}
