package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the docpond home directory.
	DefaultDirName = ".docpond"

	// StorageDirName is the subdirectory for document storage.
	StorageDirName = "storage"

	// PresetsDirName is the subdirectory for preset bundles.
	PresetsDirName = "presets"

	// TmpDirName is the subdirectory for per-job scratch space.
	TmpDirName = "tmp"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the docpond home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.docpond).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// StoragePath returns the path to the storage root.
func (d *Dir) StoragePath() string {
	return filepath.Join(d.path, StorageDirName)
}

// PresetsPath returns the path to the presets directory.
func (d *Dir) PresetsPath() string {
	return filepath.Join(d.path, PresetsDirName)
}

// TmpPath returns the path to the scratch directory.
func (d *Dir) TmpPath() string {
	return filepath.Join(d.path, TmpDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, p := range []string{d.StoragePath(), d.PresetsPath(), d.TmpPath()} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// ScratchDir creates a fresh scratch directory for one job invocation.
// The caller owns it and must remove it on every exit path.
func (d *Dir) ScratchDir(prefix string) (string, error) {
	if err := os.MkdirAll(d.TmpPath(), 0o755); err != nil {
		return "", fmt.Errorf("failed to create tmp root: %w", err)
	}
	dir, err := os.MkdirTemp(d.TmpPath(), prefix+"-*")
	if err != nil {
		return "", fmt.Errorf("failed to create scratch dir: %w", err)
	}
	return dir, nil
}
