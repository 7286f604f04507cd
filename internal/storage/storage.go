// Package storage provides key-addressed blob storage for PDFs and images.
// The pipeline only ever reads bytes by key and writes bytes for a key; it
// never assumes a local filesystem layout beyond what this package exposes.
package storage

import (
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/spf13/afero"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("storage: key not found")

// Store is the blob storage collaborator.
type Store interface {
	// Open returns a reader for the bytes at key.
	Open(key string) (io.ReadCloser, error)

	// Save writes data under key and returns the key it was stored at.
	Save(key string, data []byte) (string, error)

	// Delete removes the bytes at key. Deleting a missing key is not an error.
	Delete(key string) error

	// Exists reports whether key is present.
	Exists(key string) bool
}

// FsStore implements Store on top of an afero filesystem.
// Production uses a base-path OsFs rooted at the home storage dir;
// tests use an in-memory Fs.
type FsStore struct {
	fs afero.Fs
}

// NewLocal creates a store rooted at dir on the OS filesystem.
func NewLocal(dir string) *FsStore {
	return &FsStore{fs: afero.NewBasePathFs(afero.NewOsFs(), dir)}
}

// NewMemory creates an in-memory store for tests.
func NewMemory() *FsStore {
	return &FsStore{fs: afero.NewMemMapFs()}
}

// Open returns a reader for the bytes at key.
func (s *FsStore) Open(key string) (io.ReadCloser, error) {
	f, err := s.fs.Open(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return f, nil
}

// ReadAll is a convenience wrapper around Open for whole-blob reads.
func (s *FsStore) ReadAll(key string) ([]byte, error) {
	f, err := s.Open(key)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Save writes data under key, creating parent directories as needed.
func (s *FsStore) Save(key string, data []byte) (string, error) {
	if dir := path.Dir(key); dir != "." && dir != "/" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(s.fs, key, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	return key, nil
}

// Delete removes the bytes at key.
func (s *FsStore) Delete(key string) error {
	err := s.fs.Remove(key)
	if err != nil && !errors.Is(err, afero.ErrFileNotFound) {
		// afero wraps os errors; fall back to existence check
		if s.Exists(key) {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return nil
}

// Exists reports whether key is present.
func (s *FsStore) Exists(key string) bool {
	ok, err := afero.Exists(s.fs, key)
	return err == nil && ok
}

// ReadAll reads the full contents at key from any Store.
func ReadAll(s Store, key string) ([]byte, error) {
	if fs, ok := s.(*FsStore); ok {
		return fs.ReadAll(key)
	}
	f, err := s.Open(key)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
