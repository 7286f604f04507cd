package presets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a preset does not exist.
var ErrNotFound = errors.New("preset not found")

// ErrNameTaken is returned when creating a preset whose name already exists
// within its kind.
var ErrNameTaken = errors.New("preset name already in use")

// Store persists presets as one YAML file per preset under dir. All mutations
// happen under a single lock so the one-default-per-kind invariant holds even
// with concurrent API calls.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates a preset store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create presets dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// EnsureDefaults seeds the default preset for each kind when that kind has no
// presets yet.
func (s *Store) EnsureDefaults() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadAll()
	if err != nil {
		return err
	}

	byKind := map[Kind]bool{}
	for _, p := range all {
		byKind[p.Kind] = true
	}

	for _, seed := range []*Preset{DefaultLayoutPreset(), DefaultTextLayerPreset()} {
		if byKind[seed.Kind] {
			continue
		}
		seed.ID = uuid.New().String()
		now := time.Now().UTC()
		seed.CreatedAt = now
		seed.UpdatedAt = now
		if err := s.write(seed); err != nil {
			return err
		}
	}
	return nil
}

// Create persists a new preset. When p.Default is set, the default flag is
// cleared on every other preset of the same kind.
func (s *Store) Create(p *Preset) (*Preset, error) {
	if !p.Kind.Valid() {
		return nil, fmt.Errorf("unknown preset kind %q", p.Kind)
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("preset name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	for _, existing := range all {
		if existing.Kind == p.Kind && existing.Name == p.Name {
			return nil, fmt.Errorf("%w: %s/%s", ErrNameTaken, p.Kind, p.Name)
		}
	}

	clone := *p
	clone.ID = uuid.New().String()
	now := time.Now().UTC()
	clone.CreatedAt = now
	clone.UpdatedAt = now

	if clone.Default {
		if err := s.clearDefault(all, clone.Kind); err != nil {
			return nil, err
		}
	}
	if err := s.write(&clone); err != nil {
		return nil, err
	}
	return &clone, nil
}

// Get returns a preset by ID.
func (s *Store) Get(id string) (*Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

// List returns all presets, default-first then by name within each kind.
func (s *Store) List() ([]*Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Kind != all[j].Kind {
			return all[i].Kind < all[j].Kind
		}
		if all[i].Default != all[j].Default {
			return all[i].Default
		}
		return all[i].Name < all[j].Name
	})
	return all, nil
}

// ListKind returns presets of one kind.
func (s *Store) ListKind(kind Kind) ([]*Preset, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var out []*Preset
	for _, p := range all {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetDefault returns the default preset of a kind, or ErrNotFound.
func (s *Store) GetDefault(kind Kind) (*Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.Kind == kind && p.Default {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no default %s preset", ErrNotFound, kind)
}

// SetDefault marks the preset as its kind's default, clearing the flag from
// every sibling of the same kind in the same critical section.
func (s *Store) SetDefault(id string) (*Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.read(id)
	if err != nil {
		return nil, err
	}

	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.ID == target.ID || p.Kind != target.Kind || !p.Default {
			continue
		}
		p.Default = false
		p.UpdatedAt = time.Now().UTC()
		if err := s.write(p); err != nil {
			return nil, err
		}
	}

	target.Default = true
	target.UpdatedAt = time.Now().UTC()
	if err := s.write(target); err != nil {
		return nil, err
	}
	return target, nil
}

// Delete removes a preset by ID.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.read(id); err != nil {
		return err
	}
	return os.Remove(s.path(id))
}

// clearDefault unsets the default flag on all presets of a kind.
// Caller must hold the lock.
func (s *Store) clearDefault(all []*Preset, kind Kind) error {
	for _, p := range all {
		if p.Kind != kind || !p.Default {
			continue
		}
		p.Default = false
		p.UpdatedAt = time.Now().UTC()
		if err := s.write(p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".yaml")
}

func (s *Store) read(id string) (*Preset, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read preset: %w", err)
	}
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse preset %s: %w", id, err)
	}
	return &p, nil
}

func (s *Store) write(p *Preset) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal preset: %w", err)
	}
	if err := os.WriteFile(s.path(p.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write preset: %w", err)
	}
	return nil
}

func (s *Store) loadAll() ([]*Preset, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets dir: %w", err)
	}
	var out []*Preset
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".yaml")
		p, err := s.read(id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
