package engines

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// file is the on-disk layout.
type file struct {
	Engines []Engine `yaml:"engines"`
}

// Store persists the registry as a YAML file. A missing file reads as the
// defaults. Writes replace the file atomically. Store is safe for concurrent
// use within one process.
type Store struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewStore returns a store backed by path on fsys.
func NewStore(fsys afero.Fs, path string) *Store {
	return &Store{fs: fsys, path: path}
}

// NewMemoryStore returns a store that lives only in memory.
func NewMemoryStore() *Store {
	return NewStore(afero.NewMemMapFs(), "engines.yaml")
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

func (s *Store) load() ([]Engine, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read engines: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse engines %s: %w", s.path, err)
	}
	return f.Engines, nil
}

func (s *Store) save(list []Engine) error {
	data, err := yaml.Marshal(file{Engines: list})
	if err != nil {
		return fmt.Errorf("encode engines: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create engines dir: %w", err)
	}
	tmp, err := afero.TempFile(s.fs, dir, ".engines-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(name)
		return fmt.Errorf("write engines: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(name)
		return err
	}
	if err := s.fs.Rename(name, s.path); err != nil {
		_ = s.fs.Remove(name)
		return fmt.Errorf("replace engines file: %w", err)
	}
	slog.Debug("Saved engines", "path", s.path, "count", len(list))
	return nil
}

// update loads the registry, applies fn and saves the result.
func (s *Store) update(fn func([]Engine) ([]Engine, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := s.load()
	if err != nil {
		return err
	}
	list, err = fn(list)
	if err != nil {
		return err
	}
	return s.save(list)
}

// List returns every engine in registry order.
func (s *Store) List() ([]Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Enabled returns the enabled engines in registry order.
func (s *Store) Enabled() ([]Engine, error) {
	list, err := s.List()
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(list, func(e Engine) bool { return !e.Enabled }), nil
}

// Get returns the engine with the given ID.
func (s *Store) Get(id string) (Engine, error) {
	list, err := s.List()
	if err != nil {
		return Engine{}, err
	}
	if i := indexOf(list, id); i >= 0 {
		return list[i], nil
	}
	return Engine{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// FindByName returns the engine with the given name, ignoring case.
func (s *Store) FindByName(name string) (Engine, error) {
	list, err := s.List()
	if err != nil {
		return Engine{}, err
	}
	for _, e := range list {
		if strings.EqualFold(e.Name, strings.TrimSpace(name)) {
			return e, nil
		}
	}
	return Engine{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Add validates and appends a new, enabled engine.
func (s *Store) Add(name, url string) (Engine, error) {
	name, url, err := validate(name, url)
	if err != nil {
		return Engine{}, err
	}
	e := Engine{ID: uuid.NewString(), Name: name, URL: url, Enabled: true}
	err = s.update(func(list []Engine) ([]Engine, error) {
		if err := checkUnique(list, name, url, ""); err != nil {
			return nil, err
		}
		return append(list, e), nil
	})
	if err != nil {
		return Engine{}, err
	}
	return e, nil
}

// Edit renames an engine or changes its URL.
func (s *Store) Edit(id, name, url string) (Engine, error) {
	name, url, err := validate(name, url)
	if err != nil {
		return Engine{}, err
	}
	var out Engine
	err = s.update(func(list []Engine) ([]Engine, error) {
		i := indexOf(list, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err := checkUnique(list, name, url, id); err != nil {
			return nil, err
		}
		list[i].Name, list[i].URL = name, url
		out = list[i]
		return list, nil
	})
	return out, err
}

// Delete removes an engine.
func (s *Store) Delete(id string) error {
	return s.update(func(list []Engine) ([]Engine, error) {
		i := indexOf(list, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return slices.Delete(list, i, i+1), nil
	})
}

// Toggle flips an engine's enabled flag.
func (s *Store) Toggle(id string) (Engine, error) {
	var out Engine
	err := s.update(func(list []Engine) ([]Engine, error) {
		i := indexOf(list, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		list[i].Enabled = !list[i].Enabled
		out = list[i]
		return list, nil
	})
	return out, err
}

// AddTemplate adds a predefined engine. It fails if an engine with the
// template's name or URL already exists.
func (s *Store) AddTemplate(key string) (Engine, error) {
	t, ok := Templates[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Engine{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, key)
	}
	return s.Add(t.Name, t.URL)
}

// Reset restores the default engines.
func (s *Store) Reset() ([]Engine, error) {
	defaults := Defaults()
	err := s.update(func([]Engine) ([]Engine, error) { return defaults, nil })
	if err != nil {
		return nil, err
	}
	return defaults, nil
}

func indexOf(list []Engine, id string) int {
	return slices.IndexFunc(list, func(e Engine) bool { return e.ID == id })
}

// TemplateKeys returns the template keys in sorted order.
func TemplateKeys() []string {
	keys := make([]string, 0, len(Templates))
	for k := range Templates {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
