// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store is a flat string key/value store for persisted settings.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// MapStore is an in-memory Store. The zero value is ready to use.
type MapStore struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Store = (*MapStore)(nil)

func (s *MapStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MapStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
}

// Snapshot returns a copy of every stored key.
func (s *MapStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// FileStore is a MapStore backed by a YAML file of string keys and values.
// Set only changes memory; call Save to persist and Load to pick up edits
// made by other processes.
type FileStore struct {
	MapStore
	path string
}

var _ Store = (*FileStore)(nil)

// OpenFileStore reads path if it exists. A missing file yields an empty
// store that Save will create.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Load replaces the in-memory values with the file contents.
func (s *FileStore) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store %s: %w", s.path, err)
	}

	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("failed to parse store %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// Save writes every key to the backing file.
func (s *FileStore) Save() error {
	data, err := yaml.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write store %s: %w", s.path, err)
	}
	return nil
}

// OpenStore returns a FileStore for a non-empty path and an in-memory store
// otherwise.
func OpenStore(path string) (Store, error) {
	if path == "" {
		return &MapStore{}, nil
	}
	fs, err := OpenFileStore(path)
	if err != nil {
		return nil, err
	}
	return fs, nil
}
