package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// JSONStore implements domain.KeyValueStore with one indented JSON file per
// key inside a data directory (e.g. competitors.json, detections.json).
type JSONStore struct {
	dir string
	mu  sync.Mutex
}

// NewJSONStore creates the data directory if needed.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

// Path returns the file backing key.
func (s *JSONStore) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Load decodes the file for key into v. A missing file is not an error.
func (s *JSONStore) Load(key string, v any) (bool, error) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &domain.PersistenceError{Op: "load", Key: key, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, &domain.PersistenceError{Op: "load", Key: key, Err: err}
	}
	return true, nil
}

// Save writes v atomically (temp file + rename).
func (s *JSONStore) Save(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &domain.PersistenceError{Op: "save", Key: key, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(key)
	tmpPath := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return &domain.PersistenceError{Op: "save", Key: key, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &domain.PersistenceError{Op: "save", Key: key, Err: err}
	}
	return nil
}

// Ensure JSONStore implements domain.KeyValueStore.
var _ domain.KeyValueStore = (*JSONStore)(nil)
