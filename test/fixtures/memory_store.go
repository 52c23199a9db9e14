package fixtures

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// MemoryStore is a domain.KeyValueStore keeping JSON documents in memory.
// It counts saves per key so tests can assert write-through behaviour.
type MemoryStore struct {
	mu      sync.Mutex
	docs    map[string][]byte
	saves   map[string]int
	SaveErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string][]byte),
		saves: make(map[string]int),
	}
}

// Put seeds key with raw bytes (which may be invalid JSON).
func (s *MemoryStore) Put(key string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = raw
}

// Raw returns the stored bytes for key.
func (s *MemoryStore) Raw(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[key]
}

// Saves returns how many successful saves key has seen.
func (s *MemoryStore) Saves(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[key]
}

func (s *MemoryStore) Load(key string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.docs[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, &domain.PersistenceError{Op: "load", Key: key, Err: err}
	}
	return true, nil
}

func (s *MemoryStore) Save(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return &domain.PersistenceError{Op: "save", Key: key, Err: s.SaveErr}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return &domain.PersistenceError{Op: "save", Key: key, Err: err}
	}
	s.docs[key] = raw
	s.saves[key]++
	return nil
}

// ErrDiskFull is a canned persistence failure.
var ErrDiskFull = errors.New("disk full")

var _ domain.KeyValueStore = (*MemoryStore)(nil)
