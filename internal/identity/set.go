package identity

import (
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// persistedSet is an insertion-ordered string set mirrored to one
// KeyValueStore document (a JSON array). Every mutation is written through.
type persistedSet struct {
	mu     sync.RWMutex
	items  []string
	index  map[string]struct{}
	store  domain.KeyValueStore
	key    string
	logger *zap.Logger
}

func newPersistedSet(store domain.KeyValueStore, key string, logger *zap.Logger) *persistedSet {
	s := &persistedSet{
		index:  make(map[string]struct{}),
		store:  store,
		key:    key,
		logger: logger,
	}
	s.load()
	return s
}

// load reads the backing document. A missing or unreadable document is
// replaced by an empty one; loading never fails.
func (s *persistedSet) load() {
	var items []string
	found, err := s.store.Load(s.key, &items)
	if err != nil {
		s.logger.Warn("unreadable document, starting empty",
			zap.String("key", s.key), zap.Error(err))
		found = false
		items = nil
	}

	for _, it := range items {
		if it == "" {
			continue
		}
		if _, ok := s.index[it]; ok {
			continue
		}
		s.index[it] = struct{}{}
		s.items = append(s.items, it)
	}

	if !found {
		if err := s.persist(); err != nil {
			s.logger.Warn("failed to write empty document",
				zap.String("key", s.key), zap.Error(err))
		}
	}

	s.logger.Debug("document loaded",
		zap.String("key", s.key), zap.Int("count", len(s.items)))
}

func (s *persistedSet) contains(v string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[v]
	return ok
}

// add inserts v and persists. The in-memory insert is kept even when the
// save fails.
func (s *persistedSet) add(v string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[v]; ok {
		return false, nil
	}
	s.index[v] = struct{}{}
	s.items = append(s.items, v)
	return true, s.persist()
}

// remove deletes v and persists only if it was present.
func (s *persistedSet) remove(v string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[v]; !ok {
		return false, nil
	}
	delete(s.index, v)
	for i, it := range s.items {
		if it == v {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	return true, s.persist()
}

func (s *persistedSet) list() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

func (s *persistedSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// persist must be called with mu held.
func (s *persistedSet) persist() error {
	items := s.items
	if items == nil {
		items = []string{}
	}
	return s.store.Save(s.key, items)
}
