// Package journal holds the append-only audit logs: watchdog detections and
// outreach deliveries. Both are newest-first and capped.
package journal

import (
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// cappedLog is a newest-first list bounded to limit entries, written through
// to one KeyValueStore document on every change.
type cappedLog[T any] struct {
	mu      sync.RWMutex
	entries []T
	limit   int
	store   domain.KeyValueStore
	key     string
	logger  *zap.Logger
}

func newCappedLog[T any](store domain.KeyValueStore, key string, limit int, logger *zap.Logger) *cappedLog[T] {
	l := &cappedLog[T]{
		limit:  limit,
		store:  store,
		key:    key,
		logger: logger,
	}

	var entries []T
	found, err := store.Load(key, &entries)
	if err != nil {
		logger.Warn("unreadable log, starting empty", zap.String("key", key), zap.Error(err))
		entries, found = nil, false
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	l.entries = entries
	if !found {
		if err := l.persist(); err != nil {
			logger.Warn("failed to write empty log", zap.String("key", key), zap.Error(err))
		}
	}
	return l
}

// prepend inserts e as the newest entry, evicting the oldest beyond limit.
// The in-memory append survives a failed save.
func (l *cappedLog[T]) prepend(e T) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]T, 0, min(len(l.entries)+1, l.limit))
	entries = append(entries, e)
	entries = append(entries, l.entries...)
	if len(entries) > l.limit {
		entries = entries[:l.limit]
	}
	l.entries = entries
	return l.persist()
}

// recent returns up to n newest entries; n <= 0 returns all.
func (l *cappedLog[T]) recent(n int) []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]T, n)
	copy(out, l.entries[:n])
	return out
}

func (l *cappedLog[T]) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// clear empties the log and returns how many entries were dropped.
func (l *cappedLog[T]) clear() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.entries)
	l.entries = nil
	return n, l.persist()
}

// each calls fn for every entry, newest first, under the read lock.
func (l *cappedLog[T]) each(fn func(T)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		fn(e)
	}
}

func (l *cappedLog[T]) persist() error {
	entries := l.entries
	if entries == nil {
		entries = []T{}
	}
	return l.store.Save(l.key, entries)
}
