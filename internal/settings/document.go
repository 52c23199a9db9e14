// Package settings holds the persisted, command-mutable configuration
// documents: the watchdog's responder policy and the outreach campaign.
package settings

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// Document is a single config value of type T mirrored to the store.
// Fields missing from the stored JSON keep their default values.
type Document[T any] struct {
	mu       sync.RWMutex
	value    T
	store    domain.KeyValueStore
	key      string
	validate func(T) error
	logger   *zap.Logger
}

func load[T any](store domain.KeyValueStore, key string, def T, validate func(T) error, logger *zap.Logger) *Document[T] {
	d := &Document[T]{
		value:    def,
		store:    store,
		key:      key,
		validate: validate,
		logger:   logger,
	}

	// Decode over a copy of the defaults so partial documents keep defaults.
	loaded := clone(def)
	found, err := store.Load(key, &loaded)
	switch {
	case err != nil:
		logger.Warn("unreadable config, using defaults", zap.String("key", key), zap.Error(err))
	case found && validate != nil && validate(loaded) != nil:
		logger.Warn("stored config out of range, using defaults",
			zap.String("key", key), zap.Error(validate(loaded)))
	case found:
		d.value = loaded
	}

	if !found || err != nil {
		if err := store.Save(key, d.value); err != nil {
			logger.Warn("failed to write default config", zap.String("key", key), zap.Error(err))
		}
	}
	return d
}

// Get returns a copy of the current value.
func (d *Document[T]) Get() T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.value
}

// Update applies fn to a copy of the value, validates it, then stores it.
// An error from fn or validation leaves the value untouched. A save failure
// is returned but the new value stays in effect.
func (d *Document[T]) Update(fn func(*T) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.value
	if err := fn(&next); err != nil {
		return err
	}
	if d.validate != nil {
		if err := d.validate(next); err != nil {
			return err
		}
	}
	d.value = next
	return d.store.Save(d.key, next)
}

// clone deep-copies v through JSON; config types are plain data.
func clone[T any](v T) T {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
