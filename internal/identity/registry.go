package identity

import (
	"errors"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// RegistryKey is the KeyValueStore document holding the competitor list.
const RegistryKey = "competitors"

// Registry is the ordered set of flagged identities. The watchdog uses it as
// a block list and the outreach agent reads the same data as its lead list.
// Safe for concurrent use.
type Registry struct {
	set *persistedSet
}

// BulkResult summarizes a BulkAdd.
type BulkResult struct {
	Added          int
	AlreadyPresent int
	Rejected       int // empty after normalization
}

// NewRegistry loads the registry document, creating or repairing it if needed.
func NewRegistry(store domain.KeyValueStore, logger *zap.Logger) *Registry {
	return &Registry{set: newPersistedSet(store, RegistryKey, logger.Named("registry"))}
}

// Contains reports whether the normalized form of raw is registered.
func (r *Registry) Contains(raw string) bool {
	id := NormalizeDigits(raw)
	if id == "" {
		return false
	}
	return r.set.contains(string(id))
}

// Add normalizes raw and inserts it. inserted is false when it was already
// present, in which case nothing is written.
func (r *Registry) Add(raw string) (id domain.Identity, inserted bool, err error) {
	id = NormalizeDigits(raw)
	if id == "" {
		return "", false, &domain.ValidationError{Reason: "invalid number: " + raw}
	}
	inserted, err = r.set.add(string(id))
	return id, inserted, err
}

// Remove normalizes raw and deletes it. Returns false (and writes nothing)
// when raw was not registered.
func (r *Registry) Remove(raw string) (bool, error) {
	id := NormalizeDigits(raw)
	if id == "" {
		return false, nil
	}
	return r.set.remove(string(id))
}

// BulkAdd adds every entry, persisting after each insert. A failing item
// never stops the batch; persistence errors are joined into err.
func (r *Registry) BulkAdd(raws []string) (BulkResult, error) {
	var res BulkResult
	var errs []error
	for _, raw := range raws {
		id := NormalizeDigits(raw)
		if id == "" {
			res.Rejected++
			continue
		}
		inserted, err := r.set.add(string(id))
		if err != nil {
			errs = append(errs, err)
		}
		if inserted {
			res.Added++
		} else {
			res.AlreadyPresent++
		}
	}
	return res, errors.Join(errs...)
}

// List returns the registered identities in insertion order.
func (r *Registry) List() []domain.Identity {
	items := r.set.list()
	out := make([]domain.Identity, len(items))
	for i, it := range items {
		out[i] = domain.Identity(it)
	}
	return out
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	return r.set.len()
}
