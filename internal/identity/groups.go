package identity

import (
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// CollectionGroupsKey is the KeyValueStore document holding collection groups.
const CollectionGroupsKey = "collection-groups"

// GroupSet is the set of group display names whose members are harvested
// into the Registry.
type GroupSet struct {
	set *persistedSet
}

// NewGroupSet loads the collection-group document.
func NewGroupSet(store domain.KeyValueStore, logger *zap.Logger) *GroupSet {
	return &GroupSet{set: newPersistedSet(store, CollectionGroupsKey, logger.Named("collection_groups"))}
}

func (g *GroupSet) Contains(name string) bool {
	return g.set.contains(strings.TrimSpace(name))
}

// Add flags a group name for harvesting.
func (g *GroupSet) Add(name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, &domain.ValidationError{Reason: "group name is empty"}
	}
	return g.set.add(name)
}

func (g *GroupSet) Remove(name string) (bool, error) {
	return g.set.remove(strings.TrimSpace(name))
}

func (g *GroupSet) List() []string {
	return g.set.list()
}
