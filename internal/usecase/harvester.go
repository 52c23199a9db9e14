package usecase

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
)

const dayKeyLayout = "2006-01-02"

// HarvestResult reports one group's membership merge.
type HarvestResult struct {
	Group          domain.Group
	Members        int
	Added          int
	AlreadyPresent int
}

// Harvester merges collection-group memberships into the registry.
// It owns the day-keyed guard that limits opportunistic harvests to one per
// group per calendar day.
type Harvester struct {
	client   domain.MessagingClient
	registry *identity.Registry
	groups   *identity.GroupSet
	clock    domain.Clock
	logger   *zap.Logger

	mu      sync.Mutex
	lastDay map[string]string // groupID -> day key of last harvest
}

// NewHarvester creates a harvester.
func NewHarvester(
	client domain.MessagingClient,
	reg *identity.Registry,
	groups *identity.GroupSet,
	clock domain.Clock,
	logger *zap.Logger,
) *Harvester {
	return &Harvester{
		client:   client,
		registry: reg,
		groups:   groups,
		clock:    clock,
		logger:   logger.Named("harvester"),
		lastDay:  make(map[string]string),
	}
}

// HarvestGroup adds every member of groupID except the bot to the registry.
func (h *Harvester) HarvestGroup(ctx context.Context, groupID string) (*HarvestResult, error) {
	snap, err := h.client.GroupSnapshot(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", groupID, err)
	}

	self := h.client.SelfID()
	raws := make([]string, 0, len(snap.Members))
	for _, m := range snap.Members {
		if self != "" && identity.Normalize(m.ID) == self {
			continue
		}
		raws = append(raws, m.ID)
	}

	res, err := h.registry.BulkAdd(raws)
	if err != nil {
		h.logger.Warn("some harvested identities were not persisted",
			zap.String("group", snap.Name), zap.Error(err))
	}

	result := &HarvestResult{
		Group:          snap.Group,
		Members:        len(raws),
		Added:          res.Added,
		AlreadyPresent: res.AlreadyPresent,
	}
	h.logger.Info("group harvested",
		zap.String("group", snap.Name),
		zap.Int("members", result.Members),
		zap.Int("added", result.Added))
	return result, nil
}

// HarvestAll harvests every joined group listed in the collection set and
// marks each as harvested today.
func (h *Harvester) HarvestAll(ctx context.Context) ([]HarvestResult, error) {
	groups, err := h.client.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	results := make([]HarvestResult, 0)
	for _, g := range groups {
		if !h.groups.Contains(g.Name) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		day := h.mark(g.ID)
		res, err := h.HarvestGroup(ctx, g.ID)
		if err != nil {
			h.unmark(g.ID, day)
			h.logger.Warn("startup harvest failed", zap.String("group", g.Name), zap.Error(err))
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

// MaybeHarvest harvests a collection group at most once per calendar day.
// Called for every observed group message; returns nil result when skipped.
func (h *Harvester) MaybeHarvest(ctx context.Context, groupID, groupName string) (*HarvestResult, error) {
	if !h.groups.Contains(groupName) {
		return nil, nil
	}

	day := h.clock.Now().Format(dayKeyLayout)
	h.mu.Lock()
	if h.lastDay[groupID] == day {
		h.mu.Unlock()
		return nil, nil
	}
	h.lastDay[groupID] = day
	h.mu.Unlock()

	res, err := h.HarvestGroup(ctx, groupID)
	if err != nil {
		h.unmark(groupID, day)
		return nil, err
	}
	return res, nil
}

// HarvestedToday reports whether groupID was harvested on the current day.
func (h *Harvester) HarvestedToday(groupID string) bool {
	day := h.clock.Now().Format(dayKeyLayout)
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastDay[groupID] == day
}

func (h *Harvester) mark(groupID string) string {
	day := h.clock.Now().Format(dayKeyLayout)
	h.mu.Lock()
	h.lastDay[groupID] = day
	h.mu.Unlock()
	return day
}

// unmark clears a guard set for day so a failed harvest can be retried.
func (h *Harvester) unmark(groupID, day string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastDay[groupID] == day {
		delete(h.lastDay, groupID)
	}
}
