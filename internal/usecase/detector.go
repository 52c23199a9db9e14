// Package usecase contains application business logic.
package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
)

// Detector matches group members against the identity registry.
// It has no side effects.
type Detector struct {
	registry  *identity.Registry
	directory domain.GroupDirectory
	logger    *zap.Logger
}

// NewDetector creates a detector reading reg and resolving names via dir.
func NewDetector(reg *identity.Registry, dir domain.GroupDirectory, logger *zap.Logger) *Detector {
	return &Detector{
		registry:  reg,
		directory: dir,
		logger:    logger.Named("detector"),
	}
}

// Scan returns a detection for every registered member of snap.
func (d *Detector) Scan(ctx context.Context, snap *domain.GroupSnapshot) []domain.Detection {
	detections := make([]domain.Detection, 0)
	for _, m := range snap.Members {
		if det, ok := d.match(ctx, snap, m); ok {
			detections = append(detections, det)
		}
	}
	return detections
}

// ScanJoined checks only the members that just joined. Admin flags come from
// snap when the member appears there.
func (d *Detector) ScanJoined(ctx context.Context, snap *domain.GroupSnapshot, joinedIDs []string) []domain.Detection {
	byIdentity := make(map[domain.Identity]domain.Member, len(snap.Members))
	for _, m := range snap.Members {
		byIdentity[identity.Normalize(m.ID)] = m
	}

	detections := make([]domain.Detection, 0)
	for _, id := range joinedIDs {
		m, ok := byIdentity[identity.Normalize(id)]
		if !ok {
			m = domain.Member{ID: id}
		}
		if det, ok := d.match(ctx, snap, m); ok {
			detections = append(detections, det)
		}
	}
	return detections
}

func (d *Detector) match(ctx context.Context, snap *domain.GroupSnapshot, m domain.Member) (domain.Detection, bool) {
	id := identity.Normalize(m.ID)
	if id == "" || !d.registry.Contains(string(id)) {
		return domain.Detection{}, false
	}
	return domain.Detection{
		GroupID:      snap.ID,
		GroupName:    snap.Name,
		MemberID:     m.ID,
		Identity:     id,
		DisplayName:  d.displayName(ctx, m.ID, id),
		IsGroupAdmin: m.Privileged(),
	}, true
}

// displayName resolves push name, then profile name, then the identity.
func (d *Detector) displayName(ctx context.Context, memberID string, id domain.Identity) string {
	contact, err := d.directory.ResolveContact(ctx, memberID)
	if err != nil {
		d.logger.Debug("contact lookup failed, using number",
			zap.String("member", memberID), zap.Error(err))
		return string(id)
	}
	if contact.PushName != "" {
		return contact.PushName
	}
	if contact.Name != "" {
		return contact.Name
	}
	return string(id)
}
