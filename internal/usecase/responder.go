package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
	"github.com/eliteGoblin/focusd/chat_mon/internal/journal"
	"github.com/eliteGoblin/focusd/chat_mon/internal/settings"
)

// ResponderTiming holds the fixed pacing delays of the responder.
type ResponderTiming struct {
	AdminMessageDelay time.Duration // between private admin notices
	RemovalDelay      time.Duration // after every removal attempt
}

// DefaultResponderTiming returns the stock pacing.
func DefaultResponderTiming() ResponderTiming {
	return ResponderTiming{
		AdminMessageDelay: time.Second,
		RemovalDelay:      2 * time.Second,
	}
}

// Outcome describes what Respond did for one detection.
type Outcome struct {
	Action         string
	Removed        bool
	GroupNotified  bool
	AdminsNotified int
	Record         domain.DetectionRecord
}

// Responder applies the responder policy to a detection and records it.
type Responder struct {
	client   domain.MessagingClient
	settings *settings.Responder
	log      *journal.DetectionLog
	sleeper  domain.Sleeper
	clock    domain.Clock
	timing   ResponderTiming
	logger   *zap.Logger
}

// NewResponder creates a responder.
func NewResponder(
	client domain.MessagingClient,
	cfg *settings.Responder,
	log *journal.DetectionLog,
	sleeper domain.Sleeper,
	clock domain.Clock,
	timing ResponderTiming,
	logger *zap.Logger,
) *Responder {
	return &Responder{
		client:   client,
		settings: cfg,
		log:      log,
		sleeper:  sleeper,
		clock:    clock,
		timing:   timing,
		logger:   logger.Named("responder"),
	}
}

// Respond notifies, optionally removes, and appends exactly one detection
// record. Admins are never removed. Sub-step failures are logged only.
func (r *Responder) Respond(ctx context.Context, det domain.Detection, source domain.DetectionSource) Outcome {
	cfg := r.settings.Get()
	now := r.clock.Now()
	text := AlertText(cfg, det, now)
	out := Outcome{}

	logFields := []zap.Field{
		zap.String("group", det.GroupName),
		zap.String("identity", string(det.Identity)),
		zap.String("source", string(source)),
	}

	if cfg.NotifyGroup {
		if err := r.client.SendText(ctx, det.GroupID, text); err != nil {
			r.logger.Warn("failed to alert group", append(logFields, zap.Error(err))...)
		} else {
			out.GroupNotified = true
		}
	}

	if cfg.NotifyAdmins {
		out.AdminsNotified = r.notifyAdmins(ctx, det, text+AdminNoticeSuffix)
	}

	switch {
	case det.IsGroupAdmin:
		out.Action = domain.ActionAdminExempt
	case cfg.AutoRemove:
		if err := r.client.RemoveMember(ctx, det.GroupID, det.MemberID); err != nil {
			r.logger.Warn("failed to remove member", append(logFields, zap.Error(err))...)
			out.Action = domain.ActionRemovalFailed
		} else {
			out.Removed = true
			out.Action = domain.ActionRemoved
		}
		_ = r.sleeper.Sleep(ctx, r.timing.RemovalDelay)
	default:
		out.Action = domain.ActionNotifiedOnly
	}

	out.Record = domain.DetectionRecord{
		Timestamp:   now,
		GroupID:     det.GroupID,
		GroupName:   det.GroupName,
		Identity:    det.Identity,
		DisplayName: det.DisplayName,
		Action:      out.Action,
		Source:      source,
	}
	if err := r.log.Append(out.Record); err != nil {
		r.logger.Warn("failed to persist detection record", append(logFields, zap.Error(err))...)
	}

	r.logger.Info("detection handled", append(logFields, zap.String("action", out.Action))...)
	return out
}

// notifyAdmins DMs every current admin of the group except the bot itself.
func (r *Responder) notifyAdmins(ctx context.Context, det domain.Detection, text string) int {
	snap, err := r.client.GroupSnapshot(ctx, det.GroupID)
	if err != nil {
		r.logger.Warn("failed to load admins", zap.String("group", det.GroupName), zap.Error(err))
		return 0
	}

	self := r.client.SelfID()
	sent := 0
	first := true
	for _, admin := range snap.Admins() {
		if self != "" && identity.Normalize(admin.ID) == self {
			continue
		}
		if !first {
			if err := r.sleeper.Sleep(ctx, r.timing.AdminMessageDelay); err != nil {
				return sent
			}
		}
		first = false

		if err := r.client.SendText(ctx, admin.ID, text); err != nil {
			r.logger.Warn("failed to notify admin",
				zap.String("admin", admin.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}
