package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/settings"
)

// SweepTiming holds the fixed pacing delays of a sweep.
type SweepTiming struct {
	GroupDelay  time.Duration // between groups
	WrapUpDelay time.Duration // between wrap-up notices
}

// DefaultSweepTiming returns the stock pacing.
func DefaultSweepTiming() SweepTiming {
	return SweepTiming{
		GroupDelay:  5 * time.Second,
		WrapUpDelay: 2 * time.Second,
	}
}

// GroupSweep is the per-group line of a sweep report.
type GroupSweep struct {
	Group domain.Group
	Found int
}

// SweepReport aggregates one full pass over every group.
type SweepReport struct {
	RunID           string
	StartedAt       time.Time
	FinishedAt      time.Time
	GroupsScanned   int
	GroupsFailed    int
	IdentitiesFound int
	Removed         int
	ProtectedAdmins int
	Interrupted     bool
	PerGroup        []GroupSweep
}

// Sweeper runs the detection and response path across all groups.
// Only one sweep runs at a time.
type Sweeper struct {
	client    domain.MessagingClient
	detector  *Detector
	responder *Responder
	settings  *settings.Responder
	sleeper   domain.Sleeper
	clock     domain.Clock
	timing    SweepTiming
	running   atomic.Bool
	logger    *zap.Logger
}

// NewSweeper creates a sweeper.
func NewSweeper(
	client domain.MessagingClient,
	detector *Detector,
	responder *Responder,
	cfg *settings.Responder,
	sleeper domain.Sleeper,
	clock domain.Clock,
	timing SweepTiming,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		client:    client,
		detector:  detector,
		responder: responder,
		settings:  cfg,
		sleeper:   sleeper,
		clock:     clock,
		timing:    timing,
		logger:    logger.Named("sweeper"),
	}
}

// Running reports whether a sweep is in progress.
func (s *Sweeper) Running() bool {
	return s.running.Load()
}

// Run sweeps every group once. It returns domain.ErrBusy if a sweep is
// already running. A failing group is counted and skipped.
func (s *Sweeper) Run(ctx context.Context) (*SweepReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, domain.ErrBusy
	}
	defer s.running.Store(false)

	report := &SweepReport{
		RunID:     newRunID(),
		StartedAt: s.clock.Now(),
		PerGroup:  make([]GroupSweep, 0),
	}
	log := s.logger.With(zap.String("run_id", report.RunID))
	log.Info("sweep started")

	groups, err := s.client.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	for i, g := range groups {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}

		s.sweepGroup(ctx, g, report, log)

		if i < len(groups)-1 {
			if err := s.sleeper.Sleep(ctx, s.timing.GroupDelay); err != nil {
				report.Interrupted = true
				break
			}
		}
	}

	if !report.Interrupted && s.settings.Get().NotifyOnSweepComplete {
		s.sendWrapUps(ctx, report)
	}

	report.FinishedAt = s.clock.Now()
	log.Info("sweep finished",
		zap.Int("groups_scanned", report.GroupsScanned),
		zap.Int("groups_failed", report.GroupsFailed),
		zap.Int("identities_found", report.IdentitiesFound),
		zap.Int("removed", report.Removed),
		zap.Int("protected_admins", report.ProtectedAdmins),
		zap.Bool("interrupted", report.Interrupted))
	return report, nil
}

func (s *Sweeper) sweepGroup(ctx context.Context, g domain.Group, report *SweepReport, log *zap.Logger) {
	snap, err := s.client.GroupSnapshot(ctx, g.ID)
	if err != nil {
		report.GroupsFailed++
		log.Warn("failed to scan group", zap.String("group", g.Name), zap.Error(err))
		return
	}
	if snap.Name == "" {
		snap.Name = g.Name
	}

	report.GroupsScanned++
	detections := s.detector.Scan(ctx, snap)
	for _, det := range detections {
		report.IdentitiesFound++
		out := s.responder.Respond(ctx, det, domain.SourceSweep)
		if det.IsGroupAdmin {
			report.ProtectedAdmins++
		}
		if out.Removed {
			report.Removed++
		}
	}
	report.PerGroup = append(report.PerGroup, GroupSweep{Group: g, Found: len(detections)})
}

func (s *Sweeper) sendWrapUps(ctx context.Context, report *SweepReport) {
	for i, gs := range report.PerGroup {
		if i > 0 {
			if err := s.sleeper.Sleep(ctx, s.timing.WrapUpDelay); err != nil {
				return
			}
		}
		if err := s.client.SendText(ctx, gs.Group.ID, WrapUpText(gs.Found)); err != nil {
			s.logger.Warn("failed to send wrap-up notice",
				zap.String("group", gs.Group.Name), zap.Error(err))
		}
	}
}

// newRunID returns a time-ordered run identifier.
func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
