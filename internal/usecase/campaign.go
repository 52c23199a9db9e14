package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
	"github.com/eliteGoblin/focusd/chat_mon/internal/journal"
	"github.com/eliteGoblin/focusd/chat_mon/internal/settings"
)

// CampaignStatus is how a campaign run ended.
type CampaignStatus string

const (
	CampaignCompleted     CampaignStatus = "completed"
	CampaignOutsideWindow CampaignStatus = "outside_window"
	CampaignPaused        CampaignStatus = "paused"
	CampaignInterrupted   CampaignStatus = "interrupted"
)

// CampaignState is the lifecycle state of one campaign type.
type CampaignState string

const (
	StateNotStarted CampaignState = "not_started"
	StateSending    CampaignState = "sending"
	StateCompleted  CampaignState = "completed"
	StatePaused     CampaignState = "paused"
)

// CampaignResult is the (possibly partial) report of a run.
type CampaignResult struct {
	RunID      string
	Type       domain.CampaignType
	Status     CampaignStatus
	Sent       int
	Failed     int
	Invalid    int
	Total      int // pending targets when the run started
	Remaining  int // targets not attempted
	StartedAt  time.Time
	FinishedAt time.Time
}

// CampaignScheduler delivers outreach campaigns to the registry under batch
// pacing and the sending window. Only one run is active at a time.
type CampaignScheduler struct {
	client     domain.MessagingClient
	registry   *identity.Registry
	deliveries *journal.DeliveryLog
	settings   *settings.Campaign
	sleeper    domain.Sleeper
	clock      domain.Clock
	logger     *zap.Logger

	running atomic.Bool

	mu     sync.Mutex
	states map[domain.CampaignType]CampaignState
}

// NewCampaignScheduler creates a scheduler.
func NewCampaignScheduler(
	client domain.MessagingClient,
	reg *identity.Registry,
	deliveries *journal.DeliveryLog,
	cfg *settings.Campaign,
	sleeper domain.Sleeper,
	clock domain.Clock,
	logger *zap.Logger,
) *CampaignScheduler {
	return &CampaignScheduler{
		client:     client,
		registry:   reg,
		deliveries: deliveries,
		settings:   cfg,
		sleeper:    sleeper,
		clock:      clock,
		logger:     logger.Named("campaign"),
		states:     make(map[domain.CampaignType]CampaignState),
	}
}

// Running reports whether a campaign run is active.
func (c *CampaignScheduler) Running() bool {
	return c.running.Load()
}

// State returns the lifecycle state of campaign type t.
func (c *CampaignScheduler) State(t domain.CampaignType) CampaignState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.states[t]; ok {
		return s
	}
	return StateNotStarted
}

func (c *CampaignScheduler) setState(t domain.CampaignType, s CampaignState) {
	c.mu.Lock()
	c.states[t] = s
	c.mu.Unlock()
}

// Pending returns registry identities without a "sent" record for t, in
// registry order.
func (c *CampaignScheduler) Pending(t domain.CampaignType) []domain.Identity {
	sent := c.deliveries.Sent(t)
	pending := make([]domain.Identity, 0)
	for _, id := range c.registry.List() {
		if _, ok := sent[id]; !ok {
			pending = append(pending, id)
		}
	}
	return pending
}

// InWindow reports whether sending is currently allowed.
func (c *CampaignScheduler) InWindow() bool {
	w, err := WindowOf(c.settings.Get())
	if err != nil {
		c.logger.Warn("invalid sending window, treating as closed", zap.Error(err))
		return false
	}
	return w.Contains(c.clock.Now())
}

// Run sends campaign t to every pending target. It returns domain.ErrBusy
// when another run is active. Per-target failures are recorded, never fatal.
func (c *CampaignScheduler) Run(ctx context.Context, t domain.CampaignType) (*CampaignResult, error) {
	if !t.Valid() {
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("unknown campaign type %q", t)}
	}
	if !c.running.CompareAndSwap(false, true) {
		return nil, domain.ErrBusy
	}
	defer c.running.Store(false)

	cfg := c.settings.Get()
	res := &CampaignResult{
		RunID:     newRunID(),
		Type:      t,
		StartedAt: c.clock.Now(),
	}
	log := c.logger.With(zap.String("run_id", res.RunID), zap.String("type", string(t)))

	if !c.InWindow() {
		res.Status = CampaignOutsideWindow
		res.FinishedAt = res.StartedAt
		log.Info("campaign not started, outside sending window")
		return res, nil
	}

	pending := c.Pending(t)
	res.Total = len(pending)
	c.setState(t, StateSending)
	log.Info("campaign started", zap.Int("pending", res.Total))

	batch := cfg.BatchSize
	if batch < 1 {
		batch = 1
	}

	res.Status = CampaignCompleted
	for i, id := range pending {
		if ctx.Err() != nil {
			res.Status = CampaignInterrupted
			res.Remaining = len(pending) - i
			break
		}

		switch c.deliver(ctx, cfg, id, t).Status {
		case domain.DeliverySent:
			res.Sent++
		case domain.DeliveryFailed:
			res.Failed++
		case domain.DeliveryInvalid:
			res.Invalid++
		}

		pos := i + 1
		if pos >= len(pending) {
			break
		}

		if pos%batch == 0 {
			log.Info("batch complete, pausing",
				zap.Int("position", pos), zap.Duration("delay", cfg.BatchDelay()))
			if err := c.sleeper.Sleep(ctx, cfg.BatchDelay()); err != nil {
				res.Status = CampaignInterrupted
				res.Remaining = len(pending) - pos
				break
			}
			if !c.InWindow() {
				res.Status = CampaignPaused
				res.Remaining = len(pending) - pos
				break
			}
			continue
		}

		if err := c.sleeper.Sleep(ctx, cfg.ItemDelay()); err != nil {
			res.Status = CampaignInterrupted
			res.Remaining = len(pending) - pos
			break
		}
	}

	switch res.Status {
	case CampaignCompleted:
		c.setState(t, StateCompleted)
	default:
		c.setState(t, StatePaused)
	}

	res.FinishedAt = c.clock.Now()
	log.Info("campaign finished",
		zap.String("status", string(res.Status)),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Int("invalid", res.Invalid),
		zap.Int("remaining", res.Remaining))
	return res, nil
}

// Deliver sends campaign t to a single identity regardless of prior
// deliveries and the window, and records the outcome.
func (c *CampaignScheduler) Deliver(ctx context.Context, raw string, t domain.CampaignType) (domain.DeliveryRecord, error) {
	if !t.Valid() {
		return domain.DeliveryRecord{}, &domain.ValidationError{Reason: fmt.Sprintf("unknown campaign type %q", t)}
	}
	id := identity.NormalizeDigits(raw)
	if id == "" {
		return domain.DeliveryRecord{}, &domain.ValidationError{Reason: "invalid number: " + raw}
	}
	return c.deliver(ctx, c.settings.Get(), id, t), nil
}

// deliver validates the account, sends the message(s) and appends exactly
// one delivery record.
func (c *CampaignScheduler) deliver(ctx context.Context, cfg domain.CampaignConfig, id domain.Identity, t domain.CampaignType) domain.DeliveryRecord {
	rec := domain.DeliveryRecord{
		Timestamp:    c.clock.Now(),
		Identity:     id,
		CampaignType: t,
	}

	chatID, ok, err := c.client.ResolveAccount(ctx, id)
	switch {
	case err != nil:
		rec.Status = domain.DeliveryFailed
		rec.Detail = "account lookup failed: " + err.Error()
	case !ok:
		rec.Status = domain.DeliveryInvalid
		rec.Detail = "number not registered on WhatsApp"
	default:
		rec.Status, rec.Detail = c.send(ctx, cfg, chatID, t)
	}

	if err := c.deliveries.Append(rec); err != nil {
		c.logger.Warn("failed to persist delivery record",
			zap.String("identity", string(id)), zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("identity", string(id)),
		zap.String("type", string(t)),
		zap.String("status", string(rec.Status)),
	}
	if rec.Status == domain.DeliverySent {
		c.logger.Info("delivered", fields...)
	} else {
		c.logger.Warn("delivery not sent", append(fields, zap.String("detail", rec.Detail))...)
	}
	return rec
}

func (c *CampaignScheduler) send(ctx context.Context, cfg domain.CampaignConfig, chatID string, t domain.CampaignType) (domain.DeliveryStatus, string) {
	if t.IncludesGroup() {
		if err := c.client.SendText(ctx, chatID, GroupCampaignText(cfg)); err != nil {
			return domain.DeliveryFailed, "group message failed: " + err.Error()
		}
	}

	if t == domain.CampaignBoth {
		if err := c.sleeper.Sleep(ctx, cfg.MessageDelay()); err != nil {
			return domain.DeliveryFailed, "group message sent, interrupted before channel message"
		}
	}

	if t.IncludesChannel() {
		if err := c.client.SendText(ctx, chatID, ChannelCampaignText(cfg)); err != nil {
			if t == domain.CampaignBoth {
				return domain.DeliveryFailed, "group message sent, channel message failed: " + err.Error()
			}
			return domain.DeliveryFailed, "channel message failed: " + err.Error()
		}
	}

	switch t {
	case domain.CampaignGroupLink:
		return domain.DeliverySent, "group link sent"
	case domain.CampaignChannelLink:
		return domain.DeliverySent, "channel link sent"
	default:
		return domain.DeliverySent, "group and channel links sent"
	}
}
