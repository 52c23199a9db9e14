// Package daemon runs the two long-lived agents: the watchdog and the
// outreach sender.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/command"
	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
	"github.com/eliteGoblin/focusd/chat_mon/internal/journal"
	"github.com/eliteGoblin/focusd/chat_mon/internal/settings"
	"github.com/eliteGoblin/focusd/chat_mon/internal/usecase"
)

// ErrEventsClosed is returned by Run when the client's event stream ends
// before the context is canceled.
var ErrEventsClosed = errors.New("event stream closed")

// WatchdogConfig holds watchdog daemon configuration.
type WatchdogConfig struct {
	SweepSchedule   string         // cron expression for the daily sweep
	Location        *time.Location // timezone of SweepSchedule
	StartupHarvest  bool           // harvest collection groups on start
	ResponderTiming usecase.ResponderTiming
	SweepTiming     usecase.SweepTiming
}

// DefaultWatchdogConfig returns default watchdog configuration.
func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{
		SweepSchedule:   "0 9 * * *",
		Location:        time.UTC,
		StartupHarvest:  true,
		ResponderTiming: usecase.DefaultResponderTiming(),
		SweepTiming:     usecase.DefaultSweepTiming(),
	}
}

// Watchdog is the detection daemon. It reacts to joins, sweeps every group
// on a schedule, harvests collection groups and serves admin commands.
type Watchdog struct {
	config     WatchdogConfig
	client     domain.MessagingClient
	registry   *identity.Registry
	groups     *identity.GroupSet
	detections *journal.DetectionLog
	settings   *settings.Responder
	detector   *usecase.Detector
	responder  *usecase.Responder
	sweeper    *usecase.Sweeper
	harvester  *usecase.Harvester
	logger     *zap.Logger

	// groupNames caches group display names; only the event loop touches it.
	groupNames map[string]string
}

// NewWatchdog loads the watchdog's documents from store and wires its
// components around one shared registry.
func NewWatchdog(
	config WatchdogConfig,
	client domain.MessagingClient,
	store domain.KeyValueStore,
	sleeper domain.Sleeper,
	clock domain.Clock,
	logger *zap.Logger,
) *Watchdog {
	if config.Location == nil {
		config.Location = time.UTC
	}
	logger = logger.Named("watchdog")

	w := &Watchdog{
		config:     config,
		client:     client,
		registry:   identity.NewRegistry(store, logger),
		groups:     identity.NewGroupSet(store, logger),
		detections: journal.NewDetectionLog(store, logger),
		settings:   settings.LoadResponder(store, logger),
		logger:     logger,
		groupNames: make(map[string]string),
	}
	w.detector = usecase.NewDetector(w.registry, client, logger)
	w.responder = usecase.NewResponder(client, w.settings, w.detections, sleeper, clock, config.ResponderTiming, logger)
	w.sweeper = usecase.NewSweeper(client, w.detector, w.responder, w.settings, sleeper, clock, config.SweepTiming, logger)
	w.harvester = usecase.NewHarvester(client, w.registry, w.groups, clock, logger)
	return w
}

// Registry returns the competitor registry the watchdog matches against.
func (w *Watchdog) Registry() *identity.Registry {
	return w.registry
}

// Run starts the watchdog loop. This blocks until ctx is canceled, then
// stops the scheduler and waits for background jobs.
func (w *Watchdog) Run(ctx context.Context) error {
	jobs := command.NewJobs(ctx, w.logger)
	router := w.router(jobs)

	clog := cronLogger{logger: w.logger.Named("cron")}
	sched := cron.New(
		cron.WithLocation(w.config.Location),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	if _, err := sched.AddFunc(w.config.SweepSchedule, func() { w.scheduledSweep(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", w.config.SweepSchedule, err)
	}

	w.logger.Info("watchdog started",
		zap.String("self", string(w.client.SelfID())),
		zap.String("sweep_schedule", w.config.SweepSchedule),
		zap.String("timezone", w.config.Location.String()),
		zap.Int("registry", w.registry.Len()))

	if w.config.StartupHarvest {
		w.startupHarvest(ctx)
	}

	sched.Start()
	defer func() {
		<-sched.Stop().Done()
		if err := jobs.Wait(); err != nil {
			w.logger.Warn("background job failed before shutdown", zap.Error(err))
		}
		w.logger.Info("watchdog stopped")
	}()

	events := w.client.Events()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watchdog stopping")
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return ErrEventsClosed
			}
			w.handle(ctx, router, ev)
		}
	}
}

func (w *Watchdog) router(jobs *command.Jobs) *command.Router {
	r := command.NewRouter(command.NewContextPrivilege(w.client), w.client, w.logger)
	r.Register(command.WatchdogCommands(command.WatchdogDeps{
		Client:     w.client,
		Registry:   w.registry,
		Groups:     w.groups,
		Detections: w.detections,
		Config:     w.settings,
		Detector:   w.detector,
		Sweeper:    w.sweeper,
		Harvester:  w.harvester,
		Jobs:       jobs,
	}, func() string { return r.Help("Watchdog commands") })...)
	return r
}

// handle processes one event. A panic is logged and the loop continues.
func (w *Watchdog) handle(ctx context.Context, router *command.Router, ev domain.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			w.logger.Error("event handler panicked",
				zap.String("kind", ev.EventKind()), zap.Any("panic", rec), zap.Stack("stack"))
		}
	}()

	switch e := ev.(type) {
	case *domain.JoinEvent:
		w.onJoin(ctx, e)
	case *domain.MessageEvent:
		w.onMessage(ctx, router, e)
	}
}

func (w *Watchdog) onJoin(ctx context.Context, e *domain.JoinEvent) {
	snap, err := w.client.GroupSnapshot(ctx, e.GroupID)
	if err != nil {
		w.logger.Warn("failed to load group for join", zap.String("group", e.GroupID), zap.Error(err))
		return
	}
	w.groupNames[snap.ID] = snap.Name

	for _, det := range w.detector.ScanJoined(ctx, snap, e.MemberIDs) {
		out := w.responder.Respond(ctx, det, domain.SourceJoin)
		w.logger.Info("competitor joined",
			zap.String("group", det.GroupName),
			zap.String("identity", string(det.Identity)),
			zap.String("action", string(out.Action)))
	}
}

func (w *Watchdog) onMessage(ctx context.Context, router *command.Router, msg *domain.MessageEvent) {
	if msg.FromMe {
		return
	}
	if msg.IsGroup {
		w.maybeHarvest(ctx, msg.ChatID)
	}
	router.Dispatch(ctx, msg)
}

// maybeHarvest gives collection groups their once-a-day harvest on the
// first message seen.
func (w *Watchdog) maybeHarvest(ctx context.Context, groupID string) {
	if len(w.groups.List()) == 0 || w.harvester.HarvestedToday(groupID) {
		return
	}
	name, ok := w.groupName(ctx, groupID)
	if !ok {
		return
	}
	res, err := w.harvester.MaybeHarvest(ctx, groupID, name)
	if err != nil {
		w.logger.Warn("harvest failed", zap.String("group", name), zap.Error(err))
		return
	}
	if res != nil {
		w.logger.Info("daily harvest", zap.String("group", name), zap.Int("added", res.Added))
	}
}

func (w *Watchdog) groupName(ctx context.Context, groupID string) (string, bool) {
	if name, ok := w.groupNames[groupID]; ok {
		return name, true
	}
	snap, err := w.client.GroupSnapshot(ctx, groupID)
	if err != nil {
		w.logger.Debug("group name unavailable", zap.String("group", groupID), zap.Error(err))
		return "", false
	}
	w.groupNames[groupID] = snap.Name
	return snap.Name, true
}

func (w *Watchdog) startupHarvest(ctx context.Context) {
	results, err := w.harvester.HarvestAll(ctx)
	if err != nil {
		w.logger.Warn("startup harvest failed", zap.Error(err))
		return
	}
	added := 0
	for _, r := range results {
		added += r.Added
		w.groupNames[r.Group.ID] = r.Group.Name
	}
	w.logger.Info("startup harvest completed", zap.Int("groups", len(results)), zap.Int("added", added))
}

// scheduledSweep is the cron entry. A sweep started by command wins.
func (w *Watchdog) scheduledSweep(ctx context.Context) {
	report, err := w.sweeper.Run(ctx)
	switch {
	case errors.Is(err, domain.ErrBusy):
		w.logger.Info("scheduled sweep skipped, a sweep is already running")
		return
	case err != nil:
		w.logger.Error("scheduled sweep failed", zap.Error(err))
		return
	}
	w.logger.Info("scheduled sweep completed",
		zap.String("run_id", report.RunID),
		zap.Int("groups", report.GroupsScanned),
		zap.Int("found", report.IdentitiesFound),
		zap.Int("removed", report.Removed))
}
