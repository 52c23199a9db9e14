package daemon

import (
	"context"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/command"
	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
	"github.com/eliteGoblin/focusd/chat_mon/internal/journal"
	"github.com/eliteGoblin/focusd/chat_mon/internal/settings"
	"github.com/eliteGoblin/focusd/chat_mon/internal/usecase"
)

// Outreach is the campaign daemon. It only acts on commands; campaigns run
// as background jobs so the loop stays responsive.
type Outreach struct {
	client     domain.MessagingClient
	registry   *identity.Registry
	deliveries *journal.DeliveryLog
	settings   *settings.Campaign
	scheduler  *usecase.CampaignScheduler
	logger     *zap.Logger
}

// NewOutreach loads the outreach documents from store.
func NewOutreach(
	client domain.MessagingClient,
	store domain.KeyValueStore,
	sleeper domain.Sleeper,
	clock domain.Clock,
	logger *zap.Logger,
) *Outreach {
	logger = logger.Named("outreach")
	o := &Outreach{
		client:     client,
		registry:   identity.NewRegistry(store, logger),
		deliveries: journal.NewDeliveryLog(store, logger),
		settings:   settings.LoadCampaign(store, logger),
		logger:     logger,
	}
	o.scheduler = usecase.NewCampaignScheduler(client, o.registry, o.deliveries, o.settings, sleeper, clock, logger)
	return o
}

// Registry returns the campaign target list.
func (o *Outreach) Registry() *identity.Registry {
	return o.registry
}

// Run serves commands until ctx is canceled. A running campaign sees the
// cancellation after its current delay and Run waits for it.
func (o *Outreach) Run(ctx context.Context) error {
	jobs := command.NewJobs(ctx, o.logger)
	router := o.router(jobs)
	defer func() {
		if err := jobs.Wait(); err != nil {
			o.logger.Warn("background job failed before shutdown", zap.Error(err))
		}
		o.logger.Info("outreach stopped")
	}()

	o.logger.Info("outreach started",
		zap.String("self", string(o.client.SelfID())),
		zap.Int("targets", o.registry.Len()),
		zap.Int("deliveries", o.deliveries.Len()))

	events := o.client.Events()
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("outreach stopping")
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				return ErrEventsClosed
			}
			o.handle(ctx, router, ev)
		}
	}
}

func (o *Outreach) router(jobs *command.Jobs) *command.Router {
	r := command.NewRouter(command.NewContextPrivilege(o.client), o.client, o.logger)
	r.Register(command.OutreachCommands(command.OutreachDeps{
		Registry:   o.registry,
		Deliveries: o.deliveries,
		Config:     o.settings,
		Scheduler:  o.scheduler,
		Jobs:       jobs,
	}, func() string { return r.Help("Outreach commands") })...)
	return r
}

func (o *Outreach) handle(ctx context.Context, router *command.Router, ev domain.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("event handler panicked",
				zap.String("kind", ev.EventKind()), zap.Any("panic", rec), zap.Stack("stack"))
		}
	}()

	msg, ok := ev.(*domain.MessageEvent)
	if !ok || msg.FromMe {
		return
	}
	router.Dispatch(ctx, msg)
}
