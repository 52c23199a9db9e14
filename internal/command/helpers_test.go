package command

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
	"github.com/eliteGoblin/focusd/chat_mon/internal/journal"
	"github.com/eliteGoblin/focusd/chat_mon/internal/settings"
	"github.com/eliteGoblin/focusd/chat_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/chat_mon/test/fixtures"
)

const (
	groupID  = "leads@g.us"
	adminID  = "258840000900@s.whatsapp.net"
	memberID = "258840000901@s.whatsapp.net"
	rivalID  = "258840000001@s.whatsapp.net"
	directID = "258840000777@s.whatsapp.net"
)

var maputo = time.FixedZone("CAT", 2*60*60)

type env struct {
	client     *fixtures.FakeClient
	store      *fixtures.MemoryStore
	clock      *fixtures.FakeClock
	sleeper    *fixtures.FakeSleeper
	registry   *identity.Registry
	groups     *identity.GroupSet
	detections *journal.DetectionLog
	deliveries *journal.DeliveryLog
	responder  *settings.Responder
	campaign   *settings.Campaign
	sweeper    *usecase.Sweeper
	scheduler  *usecase.CampaignScheduler
	jobs       *Jobs
	watchdog   *Router
	outreach   *Router
}

func newEnv() *env {
	logger := zap.NewNop()
	e := &env{
		client:  fixtures.NewFakeClient(),
		store:   fixtures.NewMemoryStore(),
		clock:   fixtures.NewFakeClock(time.Date(2026, 3, 10, 10, 0, 0, 0, maputo)),
		sleeper: &fixtures.FakeSleeper{},
	}
	e.client.Self = "258849999999"
	e.client.AddGroup(groupID, "Leads",
		domain.Member{ID: adminID, IsAdmin: true},
		domain.Member{ID: memberID},
		domain.Member{ID: rivalID},
	)

	e.registry = identity.NewRegistry(e.store, logger)
	e.groups = identity.NewGroupSet(e.store, logger)
	e.detections = journal.NewDetectionLog(e.store, logger)
	e.deliveries = journal.NewDeliveryLog(e.store, logger)
	e.responder = settings.LoadResponder(e.store, logger)
	e.campaign = settings.LoadCampaign(e.store, logger)

	detector := usecase.NewDetector(e.registry, e.client, logger)
	resp := usecase.NewResponder(e.client, e.responder, e.detections, e.sleeper, e.clock, usecase.DefaultResponderTiming(), logger)
	e.sweeper = usecase.NewSweeper(e.client, detector, resp, e.responder, e.sleeper, e.clock, usecase.DefaultSweepTiming(), logger)
	harvester := usecase.NewHarvester(e.client, e.registry, e.groups, e.clock, logger)
	e.scheduler = usecase.NewCampaignScheduler(e.client, e.registry, e.deliveries, e.campaign, e.sleeper, e.clock, logger)
	e.jobs = NewJobs(context.Background(), logger)

	privilege := NewContextPrivilege(e.client)
	e.watchdog = NewRouter(privilege, e.client, logger)
	e.watchdog.Register(WatchdogCommands(WatchdogDeps{
		Client:     e.client,
		Registry:   e.registry,
		Groups:     e.groups,
		Detections: e.detections,
		Config:     e.responder,
		Detector:   detector,
		Sweeper:    e.sweeper,
		Harvester:  harvester,
		Jobs:       e.jobs,
	}, func() string { return e.watchdog.Help("Watchdog commands") })...)

	e.outreach = NewRouter(privilege, e.client, logger)
	e.outreach.Register(OutreachCommands(OutreachDeps{
		Registry:   e.registry,
		Deliveries: e.deliveries,
		Config:     e.campaign,
		Scheduler:  e.scheduler,
		Jobs:       e.jobs,
	}, func() string { return e.outreach.Help("Outreach commands") })...)
	return e
}

func groupMsg(sender, text string) *domain.MessageEvent {
	return &domain.MessageEvent{ID: "m1", ChatID: groupID, SenderID: sender, Text: text, IsGroup: true}
}

func directMsg(text string) *domain.MessageEvent {
	return &domain.MessageEvent{ID: "d1", ChatID: directID, SenderID: directID, Text: text}
}

// last returns the most recent text sent to chatID.
func (e *env) last(chatID string) string {
	sent := e.client.SendsTo(chatID)
	if len(sent) == 0 {
		return ""
	}
	return sent[len(sent)-1]
}

// run dispatches msg on r and returns the reply it produced.
func (e *env) run(r *Router, msg *domain.MessageEvent) string {
	before := len(e.client.SendsTo(msg.ChatID))
	r.Dispatch(context.Background(), msg)
	sent := e.client.SendsTo(msg.ChatID)
	if len(sent) == before {
		return ""
	}
	return sent[len(sent)-1]
}
