package usecase

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
	"github.com/eliteGoblin/focusd/chat_mon/internal/journal"
	"github.com/eliteGoblin/focusd/chat_mon/internal/settings"
	"github.com/eliteGoblin/focusd/chat_mon/test/fixtures"
)

var maputo = time.FixedZone("CAT", 2*60*60)

// watchdogEnv wires the watchdog use cases over fakes.
type watchdogEnv struct {
	client     *fixtures.FakeClient
	store      *fixtures.MemoryStore
	clock      *fixtures.FakeClock
	sleeper    *fixtures.FakeSleeper
	registry   *identity.Registry
	groups     *identity.GroupSet
	detections *journal.DetectionLog
	config     *settings.Responder
	detector   *Detector
	responder  *Responder
	sweeper    *Sweeper
	harvester  *Harvester
}

func newWatchdogEnv() *watchdogEnv {
	logger := zap.NewNop()
	e := &watchdogEnv{
		client: fixtures.NewFakeClient(),
		store:  fixtures.NewMemoryStore(),
		clock:  fixtures.NewFakeClock(time.Date(2026, 3, 10, 9, 0, 0, 0, maputo)),
	}
	e.client.Self = "258849999999"
	e.sleeper = &fixtures.FakeSleeper{Clock: e.clock}
	e.registry = identity.NewRegistry(e.store, logger)
	e.groups = identity.NewGroupSet(e.store, logger)
	e.detections = journal.NewDetectionLog(e.store, logger)
	e.config = settings.LoadResponder(e.store, logger)
	e.detector = NewDetector(e.registry, e.client, logger)
	e.responder = NewResponder(e.client, e.config, e.detections, e.sleeper, e.clock, DefaultResponderTiming(), logger)
	e.sweeper = NewSweeper(e.client, e.detector, e.responder, e.config, e.sleeper, e.clock, DefaultSweepTiming(), logger)
	e.harvester = NewHarvester(e.client, e.registry, e.groups, e.clock, logger)
	return e
}

func (e *watchdogEnv) setConfig(fn func(*domain.ResponderConfig)) {
	_ = e.config.Update(func(c *domain.ResponderConfig) error {
		fn(c)
		return nil
	})
}

// outreachEnv wires the campaign scheduler over fakes.
type outreachEnv struct {
	client     *fixtures.FakeClient
	store      *fixtures.MemoryStore
	clock      *fixtures.FakeClock
	sleeper    *fixtures.FakeSleeper
	registry   *identity.Registry
	deliveries *journal.DeliveryLog
	config     *settings.Campaign
	scheduler  *CampaignScheduler
}

func newOutreachEnv() *outreachEnv {
	logger := zap.NewNop()
	e := &outreachEnv{
		client: fixtures.NewFakeClient(),
		store:  fixtures.NewMemoryStore(),
		clock:  fixtures.NewFakeClock(time.Date(2026, 3, 10, 10, 0, 0, 0, maputo)),
	}
	e.sleeper = &fixtures.FakeSleeper{Clock: e.clock}
	e.registry = identity.NewRegistry(e.store, logger)
	e.deliveries = journal.NewDeliveryLog(e.store, logger)
	e.config = settings.LoadCampaign(e.store, logger)
	e.scheduler = NewCampaignScheduler(e.client, e.registry, e.deliveries, e.config, e.sleeper, e.clock, logger)
	return e
}

func (e *outreachEnv) setConfig(fn func(*domain.CampaignConfig)) {
	if err := e.config.Update(func(c *domain.CampaignConfig) error {
		fn(c)
		return nil
	}); err != nil {
		panic(err)
	}
}

// addTargets registers n valid accounts starting at 258840000001.
func (e *outreachEnv) addTargets(n int) []domain.Identity {
	ids := make([]domain.Identity, 0, n)
	for i := 1; i <= n; i++ {
		id, _, _ := e.registry.Add(identityN(i))
		e.client.Accounts[id] = true
		ids = append(ids, id)
	}
	return ids
}

func identityN(i int) string {
	return fmt.Sprintf("2588400%05d", i)
}

func member(id string, admin bool) domain.Member {
	return domain.Member{ID: id + "@s.whatsapp.net", IsAdmin: admin}
}
