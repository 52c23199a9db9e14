package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
)

func TestCampaign_BothScenario(t *testing.T) {
	e := newOutreachEnv()
	e.setConfig(func(c *domain.CampaignConfig) { c.EnforceWindow = false })
	_, _, _ = e.registry.Add("258840000002")
	e.client.Accounts["258840000002"] = true
	cfg := e.config.Get()

	res, err := e.scheduler.Run(context.Background(), domain.CampaignBoth)
	require.NoError(t, err)
	assert.Equal(t, CampaignCompleted, res.Status)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Total)

	chat := identity.ChatID("258840000002")
	assert.Equal(t, []string{GroupCampaignText(cfg), ChannelCampaignText(cfg)}, e.client.SendsTo(chat))
	assert.Equal(t, []time.Duration{cfg.MessageDelay()}, e.sleeper.Slept())

	recs := e.deliveries.Recent(0)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.DeliverySent, recs[0].Status)
	assert.Equal(t, domain.CampaignBoth, recs[0].CampaignType)
	assert.Equal(t, domain.Identity("258840000002"), recs[0].Identity)
}

func TestCampaign_IdempotentPerType(t *testing.T) {
	e := newOutreachEnv()
	ids := e.addTargets(3)
	ctx := context.Background()

	res, err := e.scheduler.Run(ctx, domain.CampaignGroupLink)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)

	res, err = e.scheduler.Run(ctx, domain.CampaignGroupLink)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, 0, res.Sent)

	for _, id := range ids {
		assert.Len(t, e.client.SendsTo(identity.ChatID(id)), 1, "at most one groupLink send per identity")
	}

	// groupLink records do not suppress channelLink.
	res, err = e.scheduler.Run(ctx, domain.CampaignChannelLink)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)
	for _, id := range ids {
		assert.Len(t, e.client.SendsTo(identity.ChatID(id)), 2)
	}
}

func TestCampaign_BothIsSeparateNamespace(t *testing.T) {
	e := newOutreachEnv()
	ids := e.addTargets(1)
	ctx := context.Background()

	_, err := e.scheduler.Run(ctx, domain.CampaignBoth)
	require.NoError(t, err)

	// A "both" delivery does not count as a groupLink delivery, so the
	// group message goes out a second time.
	assert.Len(t, e.scheduler.Pending(domain.CampaignGroupLink), 1)
	res, err := e.scheduler.Run(ctx, domain.CampaignGroupLink)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)

	cfg := e.config.Get()
	groupSends := 0
	for _, text := range e.client.SendsTo(identity.ChatID(ids[0])) {
		if text == GroupCampaignText(cfg) {
			groupSends++
		}
	}
	assert.Equal(t, 2, groupSends)

	// And the reverse: groupLink + channelLink do not satisfy "both".
	e2 := newOutreachEnv()
	e2.addTargets(1)
	_, _ = e2.scheduler.Run(ctx, domain.CampaignGroupLink)
	_, _ = e2.scheduler.Run(ctx, domain.CampaignChannelLink)
	assert.Len(t, e2.scheduler.Pending(domain.CampaignBoth), 1)
}

func TestCampaign_OutsideWindowSendsNothing(t *testing.T) {
	e := newOutreachEnv()
	e.addTargets(2)
	e.clock.Set(time.Date(2026, 3, 10, 23, 15, 0, 0, maputo))

	res, err := e.scheduler.Run(context.Background(), domain.CampaignGroupLink)
	require.NoError(t, err)
	assert.Equal(t, CampaignOutsideWindow, res.Status)
	assert.Empty(t, e.client.Sends())
	assert.Equal(t, 0, e.deliveries.Len())
	assert.Equal(t, StateNotStarted, e.scheduler.State(domain.CampaignGroupLink))
}

func TestCampaign_BatchPacing(t *testing.T) {
	e := newOutreachEnv()
	e.setConfig(func(c *domain.CampaignConfig) { c.BatchSize = 4 })
	e.addTargets(12)
	cfg := e.config.Get()

	res, err := e.scheduler.Run(context.Background(), domain.CampaignGroupLink)
	require.NoError(t, err)
	assert.Equal(t, CampaignCompleted, res.Status)
	assert.Equal(t, 12, res.Sent)

	slept := e.sleeper.Slept()
	assert.Equal(t, 2, e.sleeper.Count(cfg.BatchDelay()), "after the 1st and 2nd batch only")
	assert.Equal(t, 9, e.sleeper.Count(cfg.ItemDelay()))
	assert.Len(t, slept, 11, "no delay after the final item")
	assert.Equal(t, cfg.BatchDelay(), slept[3])
	assert.Equal(t, cfg.BatchDelay(), slept[7])
	assert.Equal(t, StateCompleted, e.scheduler.State(domain.CampaignGroupLink))
}

func TestCampaign_PausesWhenWindowClosesAfterBatch(t *testing.T) {
	e := newOutreachEnv()
	e.setConfig(func(c *domain.CampaignConfig) {
		c.BatchSize = 2
		c.BatchDelayMs = 30 * 60 * 1000
		c.WindowEnd = "10:30"
	})
	e.addTargets(5)

	res, err := e.scheduler.Run(context.Background(), domain.CampaignGroupLink)
	require.NoError(t, err)
	assert.Equal(t, CampaignPaused, res.Status)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 3, res.Remaining)
	assert.Equal(t, StatePaused, e.scheduler.State(domain.CampaignGroupLink))

	// Resuming inside the window picks up only the remaining targets.
	e.clock.Set(time.Date(2026, 3, 11, 9, 0, 0, 0, maputo))
	assert.Len(t, e.scheduler.Pending(domain.CampaignGroupLink), 3)
}

func TestCampaign_InvalidAndFailedAreRecorded(t *testing.T) {
	e := newOutreachEnv()
	ids := e.addTargets(3)
	e.client.Accounts[ids[0]] = false
	e.client.SendErr[identity.ChatID(ids[1])] = errors.New("rate limited")

	res, err := e.scheduler.Run(context.Background(), domain.CampaignChannelLink)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Invalid)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 3, e.deliveries.Len())

	recs := e.deliveries.Recent(0)
	assert.Equal(t, domain.DeliverySent, recs[0].Status)
	assert.Equal(t, domain.DeliveryFailed, recs[1].Status)
	assert.Contains(t, recs[1].Detail, "rate limited")
	assert.Equal(t, domain.DeliveryInvalid, recs[2].Status)

	// Failed and invalid targets stay pending.
	assert.Len(t, e.scheduler.Pending(domain.CampaignChannelLink), 2)
}

func TestCampaign_RejectsOverlappingRun(t *testing.T) {
	e := newOutreachEnv()
	e.addTargets(2)

	var nestedErr error
	e.sleeper.OnSleep = func(time.Duration) {
		_, nestedErr = e.scheduler.Run(context.Background(), domain.CampaignChannelLink)
	}

	_, err := e.scheduler.Run(context.Background(), domain.CampaignGroupLink)
	require.NoError(t, err)
	assert.ErrorIs(t, nestedErr, domain.ErrBusy)
	assert.False(t, e.scheduler.Running())
}

func TestCampaign_InterruptedOnCancel(t *testing.T) {
	e := newOutreachEnv()
	e.addTargets(3)
	ctx, cancel := context.WithCancel(context.Background())
	e.sleeper.OnSleep = func(time.Duration) { cancel() }

	res, err := e.scheduler.Run(ctx, domain.CampaignGroupLink)
	require.NoError(t, err)
	assert.Equal(t, CampaignInterrupted, res.Status)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 2, res.Remaining)
}

func TestCampaign_UnknownType(t *testing.T) {
	e := newOutreachEnv()
	_, err := e.scheduler.Run(context.Background(), domain.CampaignType("sms"))
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCampaign_DeliverIgnoresHistory(t *testing.T) {
	e := newOutreachEnv()
	ids := e.addTargets(1)
	ctx := context.Background()
	_, _ = e.scheduler.Run(ctx, domain.CampaignGroupLink)

	rec, err := e.scheduler.Deliver(ctx, "+"+string(ids[0]), domain.CampaignGroupLink)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliverySent, rec.Status)
	assert.Len(t, e.client.SendsTo(identity.ChatID(ids[0])), 2)
	assert.Equal(t, 2, e.deliveries.Len())
}

func TestWindow_Contains(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 3, 10, h, m, 0, 0, maputo) }

	day := Window{Start: 8 * 60, End: 22 * 60, Enforced: true}
	assert.False(t, day.Contains(at(7, 59)))
	assert.True(t, day.Contains(at(8, 0)), "start is inclusive")
	assert.True(t, day.Contains(at(21, 59)))
	assert.False(t, day.Contains(at(22, 0)), "end is exclusive")

	night := Window{Start: 22 * 60, End: 6 * 60, Enforced: true}
	assert.True(t, night.Contains(at(23, 0)))
	assert.True(t, night.Contains(at(5, 59)))
	assert.False(t, night.Contains(at(6, 0)))
	assert.False(t, night.Contains(at(12, 0)))

	allDay := Window{Start: 9 * 60, End: 9 * 60, Enforced: true}
	assert.True(t, allDay.Contains(at(3, 0)))

	off := Window{Start: 8 * 60, End: 9 * 60}
	assert.True(t, off.Contains(at(23, 0)))
}

func TestWindowOf(t *testing.T) {
	w, err := WindowOf(domain.DefaultCampaignConfig())
	require.NoError(t, err)
	assert.Equal(t, "08:00-22:00", w.String())
	assert.True(t, w.Enforced)
}
