//go:build integration

package integration

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
	"github.com/eliteGoblin/focusd/chat_mon/internal/infra"
	"github.com/eliteGoblin/focusd/chat_mon/internal/journal"
	"github.com/eliteGoblin/focusd/chat_mon/test/fixtures"
)

var _ = Describe("Outreach", func() {
	var (
		store   *infra.JSONStore
		client  *fixtures.FakeClient
		sleeper *fixtures.FakeSleeper
		clock   *fixtures.FakeClock
	)

	targets := []string{"258840000011", "258840000012", "258840000013"}

	newOutreach := func() *daemon.Outreach {
		return daemon.NewOutreach(client, store, sleeper, clock, zap.NewNop())
	}

	direct := func(text string) *domain.MessageEvent {
		return &domain.MessageEvent{ChatID: ownerID, SenderID: ownerID, Text: text}
	}

	// campaign starts a campaign and waits for both the start notice and the
	// summary, which the background job may send first.
	campaign := func(text string) (notice, summary string) {
		before := len(client.SendsTo(ownerID))
		client.Emit(direct(text))
		Eventually(func() int { return len(client.SendsTo(ownerID)) - before }, 2*time.Second).Should(Equal(2))
		for _, m := range client.SendsTo(ownerID)[before:] {
			if strings.Contains(m, "started*") {
				notice = m
			} else {
				summary = m
			}
		}
		return notice, summary
	}

	BeforeEach(func() {
		var err error
		store, err = infra.NewJSONStore(tempDir())
		Expect(err).NotTo(HaveOccurred())
		client = newClient()
		sleeper = &fixtures.FakeSleeper{}
		clock = fixtures.NewFakeClock(time.Date(2026, 3, 10, 10, 0, 0, 0, maputo))
		sleeper.Clock = clock

		reg := identity.NewRegistry(store, zap.NewNop())
		res, err := reg.BulkAdd(targets)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Added).To(Equal(3))
		for _, t := range targets {
			client.Accounts[domain.Identity(t)] = true
		}
	})

	Describe("delivery idempotence", func() {
		It("should not resend a type across restarts", func() {
			o := newOutreach()
			stop := running(o.Run)
			notice, summary := campaign(".group")
			Expect(notice).To(ContainSubstring("Pending: 3"))
			Expect(summary).To(ContainSubstring("Sent: 3"))
			stop()

			restarted := newOutreach()
			stop = running(restarted.Run)
			reply := command(client, direct(".grupo"))
			stop()

			Expect(reply).To(Equal("Nothing to send: every number already received groupLink."))
			Expect(client.SendsTo(identity.ChatID("258840000011"))).To(HaveLen(1))
		})

		It("should treat both as its own campaign", func() {
			o := newOutreach()
			stop := running(o.Run)
			campaign(".group")
			notice, _ := campaign(".both")
			Expect(notice).To(ContainSubstring("Pending: 3"))
			stop()

			Expect(client.SendsTo(identity.ChatID("258840000012"))).To(HaveLen(3), "group link, then group and channel messages")
			deliveries := journal.NewDeliveryLog(store, zap.NewNop())
			Expect(deliveries.Counts(domain.CampaignBoth).Sent).To(Equal(3))
		})
	})

	Describe("unknown accounts", func() {
		It("should record them as invalid and skip them", func() {
			client.Accounts["258840000013"] = false

			o := newOutreach()
			stop := running(o.Run)
			_, summary := campaign(".channel")
			stop()

			Expect(summary).To(ContainSubstring("Invalid: 1"))
			Expect(client.SendsTo(identity.ChatID("258840000013"))).To(BeEmpty())
			counts := journal.NewDeliveryLog(store, zap.NewNop()).Counts(domain.CampaignChannelLink)
			Expect(counts.Sent).To(Equal(2))
			Expect(counts.Invalid).To(Equal(1))
		})
	})

	Describe("the sending window", func() {
		It("should pause when a batch boundary falls outside the window", func() {
			o := newOutreach()
			stop := running(o.Run)
			Expect(command(client, direct(".config batch 1"))).To(HavePrefix("Saved."))
			clock.Set(time.Date(2026, 3, 10, 21, 58, 0, 0, maputo))

			_, summary := campaign(".group")
			stop()

			Expect(summary).To(HavePrefix("*Campaign paused, sending window closed*"))
			Expect(summary).To(ContainSubstring("Sent: 1"))
			Expect(summary).To(ContainSubstring("Remaining: 2"))
		})
	})
})
