//go:build integration

package integration

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
	"github.com/eliteGoblin/focusd/chat_mon/internal/infra"
	"github.com/eliteGoblin/focusd/chat_mon/internal/journal"
	"github.com/eliteGoblin/focusd/chat_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/chat_mon/test/fixtures"
)

var _ = Describe("Watchdog", func() {
	var (
		dir     string
		store   *infra.JSONStore
		client  *fixtures.FakeClient
		sleeper *fixtures.FakeSleeper
		clock   *fixtures.FakeClock
	)

	newWatchdog := func() *daemon.Watchdog {
		cfg := daemon.DefaultWatchdogConfig()
		cfg.Location = maputo
		cfg.StartupHarvest = false
		return daemon.NewWatchdog(cfg, client, store, sleeper, clock, zap.NewNop())
	}

	BeforeEach(func() {
		dir = tempDir()
		var err error
		store, err = infra.NewJSONStore(dir)
		Expect(err).NotTo(HaveOccurred())
		client = newClient()
		sleeper = &fixtures.FakeSleeper{}
		clock = fixtures.NewFakeClock(time.Date(2026, 3, 10, 10, 0, 0, 0, maputo))
	})

	Describe("a registered competitor joins", func() {
		Context("with auto-remove enabled", func() {
			It("should remove the member and persist one detection", func() {
				w := newWatchdog()
				stop := running(w.Run)

				Expect(command(client, &domain.MessageEvent{ChatID: groupID, SenderID: adminID, Text: ".add 258840000001", IsGroup: true})).
					To(ContainSubstring("258840000001"))
				Expect(command(client, &domain.MessageEvent{ChatID: groupID, SenderID: adminID, Text: ".config remove on", IsGroup: true})).
					To(Equal("remove set to on."))

				client.Emit(&domain.JoinEvent{GroupID: groupID, MemberIDs: []string{rivalID}})
				Eventually(client.Removals, 2*time.Second).Should(HaveLen(1))
				stop()

				Expect(client.Removals()[0].MemberID).To(Equal(rivalID))
				Expect(sleeper.Count(usecase.DefaultResponderTiming().RemovalDelay)).To(Equal(1))

				detections := journal.NewDetectionLog(store, zap.NewNop())
				Expect(detections.Len()).To(Equal(1))
				Expect(detections.Recent(1)[0].Action).To(Equal(domain.ActionRemoved))
				Expect(filepath.Join(dir, "detections.json")).To(BeARegularFile())
			})
		})

		Context("when the competitor is a group admin", func() {
			It("should notify without removing", func() {
				client.AddGroup(groupID, "Revendedores",
					domain.Member{ID: adminID, IsAdmin: true},
					domain.Member{ID: rivalID, IsAdmin: true},
				)
				w := newWatchdog()
				_, _, err := w.Registry().Add(rivalID)
				Expect(err).NotTo(HaveOccurred())
				stop := running(w.Run)

				client.Emit(&domain.JoinEvent{GroupID: groupID, MemberIDs: []string{rivalID}})
				Eventually(func() int { return journal.NewDetectionLog(store, zap.NewNop()).Len() }, 2*time.Second).Should(Equal(1))
				stop()

				Expect(client.Removals()).To(BeEmpty())
				Expect(client.SendsTo(groupID)).NotTo(BeEmpty())
			})
		})
	})

	Describe("state survives a restart", func() {
		It("should reload the registry and responder settings from disk", func() {
			w := newWatchdog()
			stop := running(w.Run)
			command(client, &domain.MessageEvent{ChatID: groupID, SenderID: adminID, Text: ".add +258 84 000 0555", IsGroup: true})
			command(client, &domain.MessageEvent{ChatID: groupID, SenderID: adminID, Text: ".config group off", IsGroup: true})
			stop()

			restarted := newWatchdog()
			Expect(restarted.Registry().Contains("258840000555")).To(BeTrue())

			stop = running(restarted.Run)
			status := command(client, &domain.MessageEvent{ChatID: groupID, SenderID: memberID, Text: ".status", IsGroup: true})
			stop()
			Expect(status).To(ContainSubstring("Registry: 1 numbers"))
			Expect(status).To(ContainSubstring("Notify group: off"))
		})

		It("should self-heal a corrupt registry file", func() {
			Expect(os.WriteFile(filepath.Join(dir, identity.RegistryKey+".json"), []byte("[not json"), 0600)).To(Succeed())

			w := newWatchdog()
			Expect(w.Registry().Len()).To(BeZero())

			data, err := os.ReadFile(filepath.Join(dir, identity.RegistryKey+".json"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("[]"))
		})
	})

	Describe("ban by reply", func() {
		It("should delete the quoted message, remove the sender and register them", func() {
			w := newWatchdog()
			stop := running(w.Run)

			reply := command(client, &domain.MessageEvent{
				ID: "cmd", ChatID: groupID, SenderID: adminID, Text: ".ban+", IsGroup: true,
				QuotedID: "spam-1", QuotedSenderID: memberID,
			})
			stop()

			Expect(reply).To(Equal("+258840000901 removed and added to the registry."))
			Expect(client.Deletions()).To(ConsistOf(fixtures.Deletion{ChatID: groupID, SenderID: memberID, MessageID: "spam-1"}))
			Expect(identity.NewRegistry(store, zap.NewNop()).Contains(memberID)).To(BeTrue())
		})
	})
})
