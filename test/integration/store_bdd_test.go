//go:build integration

package integration

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
	"github.com/eliteGoblin/focusd/chat_mon/internal/infra"
	"github.com/eliteGoblin/focusd/chat_mon/internal/settings"
)

var _ = Describe("Encrypted store", func() {
	var (
		dir string
		key []byte
	)

	BeforeEach(func() {
		dir = tempDir()
		var err error
		key, err = infra.EnsureKey(infra.NewFileKeyProvider(dir))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("EnsureKey", func() {
		It("should return the same key on later calls", func() {
			again, err := infra.EnsureKey(infra.NewFileKeyProvider(dir))
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(Equal(key))
		})
	})

	Describe("agent documents", func() {
		It("should persist the registry and settings across reopen", func() {
			store, err := infra.NewEncryptedStore(filepath.Join(dir, "watchdog"), key)
			Expect(err).NotTo(HaveOccurred())

			reg := identity.NewRegistry(store, zap.NewNop())
			_, _, err = reg.Add("258840000001@c.us")
			Expect(err).NotTo(HaveOccurred())
			cfg := settings.LoadResponder(store, zap.NewNop())
			Expect(cfg.Update(func(c *domain.ResponderConfig) error {
				c.AutoRemove = true
				return nil
			})).To(Succeed())
			Expect(store.Close()).To(Succeed())

			reopened, err := infra.NewEncryptedStore(filepath.Join(dir, "watchdog"), key)
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()

			Expect(identity.NewRegistry(reopened, zap.NewNop()).List()).To(ConsistOf(domain.Identity("258840000001")))
			Expect(settings.LoadResponder(reopened, zap.NewNop()).Get().AutoRemove).To(BeTrue())

			keys, err := reopened.Keys()
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(ContainElements(identity.RegistryKey, settings.ResponderKey))
		})

		It("should keep numbers out of the database file", func() {
			store, err := infra.NewEncryptedStore(dir, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Save(identity.RegistryKey, []string{"258840000001"})).To(Succeed())
			Expect(store.Close()).To(Succeed())

			raw, err := os.ReadFile(store.Path())
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).NotTo(ContainSubstring("258840000001"))
		})

		It("should refuse a wrong key", func() {
			store, err := infra.NewEncryptedStore(dir, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Close()).To(Succeed())

			wrong, err := infra.GenerateKey()
			Expect(err).NotTo(HaveOccurred())
			_, err = infra.NewEncryptedStore(dir, wrong)
			Expect(err).To(HaveOccurred())
		})
	})
})
