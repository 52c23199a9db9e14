package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/config"
	"github.com/eliteGoblin/focusd/chat_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/infra"
	"github.com/eliteGoblin/focusd/chat_mon/internal/whatsapp"
)

const sessionPragmas = "_foreign_keys=on"

// storage is one agent's document store plus the DSN of its session.
type storage struct {
	store      domain.KeyValueStore
	sessionDSN string
	close      func() error
}

// openStorage opens the role's store. The encrypted backend keys the
// session database with the same key as the documents.
func openStorage(cfg *config.Config, role domain.Role) (*storage, error) {
	dir := cfg.RoleDir(role)
	session := cfg.SessionPath(role)

	switch cfg.Store {
	case config.StoreEncrypted:
		key, err := infra.EnsureKey(infra.NewFileKeyProvider(cfg.DataDir))
		if err != nil {
			return nil, fmt.Errorf("encryption key: %w", err)
		}
		s, err := infra.NewEncryptedStore(dir, key)
		if err != nil {
			return nil, err
		}
		return &storage{
			store:      s,
			sessionDSN: infra.EncryptedDSN(session, key, sessionPragmas),
			close:      s.Close,
		}, nil

	default:
		s, err := infra.NewJSONStore(dir)
		if err != nil {
			return nil, err
		}
		return &storage{
			store:      s,
			sessionDSN: fmt.Sprintf("file:%s?%s", session, sessionPragmas),
			close:      func() error { return nil },
		}, nil
	}
}

func runWatchdog(cmd *cobra.Command, args []string) error {
	return runAgent(domain.RoleWatchdog)
}

func runOutreach(cmd *cobra.Command, args []string) error {
	return runAgent(domain.RoleOutreach)
}

func runAgent(role domain.Role) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	logger := createLogger(cfg.LogPath(role), cfg.Level()).With(zap.String("role", string(role)))
	defer func() { _ = logger.Sync() }()

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logger.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	pm := infra.NewProcessManager()
	release, err := daemon.Claim(infra.NewFileInstanceRegistry(cfg.DataDir, pm), pm, role, Version, logger)
	if err != nil {
		return err
	}
	defer release()

	st, err := openStorage(cfg, role)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()

	client, err := whatsapp.New(ctx, whatsapp.Options{
		SessionDSN:  st.sessionDSN,
		PairPhone:   cfg.PairPhone,
		EventBuffer: cfg.EventBuffer,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close session", zap.Error(err))
		}
	}()
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	clock := infra.NewSystemClock(loc)
	sleeper := infra.TimerSleeper{}

	switch role {
	case domain.RoleWatchdog:
		w := daemon.NewWatchdog(daemon.WatchdogConfig{
			SweepSchedule:   cfg.SweepSchedule,
			Location:        loc,
			StartupHarvest:  cfg.StartupHarvest,
			ResponderTiming: cfg.ResponderTiming(),
			SweepTiming:     cfg.SweepTiming(),
		}, client, st.store, sleeper, clock, logger)
		err = w.Run(ctx)
	case domain.RoleOutreach:
		err = daemon.NewOutreach(client, st.store, sleeper, clock, logger).Run(ctx)
	default:
		return fmt.Errorf("unknown role: %s", role)
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
