// Package config loads process settings from the environment.
package config

import (
	"fmt"
	"path/filepath"
	"time"
	_ "time/tzdata" // Africa/Maputo on hosts without zoneinfo

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
	"github.com/eliteGoblin/focusd/chat_mon/internal/usecase"
)

// EnvPrefix prefixes every variable, e.g. CHATMON_DATA_DIR.
const EnvPrefix = "CHATMON_"

// Store backends.
const (
	StoreJSON      = "json"
	StoreEncrypted = "encrypted"
)

// Config holds process settings. Domain settings (responder flags, campaign
// templates) live in the data store and are changed through chat commands.
type Config struct {
	DataDir   string `env:"DATA_DIR,expand" envDefault:"${HOME}/.chatmon"`
	Store     string `env:"STORE"      envDefault:"json"`
	SessionDB string `env:"SESSION_DB"` // default <data>/<role>/session.db
	LogFile   string `env:"LOG_FILE"`   // default <data>/<role>/chatmon.log
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`

	Timezone       string `env:"TIMEZONE"        envDefault:"Africa/Maputo"`
	SweepSchedule  string `env:"SWEEP_SCHEDULE"  envDefault:"0 9 * * *"`
	StartupHarvest bool   `env:"STARTUP_HARVEST" envDefault:"true"`

	GroupDelay        time.Duration `env:"GROUP_DELAY"         envDefault:"5s"`
	RemovalDelay      time.Duration `env:"REMOVAL_DELAY"       envDefault:"2s"`
	AdminMessageDelay time.Duration `env:"ADMIN_MESSAGE_DELAY" envDefault:"1s"`
	WrapUpDelay       time.Duration `env:"WRAP_UP_DELAY"       envDefault:"2s"`

	CountryCode      string `env:"COUNTRY_CODE"      envDefault:"258"`
	SubscriberDigits int    `env:"SUBSCRIBER_DIGITS" envDefault:"9"`

	// PairPhone switches first-run pairing from QR code to phone code.
	PairPhone   string `env:"PAIR_PHONE"`
	EventBuffer int    `env:"EVENT_BUFFER" envDefault:"256"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that env parsing cannot.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir must be set")
	}
	switch c.Store {
	case StoreJSON, StoreEncrypted:
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreJSON, StoreEncrypted)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
		return fmt.Errorf("sweep schedule %q: %w", c.SweepSchedule, err)
	}
	for name, d := range map[string]time.Duration{
		"group delay":         c.GroupDelay,
		"removal delay":       c.RemovalDelay,
		"admin message delay": c.AdminMessageDelay,
		"wrap-up delay":       c.WrapUpDelay,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.SubscriberDigits < 1 {
		return fmt.Errorf("subscriber digits must be positive")
	}
	if c.EventBuffer < 1 {
		return fmt.Errorf("event buffer must be positive")
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Level returns the parsed log level, info when unparsable.
func (c *Config) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// RoleDir is the directory owning one agent's documents and session.
func (c *Config) RoleDir(role domain.Role) string {
	return filepath.Join(c.DataDir, string(role))
}

func (c *Config) SessionPath(role domain.Role) string {
	if c.SessionDB != "" {
		return c.SessionDB
	}
	return filepath.Join(c.RoleDir(role), "session.db")
}

func (c *Config) LogPath(role domain.Role) string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(c.RoleDir(role), "chatmon.log")
}

// Format is the identity format used by clean and validate.
func (c *Config) Format() identity.Format {
	return identity.Format{CountryCode: c.CountryCode, SubscriberDigits: c.SubscriberDigits}
}

func (c *Config) ResponderTiming() usecase.ResponderTiming {
	return usecase.ResponderTiming{
		AdminMessageDelay: c.AdminMessageDelay,
		RemovalDelay:      c.RemovalDelay,
	}
}

func (c *Config) SweepTiming() usecase.SweepTiming {
	return usecase.SweepTiming{
		GroupDelay:  c.GroupDelay,
		WrapUpDelay: c.WrapUpDelay,
	}
}
