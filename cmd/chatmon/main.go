// Package main is the CLI entry point for chatmon.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/chat_mon/internal/config"
	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatmon",
	Short: "WhatsApp group watchdog and outreach campaigns",
	Long: `chatmon runs two independent agents on linked WhatsApp devices.

The watchdog flags competitor numbers joining your groups, sweeps every
group daily and answers admin commands. The outreach agent sends group
and channel invitations to the registry within a daily sending window.

Process settings come from CHATMON_* environment variables; group
settings are changed with chat commands (.help).`,
	Version:      Version,
	SilenceUsage: true,
}

var watchdogCmd = &cobra.Command{
	Use:   "watchdog",
	Short: "Run the competitor watchdog",
	Long: `Connects the watchdog device (pairing on first run) and runs until
SIGINT/SIGTERM. Only one watchdog may run per data directory.`,
	RunE: runWatchdog,
}

var outreachCmd = &cobra.Command{
	Use:   "outreach",
	Short: "Run the outreach campaign agent",
	Long: `Connects the outreach device (pairing on first run) and serves campaign
commands until SIGINT/SIGTERM. Only one outreach agent may run per data
directory.`,
	RunE: runOutreach,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agent liveness and stored data",
	RunE:  runStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registry numbers",
	RunE:  runList,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Report duplicate and malformed registry numbers",
	Long:  `Checks the registry against the configured country code format. Nothing is written.`,
	RunE:  runValidate,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Deduplicate, sort and drop malformed registry numbers",
	Long: `Rewrites the registry deduplicated, sorted and without numbers that fail
the configured country code format. The agent owning the registry must be
stopped first, since it would overwrite the result.`,
	RunE: runClean,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	dataDirFlag string
	storeFlag   string
	roleFlag    string
	jsonOutput  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (overrides CHATMON_DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Store backend: json or encrypted (overrides CHATMON_STORE)")
	for _, c := range []*cobra.Command{listCmd, validateCmd, cleanCmd} {
		c.Flags().StringVar(&roleFlag, "role", string(domain.RoleWatchdog), "Agent whose registry to use (watchdog/outreach)")
	}
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(watchdogCmd)
	rootCmd.AddCommand(outreachCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	if storeFlag != "" {
		cfg.Store = storeFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseRole(s string) (domain.Role, error) {
	switch r := domain.Role(s); r {
	case domain.RoleWatchdog, domain.RoleOutreach:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q (want %s or %s)", s, domain.RoleWatchdog, domain.RoleOutreach)
	}
}

func createLogger(path string, level zapcore.Level) *zap.Logger {
	logCfg := zap.NewProductionConfig()
	logCfg.Level = zap.NewAtomicLevelAt(level)
	logCfg.OutputPaths = []string{path, "stderr"}
	logCfg.ErrorOutputPaths = []string{"stderr"}
	logCfg.EncoderConfig.TimeKey = "time"
	logCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		logger, _ := zap.NewProduction()
		return logger
	}
	logger, err := logCfg.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	if jsonOutput {
		fmt.Fprintf(out, `{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Fprintf(out, "chatmon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
