package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"clanactivity/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool

	config    Config
	exporters telemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:   "clan-activity",
	Short: "clan-activity finds when every member of a Bungie clan last played.",
	// errors are printed by ExecuteContext
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		var err error
		config, err = LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}

		exporters, err = telemetry.SetupFromEnv(cmd.Context(), "clan-activity")
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("no telemetry.json5 found, running without exporters")
		} else if err != nil {
			slog.Warn("failed to setup telemetry", "err", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		err := exporters.Shutdown(context.Background())
		if err != nil {
			slog.Warn("failed to shutdown telemetry", "err", err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "The configuration file to read, config.local.json5 overrides are merged in.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every request and diagnostic.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
