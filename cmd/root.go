// Package cmd implements the clawrelay command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clawrelay/internal/config"
)

const version = "0.3.1"

var configFlag string

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "clawrelay",
		Short:   "Bridge gateway exec approvals to Telegram and Slack",
		Version: version,
	}
	cmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file path (default ~/.clawrelay/config.yaml)")

	cmd.AddCommand(runCmd())
	cmd.AddCommand(doctorCmd())
	cmd.AddCommand(statusCmd())
	cmd.AddCommand(configCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the explicit --config path or the default.
func resolveConfigPath() string {
	if configFlag != "" {
		return config.ExpandHome(configFlag)
	}
	return config.DefaultPath()
}

// loadConfigOrExit loads the config and exits with a readable error when it
// is missing or invalid.
func loadConfigOrExit() *config.Config {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config %s: %s\n", path, err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
