// Package cmd implements the skillcred command line.
package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"skillcred/internal/app"
	"skillcred/internal/platform/config"
	"skillcred/internal/platform/logger"
)

const appName = "skillcred"

var (
	// Used for flags.
	cfgFile   string
	logFormat string
	logLevel  string

	rootCmd = newRootCmd()
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "skillcred fuses skill evidence into credential decisions and manages the review queue",
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "a YAML config file (defaults and SKILLCRED_* env apply without one)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log.format (json or text)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")

	root.AddCommand(
		newServeCmd(),
		newEvaluateCmd(),
		newReviewCmd(),
		newBlacklistCmd(),
		newTokenCmd(),
	)
	return root
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// withApp builds the application for one command and tears it down after.
// Commands that only read state still go through the configured stores.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log.Format, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
