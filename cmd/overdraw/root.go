package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/gogpu/overdraw"
	"github.com/gogpu/overdraw/config"
)

type rootFlags struct {
	configPath string
	logLevel   string
	backend    string
}

var rf rootFlags

var rootCmd = &cobra.Command{
	Use:           "overdraw",
	Short:         "overdraw: runtime GPU fragment overdraw measurement",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rf.configPath, "config", "c", "", "YAML config file (default: built-in scene)")
	rootCmd.PersistentFlags().StringVar(&rf.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&rf.backend, "backend", "", "backend override (software, wgpu, auto)")

	rootCmd.AddCommand(runCmd, watchCmd, replayCmd, shadersCmd, backendsCmd)
}

// loadConfig reads the config, applies flag overrides and installs the
// logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rf.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if rf.logLevel != "" {
		cfg.Log.Level = rf.logLevel
	}
	if rf.backend != "" {
		cfg.Monitor.Backend = rf.backend
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	overdraw.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return cfg, nil
}
