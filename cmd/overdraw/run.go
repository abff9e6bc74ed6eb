package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/gogpu/overdraw"
	"github.com/gogpu/overdraw/config"
	"github.com/gogpu/overdraw/internal/app"
	"github.com/gogpu/overdraw/report"
)

var runFlags struct {
	frames int
	dt     time.Duration
	json   bool
	record bool
	hold   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Measure a number of frames and print a report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runFlags.frames <= 0 {
			return fmt.Errorf("invalid --frames: %d", runFlags.frames)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if runFlags.record {
			cfg.Recording.Enabled = true
		}

		s, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		stop := serveMetrics(cfg)
		defer stop()

		v, err := s.Run(cmd.Context(), runFlags.frames, runFlags.dt)
		if err != nil {
			return err
		}
		if runFlags.json {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(s.Registry().Snapshot())
		}
		fmt.Print(report.Table(v))
		if dir := s.Recording(); dir != "" {
			fmt.Println("recorded to", dir)
		}

		if runFlags.hold && cfg.Metrics.Enabled {
			fmt.Println("serving metrics on", cfg.Metrics.Address, "(ctrl+c to stop)")
			<-cmd.Context().Done()
		}
		return nil
	},
}

// serveMetrics starts the /metrics endpoint when enabled and returns its
// shutdown function.
func serveMetrics(cfg *config.Config) func() {
	if !cfg.Metrics.Enabled {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			overdraw.Logger().Error("overdraw: metrics server", "err", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func init() {
	runCmd.Flags().IntVarP(&runFlags.frames, "frames", "n", 120, "frames to measure")
	runCmd.Flags().DurationVar(&runFlags.dt, "dt", 16*time.Millisecond, "simulated frame time")
	runCmd.Flags().BoolVar(&runFlags.json, "json", false, "print the final snapshot as JSON")
	runCmd.Flags().BoolVar(&runFlags.record, "record", false, "record the session (overrides config)")
	runCmd.Flags().BoolVar(&runFlags.hold, "hold", false, "keep serving metrics after the run")
}
