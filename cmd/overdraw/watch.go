package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/gogpu/overdraw"
	"github.com/gogpu/overdraw/internal/app"
	"github.com/gogpu/overdraw/internal/ui"
)

var watchFlags struct {
	interval time.Duration
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Measure continuously in a live terminal view",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// The view owns the terminal; keep log output off it.
		overdraw.SetLogger(nil)

		s, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		stop := serveMetrics(cfg)
		defer stop()

		p := tea.NewProgram(ui.NewWatch(s, watchFlags.interval), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		_, err = p.Run()
		return err
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchFlags.interval, "interval", 100*time.Millisecond, "frame interval")
}
