package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/overdraw/recording"
	"github.com/gogpu/overdraw/report"
)

var replayCmd = &cobra.Command{
	Use:   "replay <session>",
	Short: "Summarize a recorded session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := recording.Load(args[0])
		if err != nil {
			return err
		}
		m := rec.Manifest
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "session %s  backend %s  screen %dx%d  %d frames\n",
			m.CreatedAt, m.Backend, m.ScreenWidth, m.ScreenHeight, len(rec.Snapshots))
		fmt.Fprintf(out, "%-18s %8s %8s %10s %10s\n", "CAMERA", "FRAMES", "FAILED", "AVG", "MAX")
		for _, c := range rec.Summary() {
			fmt.Fprintf(out, "%-18s %8d %8d %10s %10s\n",
				c.Camera, c.Frames, c.Failed, report.Format(c.AverageRatio), report.Format(c.MaxRatio))
		}
		if last := rec.Last(); last != nil {
			t := report.Sum(last)
			fmt.Fprintf(out, "%-18s %8s %8s %10s %10s\n", "TOTAL", "", "", report.Format(t.Average), report.Format(t.Max))
		}
		return nil
	},
}
