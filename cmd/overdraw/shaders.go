package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gogpu/overdraw/shaders"
)

var shadersCmd = &cobra.Command{
	Use:   "shaders",
	Short: "Inspect the measurement shaders",
}

var shadersCheckCmd = &cobra.Command{
	Use:   "check [file.wgsl...]",
	Short: "Compile WGSL with naga (built-in programs when no file is given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		sources := shaders.Builtin()
		if len(args) > 0 {
			sources = sources[:0]
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				sources = append(sources, shaders.Source{Name: filepath.Base(path), WGSL: string(data)})
			}
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, r := range shaders.Check(sources) {
			switch {
			case r.OK():
				fmt.Fprintf(out, "ok    %s (%d words)\n", r.Name, len(r.Words))
			case errors.Is(r.Err, shaders.ErrUnsupported):
				fmt.Fprintf(out, "skip  %s: %v\n", r.Name, r.Err)
			default:
				failed++
				fmt.Fprintf(out, "FAIL  %s: %v\n", r.Name, r.Err)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d shader(s) failed validation", failed)
		}
		return nil
	},
}

var showFlags struct {
	name string
}

var shadersShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the built-in WGSL source",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, s := range shaders.Builtin() {
			if showFlags.name == "" || s.Name == showFlags.name {
				fmt.Fprintf(cmd.OutOrStdout(), "// %s\n%s\n", s.Name, s.WGSL)
			}
		}
		return nil
	},
}

func init() {
	shadersShowCmd.Flags().StringVar(&showFlags.name, "name", "", "only print this program")
	shadersCmd.AddCommand(shadersCheckCmd, shadersShowCmd)
}
