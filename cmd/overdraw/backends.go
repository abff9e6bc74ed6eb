package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/overdraw/backend"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List registered backends in selection order",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range backend.Available() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}
