package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/action-gate/actiongate/internal/domain/policy"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List bundled policy presets",
	Run: func(cmd *cobra.Command, args []string) {
		registry := policy.NewPresetRegistry()
		for _, meta := range registry.List() {
			fmt.Printf("%-10s %s\n", meta.ID, meta.Description)
			if len(meta.Tags) > 0 {
				fmt.Printf("%-10s tags: %s\n", "", strings.Join(meta.Tags, ", "))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}
