package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/action-gate/actiongate/internal/domain/descriptor"
)

var hashDescriptorCmd = &cobra.Command{
	Use:   "hash-descriptor <file>",
	Short: "Compute the integrity pin for a descriptor file",
	Long: `Compute the canonical SHA-256 pin for a JSON descriptor file. The pin is
stable under key reordering and suitable for an allowlist entry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read descriptor: %w", err)
		}
		var desc map[string]any
		if err := json.Unmarshal(data, &desc); err != nil {
			return fmt.Errorf("descriptor file must deserialize to an object: %w", err)
		}
		pin, err := descriptor.ComputeHash(desc)
		if err != nil {
			return err
		}
		fmt.Println(pin)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashDescriptorCmd)
}
