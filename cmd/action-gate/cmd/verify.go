package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/action-gate/actiongate/internal/adapter/outbound/sqlite"
	"github.com/action-gate/actiongate/internal/config"
)

var verifyStreamID string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify event stream integrity",
	Long: `Recompute the hash chain of one event stream, or sweep every stream in
the store when --stream is omitted. Exits non-zero if any stream fails
verification.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify(cmd.Context())
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyStreamID, "stream", "", "verify a single stream id (default: all streams)")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	streams := []string{verifyStreamID}
	if verifyStreamID == "" {
		streams, err = store.ListStreams(ctx)
		if err != nil {
			return err
		}
		if len(streams) == 0 {
			fmt.Println("no streams in store")
			return nil
		}
	}

	tampered := 0
	for _, streamID := range streams {
		ok, err := store.VerifyStreamIntegrity(ctx, streamID)
		if err != nil {
			return fmt.Errorf("verify %s: %w", streamID, err)
		}
		status := "ok"
		if !ok {
			status = "TAMPERED"
			tampered++
		}
		fmt.Printf("%-50s %s\n", streamID, status)
	}

	if tampered > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d streams failed verification\n", tampered, len(streams))
		os.Exit(1)
	}
	return nil
}
