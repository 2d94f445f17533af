package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show corpus-wide sync status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	ctx := context.Background()

	summary, err := libraryService.SyncSummary(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sync summary: %w", err)
	}

	cmd.Printf("Documents:   %d\n", summary.Documents)
	cmd.Printf("Chunks:      %d\n", summary.Chunks)
	cmd.Printf("Embeddings:  %d\n", summary.Embeddings)
	cmd.Printf("Synced:      %d\n", summary.Synced)
	cmd.Printf("Unsynced:    %d\n", summary.Unsynced)
	cmd.Printf("Sync:        %.1f%%\n", summary.SyncPercent)
	return nil
}
