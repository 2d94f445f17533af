package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/embedsync-cli/internal/core/domain"
)

var exportBatchSize int

var exportCmd = &cobra.Command{
	Use:   "export [doc-id]",
	Short: "Export unsynced embeddings to the vector index",
	Long: `Exports unsynced and stale embeddings to the external vector index
in batches. If a document ID is provided, only that document's embeddings
are exported. Partial failures are reported and retried on the next run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().IntVarP(&exportBatchSize, "batch-size", "b", 0, "embeddings per upsert batch (0 = default)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportService == nil {
		return errors.New("export service not configured")
	}

	ctx := context.Background()

	if len(args) > 0 {
		cmd.Printf("Exporting embeddings for document %s...\n", args[0])
	} else {
		cmd.Println("Exporting unsynced embeddings...")
	}

	var report *domain.ExportReport
	var err error
	if len(args) > 0 {
		report, err = exportService.ExportDocument(ctx, args[0], exportBatchSize)
	} else {
		report, err = exportService.ExportUnsynced(ctx, exportBatchSize)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	cmd.Printf("Selected:  %d\n", report.Selected)
	cmd.Printf("Succeeded: %d\n", report.Succeeded)
	cmd.Printf("Failed:    %d\n", report.Failed)
	cmd.Printf("Skipped:   %d\n", report.Skipped)
	cmd.Printf("Batches:   %d\n", report.Batches)

	if len(report.Failures) > 0 {
		cmd.Println("\nFailures:")
		for id, reason := range report.Failures {
			cmd.Printf("  %s: %s\n", id, reason)
		}
	}
	return nil
}
