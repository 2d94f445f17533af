package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect and maintain the external vector index",
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector index statistics",
	Args:  cobra.NoArgs,
	RunE:  runIndexStats,
}

var indexQueryTopK int

var indexQueryCmd = &cobra.Command{
	Use:   "query [chunk-id]",
	Short: "Find vectors similar to a chunk's embedding",
	Long: `Runs a similarity search against the external index using the stored
embedding of the given chunk as the query vector.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexQuery,
}

var indexDeleteCmd = &cobra.Command{
	Use:   "delete [vector-ref]...",
	Short: "Delete vectors from the index by reference",
	Long: `Removes vectors from the external index. The owning embeddings return
to the unsynced state and are re-exported on the next run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndexDelete,
}

func init() {
	indexQueryCmd.Flags().IntVarP(&indexQueryTopK, "top", "k", 10, "number of matches to return")

	indexCmd.AddCommand(indexStatsCmd)
	indexCmd.AddCommand(indexQueryCmd)
	indexCmd.AddCommand(indexDeleteCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexStats(cmd *cobra.Command, _ []string) error {
	if exportService == nil {
		return errors.New("export service not configured")
	}

	ctx := context.Background()

	stats, err := exportService.IndexStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get index stats: %w", err)
	}

	cmd.Printf("Vectors:    %d\n", stats.VectorCount)
	cmd.Printf("Dimension:  %d\n", stats.Dimension)
	if len(stats.Namespaces) > 0 {
		cmd.Println("Namespaces:")
		for name, count := range stats.Namespaces {
			if name == "" {
				name = "(default)"
			}
			cmd.Printf("  %s: %d\n", name, count)
		}
	}
	return nil
}

func runIndexQuery(cmd *cobra.Command, args []string) error {
	if exportService == nil || libraryService == nil {
		return errors.New("services not configured")
	}

	ctx := context.Background()

	emb, err := libraryService.GetEmbedding(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get embedding for chunk: %w", err)
	}

	matches, err := exportService.Query(ctx, emb.Vector, indexQueryTopK, nil)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if len(matches) == 0 {
		cmd.Println("No matches found.")
		return nil
	}

	for i, m := range matches {
		cmd.Printf("%2d. %s (score %.4f)\n", i+1, m.Ref, m.Score)
		if title, ok := m.Metadata["document_title"].(string); ok && title != "" {
			cmd.Printf("    %s\n", title)
		}
		if text, ok := m.Metadata["text"].(string); ok && text != "" {
			cmd.Printf("    %s\n", preview(text, 80))
		}
	}
	return nil
}

func runIndexDelete(cmd *cobra.Command, args []string) error {
	if exportService == nil {
		return errors.New("export service not configured")
	}

	ctx := context.Background()

	if err := exportService.DeleteFromIndex(ctx, args); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}

	cmd.Printf("Deleted %d vectors; owning embeddings returned to unsynced.\n", len(args))
	return nil
}
