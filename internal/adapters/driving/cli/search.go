package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search local documents and chunks",
	Long: `Performs a substring search across chunk text, document titles and
sources in the local library. The external index is not consulted; use
'embedsync index query' for similarity search.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	ctx := context.Background()

	matches, err := libraryService.SearchContent(ctx, args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(matches) == 0 {
		cmd.Println("No matches found.")
		return nil
	}

	for i, m := range matches {
		cmd.Printf("%2d. [%s] %s\n", i+1, m.Kind, m.DocumentTitle)
		if m.Kind == "chunk" {
			cmd.Printf("    chunk %s (index %d)\n", m.ChunkID, m.ChunkIndex)
		}
		if m.Preview != "" {
			cmd.Printf("    %s\n", m.Preview)
		}
	}
	return nil
}
