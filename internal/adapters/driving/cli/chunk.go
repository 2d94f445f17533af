package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Manage document chunks",
	Long:  `Add, update or list the ordered text fragments of a document.`,
}

var chunkAddCmd = &cobra.Command{
	Use:   "add [doc-id] [text]...",
	Short: "Append chunks to a document",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runChunkAdd,
}

var chunkUpdateCmd = &cobra.Command{
	Use:   "update [chunk-id] [text]",
	Short: "Replace a chunk's text",
	Long: `Replaces the text of a chunk. If the chunk has an exported embedding,
the embedding is marked stale and picked up by the next export.`,
	Args: cobra.ExactArgs(2),
	RunE: runChunkUpdate,
}

var chunkListCmd = &cobra.Command{
	Use:   "list [doc-id]",
	Short: "List the chunks of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunkList,
}

func init() {
	chunkCmd.AddCommand(chunkAddCmd)
	chunkCmd.AddCommand(chunkUpdateCmd)
	chunkCmd.AddCommand(chunkListCmd)
	rootCmd.AddCommand(chunkCmd)
}

func runChunkAdd(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	ctx := context.Background()

	chunks, err := libraryService.AddChunks(ctx, args[0], args[1:])
	if err != nil {
		return fmt.Errorf("failed to add chunks: %w", err)
	}

	for i := range chunks {
		cmd.Printf("Added chunk %s at index %d\n", chunks[i].ID, chunks[i].Index)
	}
	return nil
}

func runChunkUpdate(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	ctx := context.Background()

	if err := libraryService.UpdateChunkText(ctx, args[0], args[1]); err != nil {
		return fmt.Errorf("failed to update chunk: %w", err)
	}

	cmd.Printf("Updated chunk %s.\n", args[0])
	return nil
}

func runChunkList(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	ctx := context.Background()

	chunks, err := libraryService.ListChunks(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to list chunks: %w", err)
	}

	if len(chunks) == 0 {
		cmd.Println("No chunks found.")
		return nil
	}

	for i := range chunks {
		cmd.Printf("  [%d] %s\n", chunks[i].Index, chunks[i].ID)
		cmd.Printf("      %s\n", preview(chunks[i].Text, 80))
	}
	cmd.Printf("Total: %d chunks\n", len(chunks))
	return nil
}
