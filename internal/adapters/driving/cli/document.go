package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage documents and their chunks",
	Long:  `Create, list, duplicate, delete or dump documents in the local library.`,
}

var documentAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Create a new document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentAdd,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show a document with its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentShow,
}

var documentDuplicateCmd = &cobra.Command{
	Use:   "duplicate [doc-id]",
	Short: "Copy a document with its chunks and embeddings",
	Long: `Creates a full copy of a document under a new identity.
Copied embeddings start unsynced: the copy gets its own vectors in the
external index on the next export, it never shares them with the source.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentDuplicate,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]...",
	Short: "Delete documents",
	Long: `Soft-deletes one or more documents with their chunks and embeddings.
Soft deletion never touches the external index; stranded vectors are
reconciled separately. With --hard the document is removed physically,
after its exported vectors are deleted from the index.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDocumentDelete,
}

var documentDumpCmd = &cobra.Command{
	Use:   "dump [doc-id]",
	Short: "Print a portable JSON dump of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDump,
}

var documentStatsCmd = &cobra.Command{
	Use:   "stats [doc-id]",
	Short: "Show document statistics and sync progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentStats,
}

var (
	documentSource   string
	documentTitle    string
	documentHard     bool
	documentListOff  int
	documentListMax  int
)

func init() {
	documentAddCmd.Flags().StringVarP(&documentSource, "source", "s", "", "document source locator")
	documentDuplicateCmd.Flags().StringVarP(&documentTitle, "title", "t", "", "title for the copy")
	documentDeleteCmd.Flags().BoolVar(&documentHard, "hard", false, "physically remove the document and its index vectors")
	documentListCmd.Flags().IntVar(&documentListOff, "offset", 0, "number of documents to skip")
	documentListCmd.Flags().IntVarP(&documentListMax, "limit", "n", 50, "maximum number of documents")

	documentCmd.AddCommand(documentAddCmd)
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentShowCmd)
	documentCmd.AddCommand(documentDuplicateCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	documentCmd.AddCommand(documentDumpCmd)
	documentCmd.AddCommand(documentStatsCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentAdd(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	ctx := context.Background()

	doc, err := libraryService.CreateDocument(ctx, args[0], documentSource, nil)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	cmd.Printf("Created document %s\n", doc.ID)
	return nil
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	ctx := context.Background()

	docs, err := libraryService.ListDocuments(ctx, documentListOff, documentListMax)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Title: %s\n", docs[i].Title)
		if docs[i].Source != "" {
			cmd.Printf("    Source: %s\n", docs[i].Source)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentShow(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	docID := args[0]
	ctx := context.Background()

	doc, err := libraryService.GetDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Title:    %s\n", doc.Title)
	cmd.Printf("  Source:   %s\n", doc.Source)
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:  %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))

	if len(doc.Metadata) > 0 {
		cmd.Println("\n  Metadata:")
		for k, v := range doc.Metadata {
			cmd.Printf("    %s: %v\n", k, v)
		}
	}

	chunks, err := libraryService.ListChunks(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to list chunks: %w", err)
	}

	if len(chunks) > 0 {
		cmd.Printf("\n  Chunks (%d):\n", len(chunks))
		for i := range chunks {
			cmd.Printf("    [%d] %s: %s\n", chunks[i].Index, chunks[i].ID, preview(chunks[i].Text, 60))
		}
	}

	return nil
}

func runDocumentDuplicate(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	ctx := context.Background()

	copied, err := libraryService.Duplicate(ctx, args[0], documentTitle)
	if err != nil {
		return fmt.Errorf("failed to duplicate document: %w", err)
	}

	cmd.Printf("Duplicated document %s -> %s\n", args[0], copied.ID)
	cmd.Println("Copied embeddings are unsynced; run 'embedsync export' to index them.")
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	ctx := context.Background()

	if documentHard {
		for _, id := range args {
			if err := libraryService.HardDelete(ctx, id); err != nil {
				return fmt.Errorf("failed to delete document %s: %w", id, err)
			}
			cmd.Printf("Deleted document %s (index vectors removed).\n", id)
		}
		return nil
	}

	report, err := libraryService.BatchSoftDelete(ctx, args)
	if err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	cmd.Printf("Deleted %d of %d documents.\n", report.Deleted, len(args))
	for _, id := range report.FailedIDs {
		cmd.Printf("  failed: %s\n", id)
	}
	return nil
}

func runDocumentDump(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	ctx := context.Background()

	dump, err := libraryService.Dump(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to dump document: %w", err)
	}

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dump: %w", err)
	}

	cmd.Println(string(data))
	return nil
}

func runDocumentStats(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	ctx := context.Background()

	stats, err := libraryService.Statistics(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	cmd.Printf("Document: %s\n\n", stats.DocumentID)
	cmd.Printf("  Title:       %s\n", stats.Title)
	cmd.Printf("  Chunks:      %d\n", stats.ChunkCount)
	cmd.Printf("  Embeddings:  %d\n", stats.EmbeddingCount)
	cmd.Printf("  Synced:      %d\n", stats.Synced)
	cmd.Printf("  Unsynced:    %d\n", stats.Unsynced)
	cmd.Printf("  Text bytes:  %d\n", stats.TotalTextBytes)
	cmd.Printf("  Sync:        %.1f%%\n", stats.SyncPercent)
	return nil
}

// preview bounds a string for one-line display.
func preview(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
