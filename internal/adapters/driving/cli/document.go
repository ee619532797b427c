package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-context/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage imported documents",
	Long:  `List, inspect, delete, or repair imported documents.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and its segments",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

var documentRepairCmd = &cobra.Command{
	Use:   "repair [doc-id]",
	Short: "Repair document metadata",
	Long: `Moves a document's metadata back onto its first segment and clears
any copies left on other segments.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentRepair,
}

func init() {
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	documentCmd.AddCommand(documentRepairCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	docs, err := ingestService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents imported.")
		return nil
	}

	cmd.Println("Documents:")
	cmd.Println()
	for i := range docs {
		cmd.Printf("  %s\n", docs[i].DocumentID)
		cmd.Printf("    Title: %s\n", documentTitle(&docs[i]))
		if docs[i].Metadata.StorageLocator != "" {
			cmd.Printf("    Path: %s\n", filesystem.PathForURI(docs[i].Metadata.StorageLocator))
		}
		cmd.Printf("    Segments: %d\n", docs[i].SegmentCount)
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	doc, err := findDocument(cmd, args[0])
	if err != nil {
		return err
	}

	meta := doc.Metadata
	cmd.Printf("ID: %s\n", doc.DocumentID)
	cmd.Printf("Title: %s\n", documentTitle(doc))
	if meta.Filename != "" {
		cmd.Printf("Filename: %s\n", meta.Filename)
	}
	if meta.ContentType != "" {
		cmd.Printf("Content-Type: %s\n", meta.ContentType)
	}
	if meta.Size > 0 {
		cmd.Printf("Size: %d bytes\n", meta.Size)
	}
	if meta.StorageLocator != "" {
		cmd.Printf("Path: %s\n", filesystem.PathForURI(meta.StorageLocator))
	}
	cmd.Printf("Segments: %d\n", doc.SegmentCount)
	if !doc.CreatedAt.IsZero() {
		cmd.Printf("Imported: %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if meta.IsZero() {
		cmd.Println("Metadata: missing, run 'sercha-context document repair' to restore it")
	}
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	removed, err := ingestService.Delete(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("document not found: %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Deleted document %s (%d segments)\n", args[0], removed)
	return nil
}

func runDocumentRepair(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	err := ingestService.RepairMetadata(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("no metadata found for document: %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to repair document: %w", err)
	}

	cmd.Printf("Repaired metadata for document %s\n", args[0])
	return nil
}

func findDocument(cmd *cobra.Command, id string) (*domain.DocumentSummary, error) {
	docs, err := ingestService.List(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	for i := range docs {
		if docs[i].DocumentID == id {
			return &docs[i], nil
		}
	}
	return nil, fmt.Errorf("document not found: %s", id)
}

func documentTitle(doc *domain.DocumentSummary) string {
	if doc.Metadata.Title != "" {
		return doc.Metadata.Title
	}
	if doc.Metadata.Filename != "" {
		return doc.Metadata.Filename
	}
	return "(untitled)"
}
