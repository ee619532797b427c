package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-context/internal/connectors/filesystem"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driving"
)

var (
	ingestWatch bool
	ingestTitle string
	ingestID    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Import files or folders",
	Long: `Import files or folders into the segment store.

Each file is normalised to plain text, split into overlapping segments,
embedded when an embedding provider is configured and stored. Importing a
file again replaces the stored version. Hidden files and unsupported types
are skipped.

Use --watch to keep the store in sync with the given paths until Ctrl-C.
--title and --id apply to a single file only.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep watching the paths for changes")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "title for a single imported file")
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "document id for a single imported file")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if importService == nil {
		return errors.New("import service not configured")
	}
	if err := checkSingleFileFlags(args); err != nil {
		return err
	}

	ctx := cmd.Context()

	opts := driving.ImportOptions{
		Title:      ingestTitle,
		DocumentID: ingestID,
		OnResult:   func(r driving.ImportResult) { printImportResult(cmd, r) },
	}

	var total driving.ImportReport
	for _, path := range args {
		report, err := importService.Import(ctx, path, opts)
		if report != nil {
			total.Imported += report.Imported
			total.Skipped += report.Skipped
			total.Failed += report.Failed
			total.Segments += report.Segments
		}
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", path, err)
		}
	}

	cmd.Printf("\nImported %d, skipped %d, failed %d (%d segments)\n",
		total.Imported, total.Skipped, total.Failed, total.Segments)

	if !ingestWatch {
		return nil
	}

	cmd.Println("Watching for changes. Press Ctrl-C to stop.")
	g, gctx := errgroup.WithContext(ctx)
	for _, path := range args {
		g.Go(func() error {
			return importService.Watch(gctx, path, opts)
		})
	}
	return g.Wait()
}

// checkSingleFileFlags rejects --title and --id unless exactly one regular file is given.
func checkSingleFileFlags(args []string) error {
	if ingestTitle == "" && ingestID == "" {
		return nil
	}
	if len(args) != 1 {
		return errors.New("--title and --id require exactly one file")
	}
	info, err := os.Stat(args[0])
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", args[0], err)
	}
	if info.IsDir() {
		return errors.New("--title and --id cannot be used with a directory")
	}
	return nil
}

func printImportResult(cmd *cobra.Command, r driving.ImportResult) {
	path := filesystem.PathForURI(r.URI)
	switch {
	case r.Err != nil:
		cmd.Printf("  failed   %s: %v\n", path, r.Err)
	case r.Skipped:
		cmd.Printf("  skipped  %s\n", path)
	default:
		cmd.Printf("  %-8s %s (%d segments)\n", r.Change, path, r.Segments)
	}
}
