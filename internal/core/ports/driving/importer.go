package driving

import (
	"context"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
)

// ImportService loads local files into the store through IngestService.
type ImportService interface {
	// Import reads every supported file under root (a file or a directory) and ingests it.
	// Unsupported files are skipped; per-file failures are counted, not returned.
	Import(ctx context.Context, root string, opts ImportOptions) (*ImportReport, error)

	// Watch re-ingests created or modified files and deletes removed ones
	// until ctx is cancelled. It returns nil on cancellation.
	Watch(ctx context.Context, root string, opts ImportOptions) error
}

// ImportOptions adjusts how files are turned into documents.
type ImportOptions struct {
	// Title overrides the derived title. Meant for single-file imports.
	Title string

	// DocumentID overrides the id derived from the file URI. Meant for single-file imports.
	DocumentID string

	// OnResult is called after each file is processed. Optional.
	OnResult func(ImportResult)
}

// ImportResult describes the outcome for one file.
type ImportResult struct {
	// URI is the file URI.
	URI string

	// DocumentID is the id the file was stored under.
	DocumentID string

	// Change is ChangeDeleted for removals, otherwise created or updated.
	Change domain.ChangeType

	// Segments is the number of segments stored or removed.
	Segments int

	// Skipped is set when no normaliser handles the file type.
	Skipped bool

	// Err is the failure, if any.
	Err error
}

// ImportReport summarises an Import call.
type ImportReport struct {
	Imported int
	Skipped  int
	Failed   int
	Segments int
	Results  []ImportResult
}
