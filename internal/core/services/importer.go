package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-context/internal/logger"
)

// Ensure Importer implements the interface.
var _ driving.ImportService = (*Importer)(nil)

// Importer reads files through a Connector, normalises them and hands them to IngestService.
type Importer struct {
	connectors driven.ConnectorBuilder
	registry   driven.NormaliserRegistry
	ingest     driving.IngestService
}

// NewImporter creates an importer.
func NewImporter(
	connectors driven.ConnectorBuilder,
	registry driven.NormaliserRegistry,
	ingest driving.IngestService,
) *Importer {
	return &Importer{
		connectors: connectors,
		registry:   registry,
		ingest:     ingest,
	}
}

// DocumentIDForURI returns the stable document id for a file URI.
// Re-importing the same file replaces the stored version.
func DocumentIDForURI(uri string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(uri)).String()
}

// Import reads every file under root and ingests the supported ones.
func (i *Importer) Import(ctx context.Context, root string, opts driving.ImportOptions) (*driving.ImportReport, error) {
	connector, err := i.open(ctx, root)
	if err != nil {
		return nil, err
	}
	defer connector.Close()

	logger.Info("Importing %s", connector.Root())

	report := &driving.ImportReport{}
	docsCh, errsCh := connector.FullSync(ctx)

	for raw := range docsCh {
		result := i.importOne(ctx, &raw, domain.ChangeCreated, opts)
		if err := ctx.Err(); err != nil {
			return report, err
		}
		addResult(report, result)
		notify(opts, result)
	}
	if err := <-errsCh; err != nil {
		return report, fmt.Errorf("read %s: %w", root, err)
	}

	logger.Info("Import complete: %d imported, %d skipped, %d failed",
		report.Imported, report.Skipped, report.Failed)
	return report, nil
}

// Watch follows changes under root until ctx is cancelled.
func (i *Importer) Watch(ctx context.Context, root string, opts driving.ImportOptions) error {
	connector, err := i.open(ctx, root)
	if err != nil {
		return err
	}
	defer connector.Close()

	changes, err := connector.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}

	logger.Info("Watching %s", connector.Root())

	for {
		select {
		case <-ctx.Done():
			return nil

		case change, ok := <-changes:
			if !ok {
				return nil
			}

			var result driving.ImportResult
			switch change.Type {
			case domain.ChangeCreated, domain.ChangeUpdated:
				result = i.importOne(ctx, &change.Document, change.Type, opts)
			case domain.ChangeDeleted:
				result = i.deleteOne(ctx, change.Document.URI, opts)
			default:
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			if result.Err != nil {
				logger.Warn("%s %s: %v", change.Type, change.Document.URI, result.Err)
			}
			notify(opts, result)
		}
	}
}

func (i *Importer) open(ctx context.Context, root string) (driven.Connector, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: path is required", domain.ErrInvalidInput)
	}
	if i.connectors == nil || i.registry == nil || i.ingest == nil {
		return nil, errors.New("importer not configured")
	}

	connector, err := i.connectors(root)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", root, err)
	}
	if err := connector.Validate(ctx); err != nil {
		_ = connector.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return connector, nil
}

// importOne normalises and ingests one raw document.
func (i *Importer) importOne(ctx context.Context, raw *domain.RawDocument, change domain.ChangeType, opts driving.ImportOptions) driving.ImportResult {
	result := driving.ImportResult{
		URI:        raw.URI,
		DocumentID: documentID(raw.URI, opts),
		Change:     change,
	}

	normalised, err := i.registry.Normalise(ctx, raw)
	if errors.Is(err, domain.ErrUnsupportedType) {
		logger.Debug("Skipping %s: %s", raw.URI, raw.MIMEType)
		result.Skipped = true
		return result
	}
	if err != nil {
		result.Err = fmt.Errorf("normalise: %w", err)
		return result
	}

	doc := normalised.Document
	if strings.TrimSpace(doc.Content) == "" {
		logger.Debug("Skipping %s: no text", raw.URI)
		result.Skipped = true
		return result
	}
	doc.ID = result.DocumentID
	if opts.Title != "" {
		doc.Title = opts.Title
		doc.Metadata.Title = opts.Title
	}

	result.Segments, result.Err = i.ingest.Ingest(ctx, &doc)
	return result
}

// deleteOne removes the document stored for a file URI. A file that was never
// imported is not an error.
func (i *Importer) deleteOne(ctx context.Context, uri string, opts driving.ImportOptions) driving.ImportResult {
	result := driving.ImportResult{
		URI:        uri,
		DocumentID: documentID(uri, opts),
		Change:     domain.ChangeDeleted,
	}

	removed, err := i.ingest.Delete(ctx, result.DocumentID)
	if errors.Is(err, domain.ErrNotFound) {
		result.Skipped = true
		return result
	}
	result.Segments, result.Err = removed, err
	return result
}

func documentID(uri string, opts driving.ImportOptions) string {
	if opts.DocumentID != "" {
		return opts.DocumentID
	}
	return DocumentIDForURI(uri)
}

func notify(opts driving.ImportOptions, result driving.ImportResult) {
	if opts.OnResult != nil {
		opts.OnResult(result)
	}
}

func addResult(report *driving.ImportReport, result driving.ImportResult) {
	report.Results = append(report.Results, result)
	switch {
	case result.Err != nil:
		report.Failed++
		logger.Warn("Import %s: %v", result.URI, result.Err)
	case result.Skipped:
		report.Skipped++
	default:
		report.Imported++
		report.Segments += result.Segments
	}
}
