// Package chunker splits document text into overlapping, boundary-aware segments.
package chunker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.PostProcessor = (*Processor)(nil)

// DefaultChunkSize is the default number of runes per segment.
const DefaultChunkSize = domain.DefaultChunkTargetSize

// DefaultChunkOverlap is the default number of overlapping runes.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// Processor splits document content into segments.
// It implements the PostProcessor interface.
type Processor struct {
	cfg Config
	now func() time.Time
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the segment size in runes.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.cfg.TargetSize = size
	}
}

// WithOverlap sets the overlap between segments in runes.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.cfg.Overlap = overlap
	}
}

// WithTolerance sets the fraction of the chunk size searched for a boundary.
func WithTolerance(tolerance float64) Option {
	return func(p *Processor) {
		p.cfg.Tolerance = tolerance
	}
}

// New creates a new chunker processor with the given options.
// Returns ErrInvalidConfiguration if the resulting parameters are out of range.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		cfg: Config{
			TargetSize: DefaultChunkSize,
			Overlap:    DefaultChunkOverlap,
			Tolerance:  DefaultTolerance,
		},
		now: time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Config returns the split parameters.
func (p *Processor) Config() Config {
	return p.cfg
}

// Process splits the document content into segments with indices 0..N-1.
// Input segments are ignored; this processor creates new segments from document content.
// Document metadata is attached to the first segment only.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Segment) ([]domain.Segment, error) {
	if doc.Content == "" {
		return nil, nil
	}

	pieces, err := p.cfg.Pieces(doc.Content)
	if err != nil {
		return nil, err
	}

	meta := doc.Metadata
	if meta.Title == "" {
		meta.Title = doc.Title
	}
	created := p.now()

	var segments []domain.Segment
	for piece := range pieces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seg := domain.Segment{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Index:      len(segments),
			Text:       piece.Text,
			CreatedAt:  created,
		}
		if seg.IsMetadataHolder() {
			m := meta
			seg.Metadata = &m
		}
		segments = append(segments, seg)
	}

	return segments, nil
}
