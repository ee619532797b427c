// Package postprocessors turns normalised documents into ordered segments.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-context/internal/core/domain"
	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-context/internal/logger"
)

var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline runs processors in order, feeding each the previous output.
//
// Processors placed before the chunker see nil segments and may rewrite
// doc.Content. Whatever the last processor returns must be a contiguous
// 0..N-1 segment sequence.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline returns a pipeline running processors in the given order.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Process runs doc through every stage.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document) ([]domain.Segment, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidInput)
	}

	var (
		segments []domain.Segment
		err      error
	)
	for _, stage := range p.processors {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		if segments, err = stage.Process(ctx, doc, segments); err != nil {
			return nil, fmt.Errorf("processor %s: %w", stage.Name(), err)
		}
	}

	if err := domain.ValidateSegmentSequence(segments); err != nil {
		return nil, fmt.Errorf("pipeline output: %w", err)
	}
	logger.Debug("Document %s: %d segments from %v", doc.ID, len(segments), p.Names())
	return segments, nil
}

// Add appends a stage.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of stages.
func (p *Pipeline) Len() int { return len(p.processors) }

// Names lists the stage names in run order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.processors))
	for i, stage := range p.processors {
		names[i] = stage.Name()
	}
	return names
}
