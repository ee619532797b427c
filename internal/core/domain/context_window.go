package domain

import (
	"fmt"
	"strings"
)

// SegmentRole tags a segment within a context window.
type SegmentRole string

const (
	// RoleTarget marks a segment that was itself a relevant hit.
	RoleTarget SegmentRole = "target"

	// RoleAdjacent marks a segment included for surrounding context only.
	RoleAdjacent SegmentRole = "adjacent"
)

// ContextSegment is a segment placed in a context window.
type ContextSegment struct {
	Segment Segment
	Role    SegmentRole

	// Tokens is the estimated token count of the segment text.
	Tokens int

	// Score is the hit's CombinedScore for targets and zero otherwise.
	Score float64
}

// IsTarget reports whether the segment was directly relevant.
func (c ContextSegment) IsTarget() bool {
	return c.Role == RoleTarget
}

// IsAdjacent reports whether the segment is context only.
func (c ContextSegment) IsAdjacent() bool {
	return c.Role == RoleAdjacent
}

// DocumentRun is the deduplicated, index-ordered slice of one document
// that made it into a context window.
type DocumentRun struct {
	// DocumentID identifies the source document.
	DocumentID string

	// Metadata is resolved from the document's designated segment, when available.
	Metadata *DocumentMetadata

	// BestScore is the highest CombinedScore among the run's targets.
	BestScore float64

	// Segments are in strictly increasing index order.
	Segments []ContextSegment

	// Tokens is the sum of segment token estimates.
	Tokens int

	// Degraded is set when adjacent segments could not be fetched
	// and the run holds only the relevant hits.
	Degraded bool
}

// Indices returns the segment indices of the run in order.
func (r DocumentRun) Indices() []int {
	out := make([]int, len(r.Segments))
	for i := range r.Segments {
		out[i] = r.Segments[i].Segment.Index
	}
	return out
}

// TargetCount returns how many segments in the run are targets.
func (r DocumentRun) TargetCount() int {
	n := 0
	for i := range r.Segments {
		if r.Segments[i].IsTarget() {
			n++
		}
	}
	return n
}

// ContextWindow is the ordered, token-bounded evidence assembled for one query.
// An empty window is a valid state meaning no document evidence was found.
type ContextWindow struct {
	// Runs are ordered by descending BestScore.
	Runs []DocumentRun

	// TokenCount is the total estimated tokens across runs.
	TokenCount int

	// TokenBudget is the budget the window was assembled under.
	TokenBudget int

	// DroppedDocuments lists documents whose runs did not fit the budget.
	DroppedDocuments []string
}

// IsEmpty reports whether the window holds no segments.
func (w *ContextWindow) IsEmpty() bool {
	if w == nil {
		return true
	}
	for i := range w.Runs {
		if len(w.Runs[i].Segments) > 0 {
			return false
		}
	}
	return true
}

// Len returns the total number of segments in the window.
func (w *ContextWindow) Len() int {
	if w == nil {
		return 0
	}
	n := 0
	for i := range w.Runs {
		n += len(w.Runs[i].Segments)
	}
	return n
}

// Segments flattens the window in presentation order.
func (w *ContextWindow) Segments() []ContextSegment {
	if w == nil {
		return nil
	}
	out := make([]ContextSegment, 0, w.Len())
	for i := range w.Runs {
		out = append(out, w.Runs[i].Segments...)
	}
	return out
}

// Render formats the window as plain text for a generation prompt.
// Each run is headed by its document label; segments are joined in reading order.
func (w *ContextWindow) Render() string {
	if w.IsEmpty() {
		return ""
	}
	var b strings.Builder
	for i := range w.Runs {
		run := &w.Runs[i]
		if len(run.Segments) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n", i+1, run.Label())
		prev := -2
		for _, cs := range run.Segments {
			if prev >= 0 && cs.Segment.Index != prev+1 {
				b.WriteString("\n...\n")
			}
			b.WriteString(cs.Segment.Text)
			prev = cs.Segment.Index
		}
	}
	return b.String()
}

// Label returns a display label for the run's document.
func (r DocumentRun) Label() string {
	if r.Metadata != nil {
		if r.Metadata.Title != "" {
			return r.Metadata.Title
		}
		if r.Metadata.Filename != "" {
			return r.Metadata.Filename
		}
	}
	return r.DocumentID
}
