package domain

import (
	"fmt"
	"time"
)

// Segment is the immutable unit of indexed content.
// Documents are split into segments for granular retrieval.
type Segment struct {
	// ID is the unique identifier for the segment.
	ID string

	// DocumentID groups the segments of one source document.
	DocumentID string

	// Index is the zero-based position within the document.
	// It defines adjacency and ordering and is unique per DocumentID.
	Index int

	// Text is the segment content, including the overlap prefix.
	Text string

	// Embedding is the vector representation for semantic search.
	Embedding []float32

	// Metadata is set only on the segment at MetadataSegmentIndex.
	Metadata *DocumentMetadata

	// CreatedAt is when the segment was created.
	CreatedAt time.Time
}

// Key returns a stable identity for the segment within the index.
func (s Segment) Key() SegmentKey {
	return SegmentKey{DocumentID: s.DocumentID, Index: s.Index}
}

// IsMetadataHolder reports whether this segment is the designated metadata carrier.
func (s Segment) IsMetadataHolder() bool {
	return s.Index == MetadataSegmentIndex
}

// SegmentKey identifies a segment by document and position.
type SegmentKey struct {
	DocumentID string
	Index      int
}

// String returns "documentID#index".
func (k SegmentKey) String() string {
	return fmt.Sprintf("%s#%d", k.DocumentID, k.Index)
}

// IndexRange is an inclusive range of segment indices within one document.
type IndexRange struct {
	Start int
	End   int
}

// NewWindow returns the range [index-radius, index+radius] clamped at zero.
// The upper bound is left open; stores only return segments that exist.
func NewWindow(index, radius int) IndexRange {
	if radius < 0 {
		radius = 0
	}
	start := index - radius
	if start < 0 {
		start = 0
	}
	return IndexRange{Start: start, End: index + radius}
}

// Len returns the number of indices covered by the range.
func (r IndexRange) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether index falls inside the range.
func (r IndexRange) Contains(index int) bool {
	return index >= r.Start && index <= r.End
}

// Touches reports whether the two ranges overlap or are contiguous.
func (r IndexRange) Touches(other IndexRange) bool {
	return r.Start <= other.End+1 && other.Start <= r.End+1
}

// Union returns the smallest range covering both ranges.
func (r IndexRange) Union(other IndexRange) IndexRange {
	out := r
	if other.Start < out.Start {
		out.Start = other.Start
	}
	if other.End > out.End {
		out.End = other.End
	}
	return out
}

// ClampEnd limits the range to maxIndex.
func (r IndexRange) ClampEnd(maxIndex int) IndexRange {
	if r.End > maxIndex {
		r.End = maxIndex
	}
	return r
}

// String returns "[start,end]".
func (r IndexRange) String() string {
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}

// ValidateSegmentIndices checks that segments of one document carry indices
// 0..N-1 in order. Stores accept any metadata placement so that documents
// written before the metadata rule can still be loaded and repaired.
func ValidateSegmentIndices(segments []Segment) error {
	if len(segments) == 0 {
		return nil
	}
	docID := segments[0].DocumentID
	for i, seg := range segments {
		if seg.DocumentID != docID {
			return fmt.Errorf("%w: segment %d belongs to %q, expected %q",
				ErrInvalidInput, i, seg.DocumentID, docID)
		}
		if seg.Index != i {
			return fmt.Errorf("%w: segment at position %d has index %d",
				ErrInvalidInput, i, seg.Index)
		}
	}
	return nil
}

// ValidateSegmentSequence is ValidateSegmentIndices plus the rule that only the
// designated segment carries metadata. Freshly chunked documents must pass it.
func ValidateSegmentSequence(segments []Segment) error {
	if err := ValidateSegmentIndices(segments); err != nil {
		return err
	}
	for _, seg := range segments {
		if seg.Metadata != nil && !seg.IsMetadataHolder() {
			return fmt.Errorf("%w: metadata on non-designated segment %d",
				ErrInvalidInput, seg.Index)
		}
	}
	return nil
}
