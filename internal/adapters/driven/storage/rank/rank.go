// Package rank holds the scoring primitives shared by the local search backends.
package rank

import (
	"container/heap"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/custodia-labs/sercha-context/internal/core/ports/driven"
)

// Cosine returns the cosine similarity of two vectors.
// Vectors of different length or zero magnitude score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Saturate maps an unbounded non-negative relevance onto [0,1).
func Saturate(s float64) float64 {
	if s <= 0 || math.IsNaN(s) {
		return 0
	}
	return s / (1 + s)
}

// Terms splits text into lowercase letter/digit runs.
func Terms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TopK keeps the k best hits seen so far.
type TopK struct {
	k int
	h hitHeap
}

// NewTopK creates a collector for at most k hits.
func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{k: k, h: make(hitHeap, 0, k)}
}

// Push offers a hit. It is kept only if it beats the current worst.
func (t *TopK) Push(hit driven.SegmentHit) {
	if t.k == 0 {
		return
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, hit)
		return
	}
	if less(t.h[0], hit) {
		t.h[0] = hit
		heap.Fix(&t.h, 0)
	}
}

// Min returns the worst kept score, or 0 while fewer than k hits are held.
func (t *TopK) Min() float64 {
	if len(t.h) < t.k || len(t.h) == 0 {
		return 0
	}
	return t.h[0].Score
}

// Sorted returns the kept hits, best first.
// Ties are broken by document ID then index so results are stable.
func (t *TopK) Sorted() []driven.SegmentHit {
	out := make([]driven.SegmentHit, len(t.h))
	copy(out, t.h)
	sort.Slice(out, func(i, j int) bool { return less(out[j], out[i]) })
	return out
}

// less orders hits worst first.
func less(a, b driven.SegmentHit) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.Segment.DocumentID != b.Segment.DocumentID {
		return a.Segment.DocumentID > b.Segment.DocumentID
	}
	return a.Segment.Index > b.Segment.Index
}

type hitHeap []driven.SegmentHit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return less(h[i], h[j]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)        { *h = append(*h, x.(driven.SegmentHit)) }
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
