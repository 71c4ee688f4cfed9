package download

import (
	"slices"
)

// Coverage tracks which spans of a blob of known length have been
// written. Spans are kept sorted and merged: no two stored spans
// overlap or touch.
type Coverage struct {
	total   int64
	covered int64
	spans   []Span
}

// NewCoverage returns an empty Coverage for a blob of total bytes.
func NewCoverage(total int64) *Coverage {
	return &Coverage{total: total}
}

// Record marks span as covered, merging it with any stored span it
// overlaps or touches. A span outside [0, total) is rejected with a
// *BoundsError and leaves the coverage unchanged.
func (c *Coverage) Record(span Span) error {
	if !span.within(c.total) {
		return &BoundsError{Offset: span.Start, Length: span.Len(), Total: c.total}
	}

	// First stored span that ends at or after span.Start could touch it.
	lo, _ := slices.BinarySearchFunc(c.spans, span.Start, func(s Span, start int64) int {
		switch {
		case s.End < start:
			return -1
		default:
			return 1
		}
	})

	merged := span
	hi := lo
	for hi < len(c.spans) && c.spans[hi].Start <= merged.End {
		merged.Start = min(merged.Start, c.spans[hi].Start)
		merged.End = max(merged.End, c.spans[hi].End)
		hi++
	}

	var absorbed int64
	for _, s := range c.spans[lo:hi] {
		absorbed += s.Len()
	}

	c.spans = slices.Replace(c.spans, lo, hi, merged)
	c.covered += merged.Len() - absorbed

	return nil
}

// NextMissing returns the lowest-offset gap not yet covered. It
// returns false once the blob is fully covered.
func (c *Coverage) NextMissing() (Span, bool) {
	var cursor int64
	for _, s := range c.spans {
		if s.Start > cursor {
			return Span{Start: cursor, End: s.Start}, true
		}
		cursor = s.End
	}

	if cursor < c.total {
		return Span{Start: cursor, End: c.total}, true
	}

	return Span{}, false
}

// Complete reports whether every byte of the blob is covered.
func (c *Coverage) Complete() bool {
	return c.covered == c.total
}

// Covered returns the number of covered bytes.
func (c *Coverage) Covered() int64 {
	return c.covered
}

// Total returns the blob length the coverage was created for.
func (c *Coverage) Total() int64 {
	return c.total
}

// Spans returns a copy of the merged covered spans in ascending order.
func (c *Coverage) Spans() []Span {
	return slices.Clone(c.spans)
}
