package download

import (
	"fmt"
)

// Span is a half-open byte interval [Start, End) of the target blob.
// A valid Span is never empty.
type Span struct {
	Start int64
	End   int64
}

// NewSpan returns the span [start, end). It fails for negative offsets
// and for empty or inverted intervals.
func NewSpan(start, end int64) (Span, error) {
	if start < 0 || end <= start {
		return Span{}, fmt.Errorf("invalid span [%d,%d)", start, end)
	}

	return Span{Start: start, End: end}, nil
}

// Len returns the number of bytes in the span.
func (s Span) Len() int64 {
	return s.End - s.Start
}

// RangeHeader formats the span as an HTTP Range header value.
// HTTP byte ranges are inclusive, so the last offset is End-1.
func (s Span) RangeHeader() string {
	return fmt.Sprintf("bytes=%d-%d", s.Start, s.End-1)
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// within reports whether s lies inside [0, total).
func (s Span) within(total int64) bool {
	return s.Start >= 0 && s.Start < s.End && s.End <= total
}
