package download

import (
	"testing"
)

func TestNewSpan(t *testing.T) {
	tests := map[string]struct {
		start, end int64
		wantErr    bool
	}{
		"valid":    {start: 0, end: 300},
		"one byte": {start: 999, end: 1000},
		"empty":    {start: 300, end: 300, wantErr: true},
		"inverted": {start: 10, end: 5, wantErr: true},
		"negative": {start: -1, end: 5, wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s, err := NewSpan(tt.start, tt.end)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", s)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if s.Len() != tt.end-tt.start {
				t.Fatalf("len = %d, want %d", s.Len(), tt.end-tt.start)
			}
		})
	}
}

func TestSpan_RangeHeader(t *testing.T) {
	tests := map[Span]string{
		{Start: 0, End: 300}:    "bytes=0-299",
		{Start: 300, End: 700}:  "bytes=300-699",
		{Start: 999, End: 1000}: "bytes=999-999",
	}

	for span, want := range tests {
		if got := span.RangeHeader(); got != want {
			t.Errorf("%s: got %q, want %q", span, got, want)
		}
	}
}
