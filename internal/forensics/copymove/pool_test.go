package copymove

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		n, parts      int
		expectedSpans int
	}{
		{10, 3, 3},
		{2, 8, 2},
		{0, 4, 0},
		{7, 0, 1},
	}
	for _, tt := range tests {
		spans := partition(tt.n, tt.parts)
		if len(spans) != tt.expectedSpans {
			t.Errorf("partition(%d, %d): expected %d spans, got %d", tt.n, tt.parts, tt.expectedSpans, len(spans))
			continue
		}
		next := 0
		for _, s := range spans {
			if s.lo != next || s.hi <= s.lo {
				t.Errorf("partition(%d, %d): bad span %+v", tt.n, tt.parts, s)
			}
			next = s.hi
		}
		if next != tt.n {
			t.Errorf("partition(%d, %d): spans end at %d", tt.n, tt.parts, next)
		}
	}
}

func TestForEachSpan(t *testing.T) {
	spans := partition(100, 7)
	out := make([]int, len(spans))
	err := forEachSpan(context.Background(), spans, 3, func(_ context.Context, part int, s span) error {
		out[part] = s.hi - s.lo
		return nil
	})
	if err != nil {
		t.Fatalf("forEachSpan failed: %v", err)
	}
	total := 0
	for _, v := range out {
		total += v
	}
	if total != 100 {
		t.Errorf("expected 100 items processed, got %d", total)
	}
}

func TestForEachSpan_Error(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	err := forEachSpan(context.Background(), partition(10, 10), 1, func(_ context.Context, part int, _ span) error {
		calls.Add(1)
		if part == 0 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}
