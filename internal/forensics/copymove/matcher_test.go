package copymove

import (
	"context"
	"errors"
	"testing"

	"github.com/Molcarrus/image-forensics/internal/forensics"
)

// describeForgedImage returns the feature set of the forged test image.
func describeForgedImage(t *testing.T, p Params) *featureSet {
	t.Helper()
	img := createForgedImage(t)
	plane := Luminance(img, 0)
	blocks, err := ExtractBlocks(plane.Width, plane.Height, p.BlockSize, p.Stride)
	if err != nil {
		t.Fatalf("ExtractBlocks failed: %v", err)
	}
	fs, err := describeBlocks(context.Background(), plane, blocks, p, 4)
	if err != nil {
		t.Fatalf("describeBlocks failed: %v", err)
	}
	return fs
}

func TestMatchFeatures_Invariants(t *testing.T) {
	p := DefaultParams()
	p.SimilarityThreshold = 0.6
	p.MinDistance = 40
	fs := describeForgedImage(t, p)

	matches, err := matchFeatures(context.Background(), fs, p, 4)
	if err != nil {
		t.Fatalf("matchFeatures failed: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("expected matches for the copied patch")
	}

	type pair struct{ a, b Block }
	seen := make(map[pair]bool)
	for _, m := range matches {
		if m.Source == m.Target {
			t.Errorf("self match: %+v", m)
		}
		if compareBlocks(m.Source, m.Target) >= 0 {
			t.Errorf("source does not precede target: %+v", m)
		}
		dx, dy := m.Offset()
		if dx*dx+dy*dy < p.MinDistance*p.MinDistance {
			t.Errorf("match closer than min distance: %+v", m)
		}
		if m.Similarity < p.SimilarityThreshold || m.Similarity > 1 {
			t.Errorf("similarity %v outside [threshold, 1]", m.Similarity)
		}
		if seen[pair{m.Source, m.Target}] || seen[pair{m.Target, m.Source}] {
			t.Errorf("duplicate pair: %+v", m)
		}
		seen[pair{m.Source, m.Target}] = true
	}
}

func TestMatchFeatures_ThresholdMonotonic(t *testing.T) {
	p := DefaultParams()
	fs := describeForgedImage(t, p)

	type pair struct{ a, b Block }
	var previous map[pair]bool
	for _, threshold := range []float64{0.3, 0.5, 0.7, 0.9, 0.99, 1} {
		p.SimilarityThreshold = threshold
		matches, err := matchFeatures(context.Background(), fs, p, 3)
		if err != nil {
			t.Fatalf("matchFeatures failed: %v", err)
		}
		current := make(map[pair]bool, len(matches))
		for _, m := range matches {
			current[pair{m.Source, m.Target}] = true
		}
		if previous != nil {
			for k := range current {
				if !previous[k] {
					t.Errorf("threshold %v produced a match absent at a lower threshold: %+v", threshold, k)
				}
			}
		}
		previous = current
	}
	if len(previous) == 0 {
		t.Error("exact copies should survive threshold 1")
	}
}

func TestMatchFeatures_WorkerIndependent(t *testing.T) {
	p := DefaultParams()
	p.SimilarityThreshold = 0.8
	fs := describeForgedImage(t, p)

	one, err := matchFeatures(context.Background(), fs, p, 1)
	if err != nil {
		t.Fatalf("matchFeatures failed: %v", err)
	}
	many, err := matchFeatures(context.Background(), fs, p, 8)
	if err != nil {
		t.Fatalf("matchFeatures failed: %v", err)
	}
	if len(one) != len(many) {
		t.Fatalf("match counts differ: %d vs %d", len(one), len(many))
	}
	for i := range one {
		if one[i] != many[i] {
			t.Fatalf("match %d differs: %+v vs %+v", i, one[i], many[i])
		}
	}
}

func TestMatchFeatures_InvalidParameters(t *testing.T) {
	fs := &featureSet{dim: 1}
	for _, p := range []Params{
		{SimilarityThreshold: 0, MinDistance: 10},
		{SimilarityThreshold: 1.5, MinDistance: 10},
		{SimilarityThreshold: 0.9, MinDistance: -1},
	} {
		if _, err := matchFeatures(context.Background(), fs, p, 1); !errors.Is(err, forensics.ErrInvalidParameter) {
			t.Errorf("params %+v: expected ErrInvalidParameter, got %v", p, err)
		}
	}
}

func TestFarEnough(t *testing.T) {
	a := Block{X: 0, Y: 0, Size: 8}
	if !farEnough(a, Block{X: 3, Y: 4, Size: 8}, 25) {
		t.Error("distance 5 should satisfy min distance 5")
	}
	if farEnough(a, Block{X: 3, Y: 3, Size: 8}, 25) {
		t.Error("distance 4.24 should not satisfy min distance 5")
	}
}
