package copymove

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/Molcarrus/image-forensics/internal/forensics"
)

// RawMatch is a pair of similar blocks. Source precedes Target in row-major
// order, so every unordered pair has exactly one representation.
type RawMatch struct {
	Source     Block   `json:"source" yaml:"source"`
	Target     Block   `json:"target" yaml:"target"`
	Similarity float64 `json:"similarity" yaml:"similarity"`
}

// Offset returns the translation from the source block to the target block.
func (m RawMatch) Offset() (dx, dy int) {
	return m.Target.X - m.Source.X, m.Target.Y - m.Source.Y
}

// scanFactor bounds how many sorted successors are inspected per block,
// relative to the search window, when most of them fail the distance check.
const scanFactor = 8

// matchFeatures finds block pairs whose similarity is at least the
// threshold and whose centers are at least minDistance apart.
//
// # Algorithm
//
// Descriptors are quantized and sorted lexicographically, which places
// similar descriptors next to each other. The sorted sequence is cut into
// buckets of equal quantized prefix, and each block is compared only with
// its successors in the same or the following bucket, up to SearchWindow
// candidates that satisfy the distance constraint. Candidate selection does
// not depend on the threshold, so raising the threshold can only remove matches.
func matchFeatures(ctx context.Context, fs *featureSet, p Params, workers int) ([]RawMatch, error) {
	if !(p.SimilarityThreshold > 0 && p.SimilarityThreshold <= 1) {
		return nil, fmt.Errorf("%w: similarity threshold must be in (0, 1], got %v", forensics.ErrInvalidParameter, p.SimilarityThreshold)
	}
	if p.MinDistance < 0 {
		return nil, fmt.Errorf("%w: min distance must not be negative, got %d", forensics.ErrInvalidParameter, p.MinDistance)
	}
	n := fs.len()
	if n < 2 || fs.dim == 0 {
		return nil, nil
	}

	keys := quantize(fs, p.QuantStep)
	dim := fs.dim
	key := func(i int) []int32 { return keys[i*dim : (i+1)*dim] }

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		if c := slices.Compare(key(a), key(b)); c != 0 {
			return c
		}
		ba, bb := fs.blocks[a], fs.blocks[b]
		if c := cmp.Compare(ba.Y, bb.Y); c != 0 {
			return c
		}
		return cmp.Compare(ba.X, bb.X)
	})

	prefix := min(p.BucketPrefix, dim)
	bucket := make([]int, n)
	for i := 1; i < n; i++ {
		bucket[i] = bucket[i-1]
		if !slices.Equal(key(order[i])[:prefix], key(order[i-1])[:prefix]) {
			bucket[i]++
		}
	}

	minDist2 := int64(p.MinDistance) * int64(p.MinDistance)
	scanCap := p.SearchWindow * scanFactor
	spans := partition(n, workers*4)
	parts := make([][]RawMatch, len(spans))

	err := forEachSpan(ctx, spans, workers, func(ctx context.Context, part int, s span) error {
		var out []RawMatch
		for i := s.lo; i < s.hi; i++ {
			if (i-s.lo)%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			a := order[i]
			va := fs.vector(a)
			counted, scanned := 0, 0
			for j := i + 1; j < n && bucket[j] <= bucket[i]+1; j++ {
				if counted >= p.SearchWindow || scanned >= scanCap {
					break
				}
				scanned++
				b := order[j]
				if !farEnough(fs.blocks[a], fs.blocks[b], minDist2) {
					continue
				}
				counted++
				sim := Similarity(va, fs.vector(b))
				if sim < p.SimilarityThreshold {
					continue
				}
				src, dst := fs.blocks[a], fs.blocks[b]
				if compareBlocks(dst, src) < 0 {
					src, dst = dst, src
				}
				out = append(out, RawMatch{Source: src, Target: dst, Similarity: sim})
			}
		}
		parts[part] = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("match features: %w", err)
	}

	var matches []RawMatch
	for _, pt := range parts {
		matches = append(matches, pt...)
	}
	slices.SortFunc(matches, compareMatches)
	return matches, nil
}

func quantize(fs *featureSet, step float64) []int32 {
	keys := make([]int32, len(fs.data))
	for i, v := range fs.data {
		keys[i] = int32(math.Floor(v/step + 0.5))
	}
	return keys
}

// farEnough reports whether the centers of two equally sized blocks are at
// least sqrt(minDist2) pixels apart.
func farEnough(a, b Block, minDist2 int64) bool {
	dx := int64(a.X - b.X)
	dy := int64(a.Y - b.Y)
	return dx*dx+dy*dy >= minDist2
}

// compareMatches orders matches by source then target, both row-major.
func compareMatches(a, b RawMatch) int {
	if c := compareBlocks(a.Source, b.Source); c != 0 {
		return c
	}
	return compareBlocks(a.Target, b.Target)
}

func compareBlocks(a, b Block) int {
	if c := cmp.Compare(a.Y, b.Y); c != 0 {
		return c
	}
	return cmp.Compare(a.X, b.X)
}
