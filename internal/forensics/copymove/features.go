package copymove

import (
	"context"
	"fmt"
)

// featureSet holds the described (non-flat) blocks and their descriptors
// packed into one backing slice.
type featureSet struct {
	blocks []Block
	dim    int
	data   []float64
	flat   int
}

func (f *featureSet) vector(i int) FeatureVector {
	return f.data[i*f.dim : (i+1)*f.dim]
}

func (f *featureSet) len() int { return len(f.blocks) }

// describeBlocks computes descriptors for blocks in parallel. Each worker
// fills its own partial set; the partials are concatenated in span order so
// the result keeps the input's row-major order.
func describeBlocks(ctx context.Context, plane *Plane, blocks []Block, p Params, workers int) (*featureSet, error) {
	dim := p.coefficientCount()
	spans := partition(len(blocks), workers*4)
	parts := make([]featureSet, len(spans))

	err := forEachSpan(ctx, spans, workers, func(ctx context.Context, part int, s span) error {
		desc := NewDescriptor(p.BlockSize, dim, p.VarianceThreshold)
		out := featureSet{dim: dim, data: make([]float64, 0, (s.hi-s.lo)*dim)}
		buf := make(FeatureVector, dim)
		for i := s.lo; i < s.hi; i++ {
			if (i-s.lo)%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			fv, ok, err := desc.Describe(plane, blocks[i], buf)
			if err != nil {
				return err
			}
			if !ok {
				out.flat++
				continue
			}
			out.blocks = append(out.blocks, blocks[i])
			out.data = append(out.data, fv...)
		}
		parts[part] = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("describe blocks: %w", err)
	}

	total := 0
	for _, pt := range parts {
		total += len(pt.blocks)
	}
	fs := &featureSet{
		dim:    dim,
		blocks: make([]Block, 0, total),
		data:   make([]float64, 0, total*dim),
	}
	for _, pt := range parts {
		fs.blocks = append(fs.blocks, pt.blocks...)
		fs.data = append(fs.data, pt.data...)
		fs.flat += pt.flat
	}
	return fs, nil
}
