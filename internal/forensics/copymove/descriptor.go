package copymove

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/Molcarrus/image-forensics/internal/forensics"
)

// FeatureVector is a unit-length block descriptor.
type FeatureVector []float64

// Similarity returns 1 - |a-b|/2 for unit vectors a and b: 1 for identical
// descriptors, 0 for opposite ones. Vectors of different length score 0.
func Similarity(a, b FeatureVector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	s := 1 - math.Sqrt(sum)/2
	if s < 0 {
		return 0
	}
	return s
}

// Descriptor computes frequency-domain block descriptors.
//
// The block is mean-centered, transformed with a separable 2-D discrete
// cosine transform, and the first n AC coefficients in zigzag order are
// kept and normalised to unit length. The result is unchanged by uniform
// brightness shifts and by contrast scaling.
//
// A Descriptor holds scratch buffers and is not safe for concurrent use.
// Create one per goroutine.
type Descriptor struct {
	size     int
	n        int
	minVar   float64
	dct      *fourier.DCT
	order    []coord
	columns  []int
	block    []float64
	rowOut   []float64
	colIn    []float64
	colOut   []float64
	spectrum []float64
}

type coord struct{ u, v int }

// NewDescriptor returns a descriptor for size x size blocks producing n
// coefficients (capped at size*size-1). Blocks whose luminance variance is
// below minVariance are reported as flat.
func NewDescriptor(size, n int, minVariance float64) *Descriptor {
	if limit := size*size - 1; n > limit {
		n = limit
	}
	if n < 0 {
		n = 0
	}
	d := &Descriptor{
		size:   size,
		n:      n,
		minVar: minVariance,
		block:  make([]float64, size*size),
	}
	if size < 2 {
		return d
	}

	d.dct = fourier.NewDCT(size)
	d.order = zigzag(size, n)
	seen := make(map[int]bool)
	for _, c := range d.order {
		if !seen[c.v] {
			seen[c.v] = true
			d.columns = append(d.columns, c.v)
		}
	}
	d.rowOut = make([]float64, size)
	d.colIn = make([]float64, size)
	d.colOut = make([]float64, size)
	d.spectrum = make([]float64, size*size)
	return d
}

// Len returns the descriptor length.
func (d *Descriptor) Len() int { return d.n }

// Describe computes the descriptor of b into dst (allocated when nil or too
// short) and returns it. ok is false when the block is flat and has no
// usable descriptor.
func (d *Descriptor) Describe(p *Plane, b Block, dst FeatureVector) (fv FeatureVector, ok bool, err error) {
	if b.Size != d.size {
		return nil, false, fmt.Errorf("%w: block size %d, descriptor expects %d", forensics.ErrComputation, b.Size, d.size)
	}
	if b.X < 0 || b.Y < 0 || b.X+b.Size > p.Width || b.Y+b.Size > p.Height {
		return nil, false, fmt.Errorf("%w: block (%d,%d) size %d outside %dx%d plane",
			forensics.ErrComputation, b.X, b.Y, b.Size, p.Width, p.Height)
	}

	s := d.size
	var mean float64
	for y := 0; y < s; y++ {
		row := p.Pix[(b.Y+y)*p.Width+b.X:]
		for x := 0; x < s; x++ {
			v := row[x]
			d.block[y*s+x] = v
			mean += v
		}
	}
	mean /= float64(s * s)

	var variance float64
	for i, v := range d.block {
		c := v - mean
		d.block[i] = c
		variance += c * c
	}
	variance /= float64(s * s)
	if math.IsNaN(variance) || math.IsInf(variance, 0) {
		return nil, false, fmt.Errorf("%w: non-finite luminance in block (%d,%d)", forensics.ErrComputation, b.X, b.Y)
	}
	if variance < d.minVar || d.n == 0 || d.dct == nil {
		return nil, false, nil
	}

	// Row transforms: spectrum[y][v].
	for y := 0; y < s; y++ {
		d.dct.Transform(d.rowOut, d.block[y*s:(y+1)*s])
		copy(d.spectrum[y*s:], d.rowOut)
	}
	// Column transforms only for the columns the zigzag prefix touches.
	for _, v := range d.columns {
		for y := 0; y < s; y++ {
			d.colIn[y] = d.spectrum[y*s+v]
		}
		d.dct.Transform(d.colOut, d.colIn)
		for u := 0; u < s; u++ {
			d.spectrum[u*s+v] = d.colOut[u]
		}
	}

	if cap(dst) < d.n {
		dst = make(FeatureVector, d.n)
	}
	dst = dst[:d.n]
	var norm float64
	for i, c := range d.order {
		x := d.spectrum[c.u*s+c.v]
		dst[i] = x
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil, false, nil
	}
	for i := range dst {
		dst[i] /= norm
	}
	return dst, true, nil
}

// zigzag returns the first n (row, column) frequency pairs of a size x size
// spectrum in JPEG zigzag order, skipping the DC term.
func zigzag(size, n int) []coord {
	out := make([]coord, 0, n)
	for sum := 1; sum <= 2*(size-1) && len(out) < n; sum++ {
		lo := 0
		if sum > size-1 {
			lo = sum - (size - 1)
		}
		hi := sum - lo
		for k := 0; k <= hi-lo && len(out) < n; k++ {
			// Alternate traversal direction on each anti-diagonal.
			u := lo + k
			if sum%2 == 0 {
				u = hi - k
			}
			out = append(out, coord{u: u, v: sum - u})
		}
	}
	return out
}
