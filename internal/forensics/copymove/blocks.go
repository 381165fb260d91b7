package copymove

import (
	"fmt"
	"image"

	"github.com/Molcarrus/image-forensics/internal/forensics"
)

// Block is a square window of the image identified by its top-left corner.
// Coordinates are relative to the image's top-left corner.
type Block struct {
	X    int `json:"x" yaml:"x"`
	Y    int `json:"y" yaml:"y"`
	Size int `json:"size" yaml:"size"`
}

// Rect returns the pixel rectangle covered by the block.
func (b Block) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Size, b.Y+b.Size)
}

// Center returns the block center in pixel coordinates.
func (b Block) Center() (float64, float64) {
	h := float64(b.Size) / 2
	return float64(b.X) + h, float64(b.Y) + h
}

// ExtractBlocks returns every block of the given size that lies fully inside
// a width x height image, stepping by stride, in row-major order.
//
// The last row and column of origins are always included even when
// (dimension - size) is not a multiple of stride, so the whole image is covered.
func ExtractBlocks(width, height, size, stride int) ([]Block, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: block size must be positive, got %d", forensics.ErrInvalidParameter, size)
	}
	if stride < 1 {
		return nil, fmt.Errorf("%w: stride must be positive, got %d", forensics.ErrInvalidParameter, stride)
	}
	if size > width || size > height {
		return nil, fmt.Errorf("%w: block size %d exceeds image %dx%d", forensics.ErrInvalidParameter, size, width, height)
	}

	xs := origins(width-size, stride)
	ys := origins(height-size, stride)
	blocks := make([]Block, 0, len(xs)*len(ys))
	for _, y := range ys {
		for _, x := range xs {
			blocks = append(blocks, Block{X: x, Y: y, Size: size})
		}
	}
	return blocks, nil
}

func origins(last, stride int) []int {
	out := make([]int, 0, last/stride+2)
	for v := 0; v <= last; v += stride {
		out = append(out, v)
	}
	if out[len(out)-1] != last {
		out = append(out, last)
	}
	return out
}

// excludeBlocks drops blocks that intersect any of the given regions.
func excludeBlocks(blocks []Block, regions []image.Rectangle) []Block {
	if len(regions) == 0 {
		return blocks
	}
	kept := blocks[:0:0]
	for _, b := range blocks {
		r := b.Rect()
		hit := false
		for _, ex := range regions {
			if r.Overlaps(ex) {
				hit = true
				break
			}
		}
		if !hit {
			kept = append(kept, b)
		}
	}
	return kept
}
