package textmask

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// EdgeDensityMasker finds text-like areas without OCR.
//
// Text shows up as windows with a medium density of intensity edges and a
// predominantly horizontal run structure. Windows of several sizes are slid
// over the image at half-window steps; those scoring at least MinConfidence
// are padded and merged.
type EdgeDensityMasker struct {
	// MinConfidence is the minimum window score in [0, 1].
	MinConfidence float64

	// EdgeThreshold is the minimum neighbour intensity difference for an edge pixel.
	EdgeThreshold float64

	// Padding grows every accepted window on each side.
	Padding int
}

// NewEdgeDensityMasker returns a masker with default settings.
func NewEdgeDensityMasker() *EdgeDensityMasker {
	return &EdgeDensityMasker{
		MinConfidence: 0.5,
		EdgeThreshold: 30,
		Padding:       2,
	}
}

var textWindows = []struct{ w, h int }{
	{80, 25},
	{100, 30},
	{150, 40},
	{200, 50},
}

// Regions implements Masker.
func (m *EdgeDensityMasker) Regions(img image.Image) ([]Region, error) {
	gray := imaging.Grayscale(img)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	edges := edgeMap(gray, m.EdgeThreshold)

	// Integral image of edge counts for O(1) window densities.
	w1 := w + 1
	sum := make([]int, w1*(h+1))
	for y := 0; y < h; y++ {
		run := 0
		for x := 0; x < w; x++ {
			if edges[y*w+x] {
				run++
			}
			sum[(y+1)*w1+x+1] = sum[y*w1+x+1] + run
		}
	}
	count := func(x, y, ww, hh int) int {
		return sum[(y+hh)*w1+x+ww] - sum[y*w1+x+ww] - sum[(y+hh)*w1+x] + sum[y*w1+x]
	}

	var candidates []Region
	for _, ws := range textWindows {
		if ws.w > w || ws.h > h {
			continue
		}
		for y := 0; y <= h-ws.h; y += ws.h / 2 {
			for x := 0; x <= w-ws.w; x += ws.w / 2 {
				density := float64(count(x, y, ws.w, ws.h)) / float64(ws.w*ws.h)
				if density < 0.05 || density > 0.4 {
					continue
				}
				score := horizontalScore(edges, w, x, y, ws.w, ws.h) * (1 - math.Abs(density-0.2)/0.2)
				if score < m.MinConfidence {
					continue
				}
				candidates = append(candidates, Region{
					Bounds:     pad(image.Rect(x, y, x+ws.w, y+ws.h), m.Padding, w, h),
					Confidence: math.Round(score*1000) / 1000,
				})
			}
		}
	}
	return mergeOverlapping(candidates), nil
}

// edgeMap marks pixels whose right or lower neighbour differs by more than
// threshold. Border pixels are never edges.
func edgeMap(gray *image.NRGBA, threshold float64) []bool {
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	edges := make([]bool, w*h)
	at := func(x, y int) float64 { return float64(gray.Pix[y*gray.Stride+x*4]) }
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			c := at(x, y)
			if math.Abs(c-at(x+1, y)) > threshold || math.Abs(c-at(x, y+1)) > threshold {
				edges[y*w+x] = true
			}
		}
	}
	return edges
}

// horizontalScore is the share of horizontal edge runs among all runs in
// the window.
func horizontalScore(edges []bool, stride, x, y, w, h int) float64 {
	horizontal, vertical := 0, 0
	for row := y; row < y+h; row++ {
		inRun := false
		for col := x; col < x+w; col++ {
			if edges[row*stride+col] {
				if !inRun {
					horizontal++
					inRun = true
				}
			} else {
				inRun = false
			}
		}
	}
	for col := x; col < x+w; col++ {
		inRun := false
		for row := y; row < y+h; row++ {
			if edges[row*stride+col] {
				if !inRun {
					vertical++
					inRun = true
				}
			} else {
				inRun = false
			}
		}
	}
	if horizontal+vertical == 0 {
		return 0
	}
	return float64(horizontal) / float64(horizontal+vertical)
}
