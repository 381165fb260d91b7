package copymove

import (
	"image"
	"image/color"
	"math"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// goldenAngle spaces successive cluster hues so neighbours in the ranking
// get clearly different colors.
const goldenAngle = 137.50776405003785

// clusterColor returns the overlay color of the i-th ranked cluster.
func clusterColor(i int) color.NRGBA {
	h := math.Mod(float64(i)*goldenAngle, 360)
	r, g, b := colorful.Hsv(h, 0.85, 0.95).RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// renderOverlay returns a copy of img with each ranked match drawn in its
// own color: outlines around the source and target regions, a line between
// their centroids, and the 1-based rank next to both regions.
func renderOverlay(img image.Image, matches []Match, thickness int) *image.NRGBA {
	dst := imaging.Clone(img)
	for i, m := range matches {
		c := clusterColor(i)
		drawOutline(dst, m.SourceRegion, thickness, c)
		drawOutline(dst, m.TargetRegion, thickness, c)
		drawLine(dst, m.Source, m.Target, c)
		label := strconv.Itoa(i + 1)
		drawLabel(dst, m.SourceRegion, label, c)
		drawLabel(dst, m.TargetRegion, label, c)
	}
	return dst
}

func drawOutline(dst *image.NRGBA, r image.Rectangle, thickness int, c color.NRGBA) {
	b := dst.Bounds()
	r = r.Intersect(b)
	if r.Empty() {
		return
	}
	t := min(thickness, r.Dx(), r.Dy())
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), c)
	fill(dst, image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), c)
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y), c)
	fill(dst, image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y), c)
}

func fill(dst *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			dst.SetNRGBA(x, y, c)
		}
	}
}

// drawLine draws a one pixel wide Bresenham line from a to b.
func drawLine(dst *image.NRGBA, a, b image.Point, c color.NRGBA) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	bounds := dst.Bounds()
	x, y := a.X, a.Y
	e := dx + dy
	for {
		if image.Pt(x, y).In(bounds) {
			dst.SetNRGBA(x, y, c)
		}
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x += sx
		}
		if e2 <= dx {
			e += dx
			y += sy
		}
	}
}

func drawLabel(dst *image.NRGBA, r image.Rectangle, label string, c color.NRGBA) {
	face := basicfont.Face7x13
	// Above the region when there is room, otherwise just inside it.
	baseline := r.Min.Y - 3
	if baseline-face.Ascent < dst.Bounds().Min.Y {
		baseline = r.Min.Y + face.Ascent + 3
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(r.Min.X+3, baseline),
	}
	d.DrawString(label)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
