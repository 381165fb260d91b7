package copymove

import (
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
)

// Plane is a single-channel luminance image with values on the 8-bit scale.
type Plane struct {
	Width  int
	Height int
	Pix    []float64
}

// At returns the luminance at (x, y). It does not bounds-check.
func (p *Plane) At(x, y int) float64 {
	return p.Pix[y*p.Width+x]
}

// Luminance converts img to a luminance plane, optionally Gaussian-smoothed
// with the given radius. The plane origin is the image's top-left corner.
func Luminance(img image.Image, sigma float64) *Plane {
	gray := imaging.Grayscale(img)

	pix, stride := gray.Pix, gray.Stride
	if sigma > 0 {
		smoothed := blur.Gaussian(gray, sigma)
		pix, stride = smoothed.Pix, smoothed.Stride
	}

	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	p := &Plane{Width: w, Height: h, Pix: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		row := pix[y*stride:]
		for x := 0; x < w; x++ {
			// R == G == B after grayscale conversion.
			p.Pix[y*w+x] = float64(row[x*4])
		}
	}
	return p
}
