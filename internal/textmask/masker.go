// Package textmask locates text in an image so that copy-move analysis can
// ignore it. Repeated glyphs are genuine duplicates and would otherwise be
// reported as cloned regions.
//
// Two maskers are provided: OCRMasker uses Tesseract word boxes, and
// EdgeDensityMasker uses an OCR-free edge-density heuristic.
package textmask

import (
	"fmt"
	"image"
	"sort"

	"github.com/Molcarrus/image-forensics/internal/forensics"
)

// Region is a rectangle believed to contain text. Coordinates are relative
// to the image's top-left corner.
type Region struct {
	Bounds     image.Rectangle `json:"bounds"`
	Confidence float64         `json:"confidence"`
}

// Masker finds text regions in an image.
type Masker interface {
	Regions(img image.Image) ([]Region, error)
}

// New returns the masker for kind: "none" (nil masker), "edges" or "ocr".
func New(kind, language string) (Masker, error) {
	switch kind {
	case "none", "":
		return nil, nil
	case "edges":
		return NewEdgeDensityMasker(), nil
	case "ocr":
		return NewOCRMasker(language), nil
	default:
		return nil, fmt.Errorf("%w: unknown text mask %q", forensics.ErrInvalidParameter, kind)
	}
}

// Rectangles extracts the bounds of regions.
func Rectangles(regions []Region) []image.Rectangle {
	out := make([]image.Rectangle, len(regions))
	for i, r := range regions {
		out[i] = r.Bounds
	}
	return out
}

// pad grows r by n pixels on every side and clips it to the w x h image.
func pad(r image.Rectangle, n, w, h int) image.Rectangle {
	return r.Inset(-n).Intersect(image.Rect(0, 0, w, h))
}

// mergeOverlapping combines overlapping regions into their union, keeping
// the highest confidence, and repeats until no two regions overlap. The
// result is sorted by descending confidence.
func mergeOverlapping(regions []Region) []Region {
	merged := append([]Region(nil), regions...)
	for changed := true; changed; {
		changed = false
		for i := 0; i < len(merged); i++ {
			for j := i + 1; j < len(merged); j++ {
				if !merged[i].Bounds.Overlaps(merged[j].Bounds) {
					continue
				}
				merged[i].Bounds = merged[i].Bounds.Union(merged[j].Bounds)
				merged[i].Confidence = max(merged[i].Confidence, merged[j].Confidence)
				merged = append(merged[:j], merged[j+1:]...)
				changed = true
				j--
			}
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Confidence > merged[j].Confidence
	})
	return merged
}
