package imaging

import (
	"fmt"
	"image"
	"math"
)

// CompareRegionsResult describes how closely two regions of an image agree
// pixel by pixel.
type CompareRegionsResult struct {
	SimilarityScore  float64     `json:"similarity_score"`
	PixelsDifferent  int         `json:"pixels_different"`
	TotalPixels      int         `json:"total_pixels"`
	SameSize         bool        `json:"same_size"`
	Region1Size      image.Point `json:"region1_size"`
	Region2Size      image.Point `json:"region2_size"`
	AverageColorDiff float64     `json:"average_color_diff"`
}

// differentThreshold is the mean 8-bit channel difference above which a
// pixel pair counts as different.
const differentThreshold = 10

// CompareRegions compares r1 and r2 of img pixel by pixel, aligned at their
// top-left corners over the overlap of their sizes. Both rectangles are
// relative to the image's top-left corner and must lie inside the image.
//
// It is used to confirm a reported copy-move match: a genuine clone scores
// close to 1 with a small average color difference.
func CompareRegions(img image.Image, r1, r2 image.Rectangle) (*CompareRegionsResult, error) {
	bounds := img.Bounds()
	for _, r := range []image.Rectangle{r1, r2} {
		if r.Empty() || !r.Add(bounds.Min).In(bounds) {
			return nil, fmt.Errorf("region %v invalid or outside image %dx%d", r, bounds.Dx(), bounds.Dy())
		}
	}

	w := min(r1.Dx(), r2.Dx())
	h := min(r1.Dy(), r2.Dy())
	o1 := r1.Min.Add(bounds.Min)
	o2 := r2.Min.Add(bounds.Min)

	total := w * h
	different := 0
	var totalDiff float64
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			ar, ag, ab, _ := img.At(o1.X+dx, o1.Y+dy).RGBA()
			br, bg, bb, _ := img.At(o2.X+dx, o2.Y+dy).RGBA()

			diff := float64(absDiff(uint8(ar>>8), uint8(br>>8))+
				absDiff(uint8(ag>>8), uint8(bg>>8))+
				absDiff(uint8(ab>>8), uint8(bb>>8))) / 3.0
			totalDiff += diff
			if diff > differentThreshold {
				different++
			}
		}
	}

	similarity := 1.0 - float64(different)/float64(total)
	return &CompareRegionsResult{
		SimilarityScore:  math.Round(similarity*1000) / 1000,
		PixelsDifferent:  different,
		TotalPixels:      total,
		SameSize:         r1.Size() == r2.Size(),
		Region1Size:      r1.Size(),
		Region2Size:      r2.Size(),
		AverageColorDiff: math.Round(totalDiff/float64(total)*100) / 100,
	}, nil
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
