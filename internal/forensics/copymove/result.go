package copymove

import (
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
)

// Kind is the analyzer variant name reported by copy-move results.
const Kind = "copy-move"

// Confidence weights.
const (
	similarityWeight = 0.6
	coverageWeight   = 0.4
	// coverageSaturation is the duplicated-area fraction that earns the
	// full coverage score.
	coverageSaturation = 0.10
	// dispersionPenalty reduces confidence for each cluster beyond the
	// first; many unrelated clusters are typical of repetitive textures.
	dispersionPenalty = 0.15
)

// Stats records pipeline counters and stage timings. Timings vary between
// runs and are left out of serialized results.
type Stats struct {
	Blocks      int           `json:"blocks" yaml:"blocks"`
	Excluded    int           `json:"excluded" yaml:"excluded"`
	FlatBlocks  int           `json:"flat_blocks" yaml:"flat_blocks"`
	Described   int           `json:"described" yaml:"described"`
	RawMatches  int           `json:"raw_matches" yaml:"raw_matches"`
	Clusters    int           `json:"clusters" yaml:"clusters"`
	Coverage    float64       `json:"coverage" yaml:"coverage"`
	FeatureTime time.Duration `json:"-" yaml:"-"`
	MatchTime   time.Duration `json:"-" yaml:"-"`
	ClusterTime time.Duration `json:"-" yaml:"-"`
	RenderTime  time.Duration `json:"-" yaml:"-"`
}

// Result is the outcome of a copy-move analysis. It is not modified after
// Detect returns.
type Result struct {
	// Matches holds one representative per accepted cluster, ordered by
	// descending similarity.
	Matches []Match `json:"matches" yaml:"matches"`

	// Clusters holds the member matches behind Matches, index-aligned.
	Clusters []Cluster `json:"clusters" yaml:"clusters"`

	// Confidence is the likelihood in [0, 1] that the image contains
	// duplicated regions.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Visualization is a copy of the input with matched regions marked.
	Visualization *image.NRGBA `json:"-" yaml:"-"`

	Width  int   `json:"width" yaml:"width"`
	Height int   `json:"height" yaml:"height"`
	Stats  Stats `json:"stats" yaml:"stats"`
}

// Kind implements forensics.Result.
func (r *Result) Kind() string { return Kind }

// Score implements forensics.Result.
func (r *Result) Score() float64 { return r.Confidence }

// Overlay implements forensics.Result.
func (r *Result) Overlay() image.Image { return r.Visualization }

// Save writes the visualization to path. The format is chosen from the
// file extension.
func (r *Result) Save(path string) error {
	if r.Visualization == nil {
		return fmt.Errorf("result has no visualization")
	}
	if err := imaging.Save(r.Visualization, path); err != nil {
		return fmt.Errorf("failed to save visualization: %w", err)
	}
	return nil
}

// confidence combines mean similarity, duplicated-area coverage and cluster
// dispersion into a score in [0, 1]. Zero clusters score zero.
func confidence(clusters []Cluster, coverage float64) float64 {
	if len(clusters) == 0 {
		return 0
	}
	var sum float64
	var n int
	for _, c := range clusters {
		for _, m := range c.Members {
			sum += m.Similarity
			n++
		}
	}
	meanSim := sum / float64(n)
	coverageScore := min(1, coverage/coverageSaturation)
	dispersion := 1 / (1 + dispersionPenalty*float64(len(clusters)-1))
	return clamp01((similarityWeight*meanSim + coverageWeight*coverageScore) * dispersion)
}

// coverage returns the fraction of the width x height image covered by the
// source or target block of at least one cluster member.
func coverage(clusters []Cluster, width, height int) float64 {
	if width <= 0 || height <= 0 || len(clusters) == 0 {
		return 0
	}
	// 2-D difference array over the rectangles, then a prefix sum.
	w1 := width + 1
	diff := make([]int32, w1*(height+1))
	mark := func(r image.Rectangle) {
		r = r.Intersect(image.Rect(0, 0, width, height))
		if r.Empty() {
			return
		}
		diff[r.Min.Y*w1+r.Min.X]++
		diff[r.Min.Y*w1+r.Max.X]--
		diff[r.Max.Y*w1+r.Min.X]--
		diff[r.Max.Y*w1+r.Max.X]++
	}
	for _, c := range clusters {
		for _, m := range c.Members {
			mark(m.Source.Rect())
			mark(m.Target.Rect())
		}
	}

	covered := 0
	row := make([]int32, w1)
	for y := 0; y < height; y++ {
		var run int32
		for x := 0; x < width; x++ {
			run += diff[y*w1+x]
			row[x] += run
			if row[x] > 0 {
				covered++
			}
		}
	}
	return float64(covered) / float64(width*height)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
