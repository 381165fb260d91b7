package copymove

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"github.com/Molcarrus/image-forensics/internal/forensics"
)

// Detector finds duplicated regions within a single image.
//
// A Detector is immutable after construction and safe for concurrent use.
type Detector struct {
	params Params
}

var _ forensics.Analyzer = (*Detector)(nil)

// New returns a detector with the given primary parameters and defaults for
// everything else.
//
// Returns an error wrapping forensics.ErrInvalidParameter when blockSize is
// not positive, similarityThreshold is outside (0, 1] or minDistance is negative.
func New(blockSize int, similarityThreshold float64, minDistance int) (*Detector, error) {
	p := DefaultParams()
	p.BlockSize = blockSize
	p.SimilarityThreshold = similarityThreshold
	p.MinDistance = minDistance
	return NewWithParams(p)
}

// NewWithParams returns a detector using p after validating it.
func NewWithParams(p Params) (*Detector, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.ExcludeRegions = append([]image.Rectangle(nil), p.ExcludeRegions...)
	return &Detector{params: p}, nil
}

// Params returns a copy of the detector configuration.
func (d *Detector) Params() Params {
	p := d.params
	p.ExcludeRegions = append([]image.Rectangle(nil), p.ExcludeRegions...)
	return p
}

// Name implements forensics.Analyzer.
func (d *Detector) Name() string { return Kind }

// Analyze implements forensics.Analyzer.
func (d *Detector) Analyze(ctx context.Context, img image.Image) (forensics.Result, error) {
	r, err := d.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Detect runs the copy-move pipeline on img.
//
// The image is read but never modified. Errors wrap forensics.ErrAnalysis
// when the image is empty or smaller than one block, or when a pipeline
// stage fails. Context cancellation is checked between stages and every few
// thousand blocks inside the worker loops, and is returned as the context's
// error.
func (d *Detector) Detect(ctx context.Context, img image.Image) (*Result, error) {
	p := d.params
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", forensics.ErrAnalysis)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: image has zero area", forensics.ErrAnalysis)
	}
	if w < p.BlockSize || h < p.BlockSize {
		return nil, fmt.Errorf("%w: image %dx%d is smaller than block size %d", forensics.ErrAnalysis, w, h, p.BlockSize)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	workers := workerCount(p.Workers)
	stats := Stats{}

	start := time.Now()
	plane := Luminance(img, p.SmoothingSigma)
	blocks, err := ExtractBlocks(w, h, p.BlockSize, p.Stride)
	if err != nil {
		return nil, d.fail("extract blocks", err)
	}
	stats.Blocks = len(blocks)
	blocks = excludeBlocks(blocks, p.ExcludeRegions)
	stats.Excluded = stats.Blocks - len(blocks)

	features, err := describeBlocks(ctx, plane, blocks, p, workers)
	if err != nil {
		return nil, d.fail("describe", err)
	}
	stats.FlatBlocks = features.flat
	stats.Described = features.len()
	stats.FeatureTime = time.Since(start)
	p.logf("copy-move: %dx%d, %d blocks, %d excluded, %d flat, %d described in %v",
		w, h, stats.Blocks, stats.Excluded, stats.FlatBlocks, stats.Described, stats.FeatureTime)

	start = time.Now()
	raw, err := matchFeatures(ctx, features, p, workers)
	if err != nil {
		return nil, d.fail("match", err)
	}
	stats.RawMatches = len(raw)
	stats.MatchTime = time.Since(start)
	p.logf("copy-move: %d raw matches in %v", stats.RawMatches, stats.MatchTime)

	start = time.Now()
	clusters, err := clusterMatches(ctx, raw, p, workers)
	if err != nil {
		return nil, d.fail("cluster", err)
	}
	clusters, matches := rankClusters(clusters)
	stats.Clusters = len(clusters)
	stats.ClusterTime = time.Since(start)
	p.logf("copy-move: %d clusters in %v", stats.Clusters, stats.ClusterTime)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	stats.Coverage = coverage(clusters, w, h)
	result := &Result{
		Matches:       matches,
		Clusters:      clusters,
		Confidence:    confidence(clusters, stats.Coverage),
		Visualization: renderOverlay(img, matches, p.OutlineThickness),
		Width:         w,
		Height:        h,
	}
	stats.RenderTime = time.Since(start)
	result.Stats = stats
	p.logf("copy-move: confidence %.3f, coverage %.3f", result.Confidence, stats.Coverage)
	return result, nil
}

// fail converts a stage error into the error returned by Detect. Context
// errors pass through unchanged; everything else is reported as an
// analysis failure. Invariant violations are always logged.
func (d *Detector) fail(stage string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, forensics.ErrComputation) {
		log.Printf("copy-move: %s failed: %v", stage, err)
	} else {
		d.params.logf("copy-move: %s failed: %v", stage, err)
	}
	return fmt.Errorf("%w: %s: %w", forensics.ErrAnalysis, stage, err)
}
