package copymove

import (
	"fmt"
	"image"
	"math"

	"github.com/Molcarrus/image-forensics/internal/forensics"
)

// Default parameter values.
const (
	DefaultBlockSize           = 16
	DefaultSimilarityThreshold = 0.95
	DefaultMinDistance         = 50
	DefaultStride              = 1
	DefaultVarianceThreshold   = 100.0
	DefaultCoefficients        = 16
	DefaultQuantStep           = 0.1
	DefaultBucketPrefix        = 2
	DefaultSearchWindow        = 12
	DefaultClusterTolerance    = 0.25
	DefaultMinClusterSize      = 3
	DefaultOutlineThickness    = 2
)

// MinQuantStep is the smallest accepted QuantStep. Descriptors have unit
// norm, so quantized keys stay well inside int32.
const MinQuantStep = 1e-3

// Params configures a Detector.
//
// BlockSize, SimilarityThreshold and MinDistance are the primary knobs; the
// remaining fields tune individual pipeline stages and default to values that
// work for photographs of typical size.
type Params struct {
	// BlockSize is the side length in pixels of the square analysis blocks.
	BlockSize int `yaml:"block_size" json:"block_size"`

	// SimilarityThreshold is the minimum descriptor similarity, in (0, 1],
	// for two blocks to be reported as a raw match.
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`

	// MinDistance is the minimum Euclidean distance in pixels between the
	// centers of two matched blocks. Zero disables the check.
	MinDistance int `yaml:"min_distance" json:"min_distance"`

	// Stride is the step between neighbouring block origins.
	Stride int `yaml:"stride" json:"stride"`

	// VarianceThreshold excludes blocks whose luminance variance (8-bit
	// scale) is below it. Flat areas such as sky or walls repeat naturally
	// and would otherwise dominate the match set.
	VarianceThreshold float64 `yaml:"variance_threshold" json:"variance_threshold"`

	// Coefficients is the number of low-frequency AC terms kept per block.
	// It is capped at BlockSize*BlockSize-1.
	Coefficients int `yaml:"coefficients" json:"coefficients"`

	// QuantStep is the bucket width used to quantize descriptors before sorting.
	// It must be at least MinQuantStep.
	QuantStep float64 `yaml:"quant_step" json:"quant_step"`

	// BucketPrefix is how many leading quantized coefficients define a bucket.
	BucketPrefix int `yaml:"bucket_prefix" json:"bucket_prefix"`

	// SearchWindow is the number of sorted successors each block is compared
	// with, counting only candidates that satisfy MinDistance.
	SearchWindow int `yaml:"search_window" json:"search_window"`

	// ClusterTolerance is the maximum offset disagreement, as a fraction of
	// BlockSize, for two matches to belong to the same cluster.
	ClusterTolerance float64 `yaml:"cluster_tolerance" json:"cluster_tolerance"`

	// MinClusterSize is the minimum number of matches in an accepted cluster.
	MinClusterSize int `yaml:"min_cluster_size" json:"min_cluster_size"`

	// Workers bounds pipeline parallelism. Zero means runtime.GOMAXPROCS(0).
	Workers int `yaml:"workers" json:"workers"`

	// SmoothingSigma applies a Gaussian pre-filter of this radius to the
	// luminance plane. Zero disables smoothing.
	SmoothingSigma float64 `yaml:"smoothing_sigma" json:"smoothing_sigma"`

	// OutlineThickness is the stroke width in pixels of overlay outlines.
	OutlineThickness int `yaml:"outline_thickness" json:"outline_thickness"`

	// ExcludeRegions lists rectangles, relative to the image's top-left
	// corner, whose blocks take no part in matching (for example text).
	ExcludeRegions []image.Rectangle `yaml:"-" json:"-"`

	// Logf receives debug messages. Nil disables logging.
	Logf func(format string, args ...any) `yaml:"-" json:"-"`
}

// DefaultParams returns the default configuration.
func DefaultParams() Params {
	return Params{
		BlockSize:           DefaultBlockSize,
		SimilarityThreshold: DefaultSimilarityThreshold,
		MinDistance:         DefaultMinDistance,
		Stride:              DefaultStride,
		VarianceThreshold:   DefaultVarianceThreshold,
		Coefficients:        DefaultCoefficients,
		QuantStep:           DefaultQuantStep,
		BucketPrefix:        DefaultBucketPrefix,
		SearchWindow:        DefaultSearchWindow,
		ClusterTolerance:    DefaultClusterTolerance,
		MinClusterSize:      DefaultMinClusterSize,
		OutlineThickness:    DefaultOutlineThickness,
	}
}

// Validate reports the first out-of-range field as an ErrInvalidParameter.
func (p Params) Validate() error {
	switch {
	case p.BlockSize < 1:
		return invalid("block size must be positive, got %d", p.BlockSize)
	case !(p.SimilarityThreshold > 0 && p.SimilarityThreshold <= 1):
		return invalid("similarity threshold must be in (0, 1], got %v", p.SimilarityThreshold)
	case p.MinDistance < 0:
		return invalid("min distance must not be negative, got %d", p.MinDistance)
	case p.Stride < 1:
		return invalid("stride must be positive, got %d", p.Stride)
	case p.VarianceThreshold < 0 || math.IsNaN(p.VarianceThreshold):
		return invalid("variance threshold must not be negative, got %v", p.VarianceThreshold)
	case p.Coefficients < 1:
		return invalid("coefficient count must be positive, got %d", p.Coefficients)
	case !(p.QuantStep >= MinQuantStep) || math.IsInf(p.QuantStep, 0):
		return invalid("quantization step must be at least %v, got %v", MinQuantStep, p.QuantStep)
	case p.BucketPrefix < 1 || p.BucketPrefix > p.Coefficients:
		return invalid("bucket prefix must be in [1, %d], got %d", p.Coefficients, p.BucketPrefix)
	case p.SearchWindow < 1:
		return invalid("search window must be positive, got %d", p.SearchWindow)
	case !(p.ClusterTolerance > 0) || math.IsInf(p.ClusterTolerance, 0):
		return invalid("cluster tolerance must be positive, got %v", p.ClusterTolerance)
	case p.MinClusterSize < 1:
		return invalid("min cluster size must be positive, got %d", p.MinClusterSize)
	case p.Workers < 0:
		return invalid("workers must not be negative, got %d", p.Workers)
	case p.SmoothingSigma < 0 || math.IsNaN(p.SmoothingSigma):
		return invalid("smoothing sigma must not be negative, got %v", p.SmoothingSigma)
	case p.OutlineThickness < 1:
		return invalid("outline thickness must be positive, got %d", p.OutlineThickness)
	}
	return nil
}

// coefficientCount is the descriptor length for the configured block size.
func (p Params) coefficientCount() int {
	if n := p.BlockSize*p.BlockSize - 1; n < p.Coefficients {
		return n
	}
	return p.Coefficients
}

// tolerance is the cluster tolerance in pixels.
func (p Params) tolerance() float64 {
	return p.ClusterTolerance * float64(p.BlockSize)
}

func (p Params) logf(format string, args ...any) {
	if p.Logf != nil {
		p.Logf(format, args...)
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", forensics.ErrInvalidParameter, fmt.Sprintf(format, args...))
}
