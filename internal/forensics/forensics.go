package forensics

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrInvalidParameter reports an analyzer configuration value outside its valid range.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrAnalysis reports an image that cannot be analyzed, or a failed analysis.
	ErrAnalysis = errors.New("analysis failed")

	// ErrComputation reports an internal invariant violation, such as a
	// non-finite feature value. It is always surfaced wrapped in ErrAnalysis.
	ErrComputation = errors.New("computation error")

	// ErrNotImplemented reports a known analyzer variant that has no implementation.
	ErrNotImplemented = errors.New("analyzer not implemented")
)

// Result is the generic outcome of an analyzer run.
type Result interface {
	// Kind returns the analyzer variant that produced the result.
	Kind() string

	// Score returns the analyzer's confidence that the image was manipulated, in [0, 1].
	Score() float64

	// Overlay returns a visualization with the same dimensions as the input image.
	Overlay() image.Image
}

// Analyzer is the capability every forensics analyzer implements.
//
// Analyze must not modify img and must be safe to call from multiple
// goroutines on the same Analyzer value.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, img image.Image) (Result, error)
}
