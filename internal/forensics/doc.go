// Package forensics defines the contract shared by every image forensics
// analyzer and the error taxonomy they report through.
//
// An analyzer inspects a single decoded image and produces a Result carrying
// a score in [0, 1] and an overlay the same size as the input. Concrete
// analyzers live in sub-packages (for example copymove) and are constructed by
// variant name through the analysis registry.
//
// # Errors
//
// Failures are reported by wrapping one of the sentinel errors below, so
// callers can classify them with errors.Is:
//
//   - ErrInvalidParameter: rejected at construction time
//   - ErrAnalysis: the image cannot be analyzed or the analysis failed
//   - ErrComputation: an internal invariant was violated mid-pipeline
//   - ErrNotImplemented: the requested analyzer variant is not available
package forensics
