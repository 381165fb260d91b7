package copymove

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// span is a half-open index range [lo, hi) owned by one worker.
type span struct{ lo, hi int }

func workerCount(requested int) int {
	if requested > 0 {
		return requested
	}
	return runtime.GOMAXPROCS(0)
}

// partition splits [0, n) into at most parts contiguous spans of near-equal
// length. It returns no spans when n is zero.
func partition(n, parts int) []span {
	if n <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if parts > n {
		parts = n
	}
	out := make([]span, parts)
	base, extra := n/parts, n%parts
	lo := 0
	for i := range out {
		size := base
		if i < extra {
			size++
		}
		out[i] = span{lo: lo, hi: lo + size}
		lo += size
	}
	return out
}

// forEachSpan runs fn for every span with at most workers goroutines in
// flight. Each invocation receives its span index so it can write to a
// result slot it alone owns. The first error cancels the remaining work.
func forEachSpan(ctx context.Context, spans []span, workers int, fn func(ctx context.Context, part int, s span) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range spans {
		i, s := i, s
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, i, s)
		})
	}
	return g.Wait()
}
