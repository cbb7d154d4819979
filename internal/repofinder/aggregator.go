package repofinder

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Aggregator fans resolve requests out to every configured finder in
// parallel, merges their results, and sorts them globally per §4.7.
// Finders that fail are logged and skipped rather than failing the whole
// resolve; cancellation is cooperative and propagates to every pending
// finder, mirroring the worker-pool fan-out in
// internal/repomanager's clone queue, generalized here via
// golang.org/x/sync/errgroup instead of a hand-rolled WaitGroup, since
// every finder call is independent and none needs to report back into a
// shared mutable queue.
type Aggregator struct {
	finders []Finder
	logger  *slog.Logger
}

// NewAggregator returns an Aggregator over the given finders. A nil
// logger falls back to slog.Default().
func NewAggregator(finders []Finder, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{finders: finders, logger: logger}
}

// ResolveAsync runs every finder concurrently and returns their merged,
// globally sorted results. A cancelled ctx terminates pending finders and
// returns ctx.Err().
func (a *Aggregator) ResolveAsync(ctx context.Context, requests []CollectionRef) ([]Result, error) {
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var merged []Result

	for _, f := range a.finders {
		f := f
		g.Go(func() error {
			results, err := f.ResolveAsync(gctx, requests)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				a.logger.Warn("repofinder: finder failed, skipping", "variant", f.Variant(), "error", err)
				return nil
			}
			mu.Lock()
			merged = append(merged, results...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	SortResults(merged)
	return merged, nil
}
