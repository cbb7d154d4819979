package repofinder

import "context"

// Finder is one of §4.7's polymorphic finder variants (config, mount,
// override, network-discovery): given a set of requested refs, returns
// ranked candidate results.
type Finder interface {
	// Variant names this finder for Result.FinderVariant and logging.
	Variant() string
	// ResolveAsync probes for the requested refs, honoring ctx
	// cancellation at every suspension point (§5).
	ResolveAsync(ctx context.Context, requests []CollectionRef) ([]Result, error)
}
