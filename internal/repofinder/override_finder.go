package repofinder

import (
	"context"

	"github.com/objectrepo/corestore/internal/hashid"
)

// OverrideFinder probes a caller-supplied list of remote URIs (§4.7
// "override" variant). Results are keyed by (URI, keyring) via
// RemoteConfig's Name+Keyring fields, so the same URI configured under two
// different trust setups never collides.
type OverrideFinder struct {
	Remotes  []RemoteConfig
	Reader   SummaryReader
	Priority int
}

func (f *OverrideFinder) Variant() string { return "override" }

func (f *OverrideFinder) ResolveAsync(ctx context.Context, requests []CollectionRef) ([]Result, error) {
	var results []Result
	for _, remote := range f.Remotes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		refs, mtime, err := f.Reader.ReadSummary(ctx, remote)
		if err != nil {
			continue
		}
		refToDigest := make(map[CollectionRef]*hashid.Hash, len(requests))
		for _, req := range requests {
			if digest, ok := refs[req]; ok {
				d := digest
				refToDigest[req] = &d
			}
		}
		results = append(results, Result{
			Remote:        remote,
			FinderVariant: f.Variant(),
			Priority:      f.Priority,
			RefToDigest:   refToDigest,
			SummaryMtime:  mtime,
		})
	}
	return results, nil
}
