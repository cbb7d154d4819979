package repofinder

import (
	"context"

	"github.com/objectrepo/corestore/internal/hashid"
)

// SummaryReader abstracts reading a remote's advertised refs, so
// ConfigFinder need not depend on the network/pull transport directly.
type SummaryReader interface {
	// ReadSummary returns the remote's advertised ref map and the
	// summary file's mtime (0 if unknown).
	ReadSummary(ctx context.Context, remote RemoteConfig) (refs map[CollectionRef]hashid.Hash, mtime int64, err error)
}

// ConfigFinder inspects the local repo's configured remotes (§4.7
// "config" variant): each remote advertises its refs in a summary file;
// results are the intersection with the requested set.
type ConfigFinder struct {
	Remotes  []RemoteConfig
	Reader   SummaryReader
	Priority int
}

func (f *ConfigFinder) Variant() string { return "config" }

func (f *ConfigFinder) ResolveAsync(ctx context.Context, requests []CollectionRef) ([]Result, error) {
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
