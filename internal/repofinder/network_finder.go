package repofinder

import (
	"context"

	"github.com/objectrepo/corestore/internal/hashid"
)

// ServiceRecord is one network-discovered remote's advertisement: a
// candidate remote plus a bloom filter over the refs it claims to carry.
type ServiceRecord struct {
	Remote RemoteConfig
	Filter *Bloom
}

// ServiceBrowser abstracts the discovery transport (mDNS/DNS-SD or
// whatever carries service records), so NetworkFinder can be tested
// without a real network.
type ServiceBrowser interface {
	Browse(ctx context.Context) ([]ServiceRecord, error)
}

// Prober queries a remote directly once its bloom filter claims a
// requested ref, to get an authoritative digest.
type Prober interface {
	Probe(ctx context.Context, remote RemoteConfig, refs []CollectionRef) (map[CollectionRef]hashid.Hash, error)
}

// NetworkFinder implements §4.7's "network-discovery" variant: receive
// service records carrying a parameterised refs bloom filter, and probe
// only remotes whose filter claims any requested ref.
type NetworkFinder struct {
	Browser  ServiceBrowser
	Prober   Prober
	Priority int
}

func (f *NetworkFinder) Variant() string { return "network-discovery" }

func bloomKey(ref CollectionRef) string { return ref.Collection + "\x00" + ref.Ref }

func (f *NetworkFinder) ResolveAsync(ctx context.Context, requests []CollectionRef) ([]Result, error) {
	records, err := f.Browser.Browse(ctx)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var candidates []CollectionRef
		for _, req := range requests {
			if rec.Filter == nil || rec.Filter.MaybeContains(bloomKey(req)) {
				candidates = append(candidates, req)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		digests, err := f.Prober.Probe(ctx, rec.Remote, candidates)
		if err != nil {
			continue
		}
		refToDigest := make(map[CollectionRef]*hashid.Hash, len(candidates))
		for _, req := range candidates {
			if digest, ok := digests[req]; ok {
				d := digest
				refToDigest[req] = &d
			}
		}
		results = append(results, Result{
			Remote:        rec.Remote,
			FinderVariant: f.Variant(),
			Priority:      f.Priority,
			RefToDigest:   refToDigest,
		})
	}
	return results, nil
}
