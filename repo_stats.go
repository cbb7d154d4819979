package corestore

import (
	"github.com/objectrepo/corestore/internal/introspect"
	"github.com/objectrepo/corestore/internal/objstore"
)

// Stats implements introspect.StatsProvider: an object count from a full
// Enumerate pass plus a ref count across both namespaces.
func (r *Repo) Stats() (introspect.RepoStats, error) {
	objectCount := 0
	if err := r.store.Enumerate(r.logger, func(objstore.ObjectRef) error {
		objectCount++
		return nil
	}); err != nil {
		return introspect.RepoStats{}, err
	}

	flatRefs, err := r.refs.List("")
	if err != nil {
		return introspect.RepoStats{}, err
	}
	collectionRefs, err := r.refs.ListCollectionRefs("")
	if err != nil {
		return introspect.RepoStats{}, err
	}

	stats := introspect.RepoStats{
		ObjectCount: objectCount,
		RefCount:    len(flatRefs) + len(collectionRefs),
	}
	if digest, ok := flatRefs["main"]; ok {
		stats.HeadDigest = digest.String()
	}
	return stats, nil
}
