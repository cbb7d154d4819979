package corestore

import (
	"io"

	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/coreerr"
	"github.com/objectrepo/corestore/internal/hashid"
	"github.com/objectrepo/corestore/internal/objstore"
)

// PruneOptions configures Prune. The zero value prunes everything
// unreachable from any ref.
type PruneOptions struct {
	// DryRun reports what would be deleted without deleting anything.
	DryRun bool
}

// Prune performs a mark-and-sweep collection over the four reclaimable
// object kinds (commit, dir-tree, dir-meta, file-content): it marks every
// digest reachable by following each ref's commit, the commit's parent
// chain, and each commit's root tree recursively, then deletes every
// unmarked object of those kinds. Commit-meta and tombstone-commit objects
// are left untouched: they are small detached records, not payload, and
// tombstones in particular exist specifically to describe commits this
// walk will not find reachable.
func (r *Repo) Prune(opts PruneOptions) (total, pruned int, freedBytes uint64, err error) {
	marked := map[hashid.Kind]map[hashid.Hash]bool{
		hashid.KindCommit:      {},
		hashid.KindDirTree:     {},
		hashid.KindDirMeta:     {},
		hashid.KindFileContent: {},
	}

	roots, err := r.pruneRoots()
	if err != nil {
		return 0, 0, 0, err
	}
	for _, digest := range roots {
		if err := r.markCommitChain(digest, marked); err != nil {
			return 0, 0, 0, err
		}
	}

	if err := r.store.Enumerate(r.logger, func(ref objstore.ObjectRef) error {
		set, reclaimable := marked[ref.Kind]
		if !reclaimable {
			return nil
		}
		total++
		if set[ref.Digest] {
			return nil
		}
		size, err := r.objectSize(ref)
		if err != nil {
			return err
		}
		if !opts.DryRun {
			if err := r.store.Delete(ref.Kind, ref.Digest); err != nil {
				return err
			}
		}
		pruned++
		freedBytes += uint64(size)
		return nil
	}); err != nil {
		return 0, 0, 0, err
	}
	return total, pruned, freedBytes, nil
}

// pruneRoots collects the commit digest every flat, remote-scoped and
// collection-scoped ref currently points at.
func (r *Repo) pruneRoots() ([]hashid.Hash, error) {
	var roots []hashid.Hash

	flat, err := r.refs.List("")
	if err != nil {
		return nil, err
	}
	for _, digest := range flat {
		roots = append(roots, digest)
	}

	collections, err := r.refs.ListCollectionRefs("")
	if err != nil {
		return nil, err
	}
	for _, digest := range collections {
		roots = append(roots, digest)
	}
	return roots, nil
}

// markCommitChain marks commit, walks its parent chain, and marks every
// tree/meta/file digest reachable from each commit's root tree.
func (r *Repo) markCommitChain(digest hashid.Hash, marked map[hashid.Kind]map[hashid.Hash]bool) error {
	for !digest.IsZero() {
		if marked[hashid.KindCommit][digest] {
			return nil // already walked this commit and everything below it
		}
		marked[hashid.KindCommit][digest] = true

		rec, err := r.readCommitRecord(digest)
		if err != nil {
			if coreerr.Is(err, coreerr.NotFound) {
				return nil // dangling parent; nothing further to mark
			}
			return err
		}
		if err := r.markTree(rec.RootTreeDigest, rec.RootMetaDigest, marked); err != nil {
			return err
		}
		digest = rec.Parent
	}
	return nil
}

func (r *Repo) readCommitRecord(digest hashid.Hash) (canon.CommitRecord, error) {
	data, err := r.readCommit(digest)
	if err != nil {
		return canon.CommitRecord{}, err
	}
	var rec canon.CommitRecord
	if err := rec.UnmarshalCanonical(data); err != nil {
		return canon.CommitRecord{}, err
	}
	return rec, nil
}

// markTree marks a dir-tree digest and its dir-meta digest, then recurses
// into every file and subdirectory entry.
func (r *Repo) markTree(treeDigest, metaDigest hashid.Hash, marked map[hashid.Kind]map[hashid.Hash]bool) error {
	if !metaDigest.IsZero() {
		marked[hashid.KindDirMeta][metaDigest] = true
	}
	if treeDigest.IsZero() || marked[hashid.KindDirTree][treeDigest] {
		return nil
	}
	marked[hashid.KindDirTree][treeDigest] = true

	stream, err := r.store.OpenRead(hashid.KindDirTree, treeDigest)
	if err != nil {
		if coreerr.Is(err, coreerr.NotFound) {
			return nil
		}
		return err
	}
	data, err := io.ReadAll(stream.Reader)
	stream.Reader.Close()
	if err != nil {
		return err
	}
	var rec canon.DirTreeRecord
	if err := rec.UnmarshalCanonical(data); err != nil {
		return err
	}

	for _, f := range rec.Files {
		marked[hashid.KindFileContent][f.Digest] = true
	}
	for _, d := range rec.Dirs {
		if err := r.markTree(d.TreeDigest, d.MetaDigest, marked); err != nil {
			return err
		}
	}
	return nil
}

// objectSize returns ref's on-disk payload size by reading it through the
// store (archive-mode file-content is transparently unframed/inflated, so
// this reports the same size objstore would hand a reader, not the raw
// loose-file size).
func (r *Repo) objectSize(ref objstore.ObjectRef) (int64, error) {
	stream, err := r.store.OpenRead(ref.Kind, ref.Digest)
	if err != nil {
		return 0, err
	}
	defer stream.Reader.Close()
	n, err := io.Copy(io.Discard, stream.Reader)
	if err != nil {
		return 0, err
	}
	return n, nil
}
