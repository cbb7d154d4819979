package corestore

import (
	"fmt"

	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/hashid"
	"github.com/objectrepo/corestore/internal/objstore"
)

// FsckError describes one object that failed integrity verification.
type FsckError struct {
	Kind   hashid.Kind
	Digest hashid.Hash
	Reason string
}

func (e FsckError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Digest, e.Reason)
}

// selfAddressedKinds are the object kinds whose digest is the hash of
// their own canonical bytes. commit-meta and tombstone-commit are stored
// under the digest of the commit they annotate, so they cannot be
// content-verified this way.
var selfAddressedKinds = map[hashid.Kind]bool{
	hashid.KindFileContent: true,
	hashid.KindDirTree:     true,
	hashid.KindDirMeta:     true,
	hashid.KindCommit:      true,
}

// Fsck walks every stored object, recomputing each self-addressed object's
// digest from its bytes and checking that every commit, dir-tree and
// dir-meta record still unmarshals into a well-formed canonical record. It
// returns every integrity failure found rather than stopping at the first.
func (r *Repo) Fsck() ([]FsckError, error) {
	var failures []FsckError

	if err := r.store.Enumerate(r.logger, func(ref objstore.ObjectRef) error {
		if !selfAddressedKinds[ref.Kind] {
			return nil
		}
		data, err := r.ReadObject(ref.Kind, ref.Digest)
		if err != nil {
			failures = append(failures, FsckError{Kind: ref.Kind, Digest: ref.Digest, Reason: err.Error()})
			return nil
		}
		if err := checkRecordShape(ref.Kind, data); err != nil {
			failures = append(failures, FsckError{Kind: ref.Kind, Digest: ref.Digest, Reason: err.Error()})
			return nil
		}
		if got := hashid.Sum(data); got != ref.Digest {
			failures = append(failures, FsckError{Kind: ref.Kind, Digest: ref.Digest, Reason: fmt.Sprintf("content hashes to %s", got)})
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return failures, nil
}

// checkRecordShape unmarshals data as kind's canonical record, surfacing
// any malformed-encoding error fsck should report.
func checkRecordShape(kind hashid.Kind, data []byte) error {
	switch kind {
	case hashid.KindCommit:
		var rec canon.CommitRecord
		return rec.UnmarshalCanonical(data)
	case hashid.KindDirTree:
		var rec canon.DirTreeRecord
		return rec.UnmarshalCanonical(data)
	case hashid.KindDirMeta:
		var rec canon.DirMetaRecord
		return rec.UnmarshalCanonical(data)
	default:
		return nil
	}
}
