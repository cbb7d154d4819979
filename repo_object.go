package corestore

import (
	"io"

	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/hashid"
)

// objectKindProbeOrder is the order DetectKind tries each kind in. Commit
// is checked first since it is the object operators look up most often
// (by ref resolution), file-content last since loose files vastly
// outnumber every other kind in a populated repository.
var objectKindProbeOrder = []hashid.Kind{
	hashid.KindCommit,
	hashid.KindDirTree,
	hashid.KindDirMeta,
	hashid.KindCommitMeta,
	hashid.KindTombstoneCommit,
	hashid.KindFileContent,
}

// DetectKind reports which object kind digest is stored under, trying
// each kind's loose path in turn. There is no reverse index from digest to
// kind: the loose-object layout distinguishes objects by directory/file
// extension, not by content, so a caller holding only a bare digest (as
// from a CLI argument) must probe.
func (r *Repo) DetectKind(digest hashid.Hash) (hashid.Kind, bool) {
	for _, kind := range objectKindProbeOrder {
		if r.store.Has(kind, digest) {
			return kind, true
		}
	}
	return 0, false
}

// ReadObject returns the raw canonical bytes stored under (kind, digest).
func (r *Repo) ReadObject(kind hashid.Kind, digest hashid.Hash) ([]byte, error) {
	stream, err := r.store.OpenRead(kind, digest)
	if err != nil {
		return nil, err
	}
	defer stream.Reader.Close()
	return io.ReadAll(stream.Reader)
}

// CommitMeta returns the detached metadata dictionary for a commit
// digest, or an empty one if none has been written.
func (r *Repo) CommitMeta(digest hashid.Hash) (map[string]canon.Variant, error) {
	cm, err := r.readCommitMeta(digest)
	if err != nil {
		return nil, err
	}
	return cm.Metadata, nil
}
