package corestore

import (
	"io"

	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/coreerr"
	"github.com/objectrepo/corestore/internal/hashid"
	"github.com/objectrepo/corestore/internal/sign"
)

// readCommit returns the raw canonical bytes of the commit object at digest.
func (r *Repo) readCommit(digest hashid.Hash) ([]byte, error) {
	stream, err := r.store.OpenRead(hashid.KindCommit, digest)
	if err != nil {
		return nil, err
	}
	defer stream.Reader.Close()
	return io.ReadAll(stream.Reader)
}

// readCommitMeta loads the detached metadata dictionary for digest,
// returning an empty one if none has been written yet.
func (r *Repo) readCommitMeta(digest hashid.Hash) (canon.CommitMetaRecord, error) {
	stream, err := r.store.OpenRead(hashid.KindCommitMeta, digest)
	if err != nil {
		if coreerr.Is(err, coreerr.NotFound) {
			return canon.CommitMetaRecord{Metadata: make(map[string]canon.Variant)}, nil
		}
		return canon.CommitMetaRecord{}, err
	}
	defer stream.Reader.Close()
	data, err := io.ReadAll(stream.Reader)
	if err != nil {
		return canon.CommitMetaRecord{}, err
	}
	var cm canon.CommitMetaRecord
	if err := cm.UnmarshalCanonical(data); err != nil {
		return canon.CommitMetaRecord{}, err
	}
	if cm.Metadata == nil {
		cm.Metadata = make(map[string]canon.Variant)
	}
	return cm, nil
}

// SignCommit signs commit's raw bytes under algo and appends the signature
// to its detached metadata dictionary, preserving any signatures already
// present (including under other algorithms).
func (r *Repo) SignCommit(digest hashid.Hash, algo string, secretKey []byte) error {
	payload, err := r.readCommit(digest)
	if err != nil {
		return err
	}
	cm, err := r.readCommitMeta(digest)
	if err != nil {
		return err
	}
	if err := r.sign.Sign(algo, payload, secretKey, cm.Metadata); err != nil {
		return err
	}
	return r.store.ReplaceCommitMeta(digest, cm.MarshalCanonical())
}

// VerifyCommit checks commit's detached signatures against verifiers and
// caches the outcome for the duration of this process's current pull, per
// the sign engine's per-pull verified-commit memo.
func (r *Repo) VerifyCommit(digest hashid.Hash, verifiers []sign.VerifierConfig) (sign.VerifyResult, error) {
	payload, err := r.readCommit(digest)
	if err != nil {
		return sign.VerifyResult{}, err
	}
	cm, err := r.readCommitMeta(digest)
	if err != nil {
		return sign.VerifyResult{}, err
	}
	result, err := r.sign.Verify(payload, cm.Metadata, verifiers)
	if err != nil {
		return sign.VerifyResult{}, err
	}
	if result.AnyValid() {
		r.sign.MarkVerified(digest)
	}
	return result, nil
}
