// Package objstore implements the content-addressed loose object store: the
// low-level put/get/has/delete/enumerate surface that every other component
// builds on.
package objstore

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/coreerr"
	"github.com/objectrepo/corestore/internal/hashid"
)

// Mode is a repository's storage variant, selected at creation and
// immutable thereafter.
type Mode int

const (
	// ModeArchive stores file-content zlib-compressed behind a framed
	// header; ownership/xattrs live in the frame, not real fs attributes.
	ModeArchive Mode = iota
	// ModeBare stores file-content raw, owned per the stored uid/gid,
	// with real filesystem permissions and xattrs.
	ModeBare
	// ModeBareUser stores file-content raw, always owned by the repo
	// process; ownership/mode/xattrs live in the user.ostreemeta xattr.
	ModeBareUser
	// ModeBareUserOnly stores file-content raw, owned by the repo
	// process, with mode masked to 0775 and no uid/gid/xattrs stored.
	ModeBareUserOnly
)

// ParseMode parses a core.mode config value. "archive-z2" and "archive" are
// accepted as aliases of the same mode (see §9 open questions).
func ParseMode(s string) (Mode, error) {
	switch s {
	case "archive", "archive-z2":
		return ModeArchive, nil
	case "bare":
		return ModeBare, nil
	case "bare-user":
		return ModeBareUser, nil
	case "bare-user-only":
		return ModeBareUserOnly, nil
	default:
		return 0, coreerr.New(coreerr.InvalidArgument, "objstore: unknown repository mode %q", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeArchive:
		return "archive-z2"
	case ModeBare:
		return "bare"
	case ModeBareUser:
		return "bare-user"
	case ModeBareUserOnly:
		return "bare-user-only"
	default:
		return "unknown"
	}
}

// Ownership is a POSIX (uid, gid) pair.
type Ownership struct {
	UID uint32
	GID uint32
}

// ObjectStore is the content-addressed loose object store rooted at a
// repository directory. Lookups cascade to a parent store on miss; writes
// never do (see §3 "Parent repo chain").
type ObjectStore struct {
	root   string
	mode   Mode
	parent *ObjectStore

	mu           sync.Mutex
	dirmetaCache map[hashid.Hash]canon.DirMetaRecord
}

// Open initialises (creating objects/ and tmp/ if needed) the object store
// rooted at dir. parent may be nil.
func Open(dir string, mode Mode, parent *ObjectStore) (*ObjectStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "objects"), 0o777); err != nil {
		return nil, coreerr.Wrap(coreerr.Io, err, "objstore: create objects directory")
	}
	if err := os.MkdirAll(filepath.Join(dir, "tmp"), 0o777); err != nil {
		return nil, coreerr.Wrap(coreerr.Io, err, "objstore: create tmp directory")
	}
	return &ObjectStore{
		root:         dir,
		mode:         mode,
		parent:       parent,
		dirmetaCache: make(map[hashid.Hash]canon.DirMetaRecord),
	}, nil
}

// SyncObjectsDir fsyncs the repository's objects/ directory, the durability
// barrier a transaction commit applies after all objects for the
// transaction have landed (see internal/txn).
func (s *ObjectStore) SyncObjectsDir() error {
	f, err := os.Open(filepath.Join(s.root, "objects"))
	if err != nil {
		return coreerr.Wrap(coreerr.Io, err, "objstore: open objects directory for sync")
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return coreerr.Wrap(coreerr.Io, err, "objstore: fsync objects directory")
	}
	return nil
}

// Mode returns the store's storage variant.
func (s *ObjectStore) Mode() Mode { return s.mode }

// Root returns the repository root directory.
func (s *ObjectStore) Root() string { return s.root }

// TmpDir returns the repository's tmp/ staging root.
func (s *ObjectStore) TmpDir() string { return filepath.Join(s.root, "tmp") }

func (s *ObjectStore) loosePath(kind hashid.Kind, h hashid.Hash) (string, error) {
	rel, err := hashid.LoosePath(kind, h)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, "objects", rel), nil
}

// Has reports whether (kind, h) exists locally or in a parent repo.
func (s *ObjectStore) Has(kind hashid.Kind, h hashid.Hash) bool {
	p, err := s.loosePath(kind, h)
	if err != nil {
		return false
	}
	if _, err := os.Stat(p); err == nil {
		return true
	}
	if s.parent != nil {
		return s.parent.Has(kind, h)
	}
	return false
}

// Stream is an open object body. Meta is non-nil only for archive-mode
// file-content objects, where ownership/mode/xattrs ride in the frame.
type Stream struct {
	Reader ReadCloser
	Meta   *canon.DirMetaRecord
}

// ReadCloser is the minimal interface Stream wraps; defined locally so
// callers needn't import io for the common case.
type ReadCloser interface {
	Read(p []byte) (int, error)
	Close() error
}

// OpenRead opens the loose object named by (kind, h), cascading to the
// parent repo on miss. Archive-mode file-content objects are transparently
// unframed and zlib-inflated.
func (s *ObjectStore) OpenRead(kind hashid.Kind, h hashid.Hash) (*Stream, error) {
	p, err := s.loosePath(kind, h)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			if s.parent != nil {
				return s.parent.OpenRead(kind, h)
			}
			return nil, coreerr.New(coreerr.NotFound, "objstore: %s %s not found", kind, h.Short())
		}
		return nil, coreerr.Wrap(coreerr.Io, err, "objstore: open %s", p)
	}
	if kind == hashid.KindFileContent && s.mode == ModeArchive {
		return openArchiveFrame(f)
	}
	return &Stream{Reader: f}, nil
}

// Delete unlinks the loose object named by (kind, h). Idempotent: deleting
// a missing object is not an error.
func (s *ObjectStore) Delete(kind hashid.Kind, h hashid.Hash) error {
	p, err := s.loosePath(kind, h)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return coreerr.Wrap(coreerr.Io, err, "objstore: delete %s", p)
	}
	return nil
}

// CachedDirMeta returns a previously cached dir-meta record, sparing a
// repeat disk read when the same metadata digest recurs across many tree
// entries during a single commit (the "dirmeta cache" of §5, protected by
// a per-repo mutex with no I/O under the lock).
func (s *ObjectStore) CachedDirMeta(h hashid.Hash) (canon.DirMetaRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.dirmetaCache[h]
	return m, ok
}

// CacheDirMeta records m under digest h for future CachedDirMeta lookups.
func (s *ObjectStore) CacheDirMeta(h hashid.Hash, m canon.DirMetaRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirmetaCache[h] = m
}

// PutMetadata writes a self-addressed canonical-encoded metadata object
// (dir-tree, dir-meta or commit) and returns its digest and whether it was
// newly stored; tombstones go through PutTombstone instead. These object kinds are byte-identical to their
// MarshalCanonical() output regardless of repository mode: only
// file-content gets archive-mode framing.
func (s *ObjectStore) PutMetadata(kind hashid.Kind, data []byte) (hashid.Hash, bool, error) {
	digest := hashid.Sum(data)
	wasNew, err := s.putRaw(kind, digest, data, 0o644)
	return digest, wasNew, err
}

// PutCommitMeta writes a detached commit-meta object. Unlike every other
// kind it is stored at the digest of the commit it annotates, not the hash
// of its own bytes (see canon.CommitMetaRecord).
func (s *ObjectStore) PutCommitMeta(commitDigest hashid.Hash, data []byte) (bool, error) {
	return s.putRaw(hashid.KindCommitMeta, commitDigest, data, 0o644)
}

// PutTombstone writes a tombstone-commit object under the digest of the
// commit it marks as deleted, so a later write_commit producing the same
// digest (resurrection) can look it up with a plain Has/Delete by that
// digest (§4.3 "if a tombstone exists for the resulting digest, remove
// it"). Like commit-meta, this is addressed by an externally supplied
// digest rather than the hash of its own bytes.
func (s *ObjectStore) PutTombstone(commitDigest hashid.Hash, data []byte) (bool, error) {
	return s.putRaw(hashid.KindTombstoneCommit, commitDigest, data, 0o644)
}

// ReplaceCommitMeta unconditionally overwrites the detached commit-meta
// object for commitDigest, used by the signing engine when appending a
// signature to a dict that may already exist (PutCommitMeta's Has-check
// would otherwise make a second signature a no-op, since commit-meta is
// keyed by the commit's digest rather than its own content hash).
func (s *ObjectStore) ReplaceCommitMeta(commitDigest hashid.Hash, data []byte) error {
	staged, err := os.CreateTemp(s.TmpDir(), "stage-*")
	if err != nil {
		return coreerr.Wrap(coreerr.Io, err, "objstore: create staged temp file")
	}
	defer os.Remove(staged.Name())

	if _, err := staged.Write(data); err != nil {
		staged.Close()
		return coreerr.Wrap(coreerr.Io, err, "objstore: write staged object")
	}
	if err := staged.Chmod(0o644); err != nil {
		staged.Close()
		return coreerr.Wrap(coreerr.Io, err, "objstore: chmod staged object")
	}
	if err := staged.Close(); err != nil {
		return coreerr.Wrap(coreerr.Io, err, "objstore: close staged object")
	}

	dst, err := s.loosePath(hashid.KindCommitMeta, commitDigest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o777); err != nil {
		return coreerr.Wrap(coreerr.Io, err, "objstore: create loose object directory")
	}
	if err := os.Rename(staged.Name(), dst); err != nil {
		return coreerr.Wrap(coreerr.Io, err, "objstore: replace commit-meta %s", dst)
	}
	return nil
}

func (s *ObjectStore) putRaw(kind hashid.Kind, digest hashid.Hash, data []byte, perm os.FileMode) (bool, error) {
	if s.Has(kind, digest) {
		return false, nil
	}
	staged, err := os.CreateTemp(s.TmpDir(), "stage-*")
	if err != nil {
		return false, coreerr.Wrap(coreerr.Io, err, "objstore: create staged temp file")
	}
	defer os.Remove(staged.Name())

	if _, err := staged.Write(data); err != nil {
		staged.Close()
		return false, coreerr.Wrap(coreerr.Io, err, "objstore: write staged object")
	}
	if err := staged.Chmod(perm); err != nil {
		staged.Close()
		return false, coreerr.Wrap(coreerr.Io, err, "objstore: chmod staged object")
	}
	if err := staged.Close(); err != nil {
		return false, coreerr.Wrap(coreerr.Io, err, "objstore: close staged object")
	}
	return s.linkIntoPlace(staged.Name(), kind, digest)
}

// linkIntoPlace links (or, on platforms/paths where hard links are not
// applicable, renames) a staged file into its loose path. AlreadyExists is
// tolerated: the same content is already stored, per §4.1.
func (s *ObjectStore) linkIntoPlace(stagedPath string, kind hashid.Kind, digest hashid.Hash) (bool, error) {
	dst, err := s.loosePath(kind, digest)
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o777); err != nil {
		return false, coreerr.Wrap(coreerr.Io, err, "objstore: create loose object directory")
	}
	if err := os.Link(stagedPath, dst); err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		// Hard link across devices, or the platform doesn't support one
		// here (e.g. a real symlink's staged path): fall back to rename.
		if err := os.Rename(stagedPath, dst); err != nil {
			if os.IsExist(err) {
				return false, nil
			}
			return false, coreerr.Wrap(coreerr.Io, err, "objstore: link %s into place", dst)
		}
	}
	return true, nil
}
