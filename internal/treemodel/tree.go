// Package treemodel implements the in-memory mutable-tree overlay of a
// directory being committed: MutableTree aggregates file and subdirectory
// entries before being frozen into dir-tree/dir-meta objects.
package treemodel

import (
	"sort"

	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/coreerr"
	"github.com/objectrepo/corestore/internal/hashid"
)

// MutableTree is an in-memory overlay of a directory being committed. It
// lives only for the duration of a commit and is discarded once serialised.
type MutableTree struct {
	metadataDigest hashid.Hash
	hasMetadata    bool
	contentsDigest hashid.Hash
	frozen         bool

	files   map[string]hashid.Hash
	subdirs map[string]*MutableTree
}

// New returns an empty MutableTree with no metadata digest set yet.
func New() *MutableTree {
	return &MutableTree{
		files:   make(map[string]hashid.Hash),
		subdirs: make(map[string]*MutableTree),
	}
}

// EnsureDir returns the existing subtree named name, or inserts and
// returns a new empty one. Fails if a file entry by that name exists.
func (t *MutableTree) EnsureDir(name string) (*MutableTree, error) {
	if t.frozen {
		return nil, coreerr.New(coreerr.InvalidArgument, "treemodel: tree is frozen, cannot add %q", name)
	}
	if _, isFile := t.files[name]; isFile {
		return nil, coreerr.New(coreerr.InvalidArgument, "treemodel: %q is already a file entry", name)
	}
	if sub, ok := t.subdirs[name]; ok {
		return sub, nil
	}
	sub := New()
	t.subdirs[name] = sub
	return sub, nil
}

// ReplaceFile inserts or overwrites a file entry. Fails if a dir entry by
// that name exists.
func (t *MutableTree) ReplaceFile(name string, digest hashid.Hash) error {
	if t.frozen {
		return coreerr.New(coreerr.InvalidArgument, "treemodel: tree is frozen, cannot add %q", name)
	}
	if _, isDir := t.subdirs[name]; isDir {
		return coreerr.New(coreerr.InvalidArgument, "treemodel: %q is already a directory entry", name)
	}
	t.files[name] = digest
	return nil
}

// SetMetadataChecksum records the already-written dir-meta object's
// digest for this tree.
func (t *MutableTree) SetMetadataChecksum(digest hashid.Hash) {
	t.metadataDigest = digest
	t.hasMetadata = true
}

// HasMetadata reports whether SetMetadataChecksum has been called.
func (t *MutableTree) HasMetadata() bool { return t.hasMetadata }

// ResultKind tags what Lookup found.
type ResultKind int

const (
	// ResultNotFound means the path does not exist in the tree.
	ResultNotFound ResultKind = iota
	// ResultDir means the path names a subdirectory.
	ResultDir
	// ResultFile means the path names a file entry.
	ResultFile
)

// LookupResult is the tagged result of MutableTree.Lookup.
type LookupResult struct {
	Kind       ResultKind
	Tree       *MutableTree
	FileDigest hashid.Hash
}

// Lookup resolves a path, given as its components (e.g. {"etc", "passwd"}),
// within the tree.
func (t *MutableTree) Lookup(path []string) LookupResult {
	if len(path) == 0 {
		return LookupResult{Kind: ResultDir, Tree: t}
	}
	head, rest := path[0], path[1:]
	if len(rest) == 0 {
		if d, ok := t.files[head]; ok {
			return LookupResult{Kind: ResultFile, FileDigest: d}
		}
		if sub, ok := t.subdirs[head]; ok {
			return LookupResult{Kind: ResultDir, Tree: sub}
		}
		return LookupResult{Kind: ResultNotFound}
	}
	sub, ok := t.subdirs[head]
	if !ok {
		return LookupResult{Kind: ResultNotFound}
	}
	return sub.Lookup(rest)
}

// DirTreeWriter is the subset of objstore.ObjectStore Serialize needs: the
// ability to store a canonical-encoded dir-tree object and get back its
// digest. Declared as an interface here so treemodel does not import
// objstore, keeping the dependency direction leaves-to-root.
type DirTreeWriter interface {
	PutMetadata(kind hashid.Kind, data []byte) (hashid.Hash, bool, error)
}

// Serialize recursively serialises any unserialised children, produces the
// canonical dir-tree record for t, writes it via store, and returns its
// digest. A tree with no metadata digest set cannot be serialised.
func (t *MutableTree) Serialize(store DirTreeWriter) (hashid.Hash, error) {
	if !t.hasMetadata {
		return hashid.Hash{}, coreerr.New(coreerr.InvalidArgument, "treemodel: tree has no metadata checksum set")
	}
	if t.frozen {
		return t.contentsDigest, nil
	}

	names := make([]string, 0, len(t.subdirs))
	for name := range t.subdirs {
		names = append(names, name)
	}
	sort.Strings(names)

	dirs := make([]canon.DirEntry, 0, len(names))
	for _, name := range names {
		sub := t.subdirs[name]
		treeDigest, err := sub.Serialize(store)
		if err != nil {
			return hashid.Hash{}, err
		}
		dirs = append(dirs, canon.DirEntry{
			Name:       name,
			TreeDigest: treeDigest,
			MetaDigest: sub.metadataDigest,
		})
	}

	fileNames := make([]string, 0, len(t.files))
	for name := range t.files {
		fileNames = append(fileNames, name)
	}
	sort.Strings(fileNames)

	files := make([]canon.FileEntry, 0, len(fileNames))
	for _, name := range fileNames {
		files = append(files, canon.FileEntry{Name: name, Digest: t.files[name]})
	}

	rec := canon.DirTreeRecord{Files: files, Dirs: dirs}
	digest, _, err := store.PutMetadata(hashid.KindDirTree, rec.MarshalCanonical())
	if err != nil {
		return hashid.Hash{}, err
	}
	t.contentsDigest = digest
	t.frozen = true
	return digest, nil
}

// MetadataDigest returns the tree's dir-meta digest, if set.
func (t *MutableTree) MetadataDigest() hashid.Hash { return t.metadataDigest }

// ContentsDigest returns the tree's dir-tree digest, valid only after
// Serialize has been called (or ReadTree populated it).
func (t *MutableTree) ContentsDigest() hashid.Hash { return t.contentsDigest }

// ReadTree parses a canonical dir-tree record back into a detached,
// already-frozen MutableTree, used by callers (P3/R1: write then read back
// yields the same (name, kind, digest) entries) that need to inspect a
// committed tree without recursively fetching its children.
func ReadTree(data []byte) (*MutableTree, error) {
	var rec canon.DirTreeRecord
	if err := rec.UnmarshalCanonical(data); err != nil {
		return nil, err
	}
	t := New()
	for _, f := range rec.Files {
		t.files[f.Name] = f.Digest
	}
	for _, d := range rec.Dirs {
		sub := New()
		sub.contentsDigest = d.TreeDigest
		sub.metadataDigest = d.MetaDigest
		sub.hasMetadata = true
		sub.frozen = true
		t.subdirs[d.Name] = sub
	}
	t.frozen = true
	return t, nil
}
