// Package commitengine ingests a live directory into an object store and
// produces commit objects from it, enforcing the free-space policy active
// during a transaction.
package commitengine

import (
	"io/fs"
	"path"
	"sort"

	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/coreerr"
	"github.com/objectrepo/corestore/internal/hashid"
	"github.com/objectrepo/corestore/internal/objstore"
	"github.com/objectrepo/corestore/internal/treemodel"
)

// maxMetadataSize bounds a single metadata object (dir-tree, dir-meta,
// commit, commit-meta): the real-world OSTREE_MAX_METADATA_SIZE is 10 MiB,
// reproduced here as the boundary B1 exercises.
const maxMetadataSize = 10 << 20

// Ownership is a POSIX (uid, gid) pair, mirroring objstore.Ownership at the
// commitengine API boundary.
type Ownership = objstore.Ownership

// StatsSink receives per-object write outcomes as a walk proceeds, so a
// caller can tally §4.4's transaction counters without this package
// depending on internal/txn. Declared here rather than in txn for the same
// reason txn.Publisher is declared in txn: the dependency runs leaves-to-
// root, and commitengine is the leaf here.
type StatsSink interface {
	AddMetadataObject(written bool)
	AddContentObject(size int64, written bool)
}

// CommitEngine writes live directory content into an ObjectStore and
// assembles commit objects from the result.
type CommitEngine struct {
	store  *objstore.ObjectStore
	policy *FreeSpacePolicy

	// Sink, if set, is notified of every metadata/content object this
	// engine writes (dedup hits included). nil means no tallying.
	Sink StatsSink
}

// New returns a CommitEngine writing through store. policy may be nil, in
// which case no free-space accounting is performed.
func New(store *objstore.ObjectStore, policy *FreeSpacePolicy) *CommitEngine {
	return &CommitEngine{store: store, policy: policy}
}

func (e *CommitEngine) recordMetadata(written bool) {
	if e.Sink != nil {
		e.Sink.AddMetadataObject(written)
	}
}

func (e *CommitEngine) recordContent(size int64, written bool) {
	if e.Sink != nil {
		e.Sink.AddContentObject(size, written)
	}
}

// WriteDirectoryToTree recursively walks source starting at ".", writing
// every file and directory it encounters (subject to modifier) and
// populating tree to mirror the walked structure.
func (e *CommitEngine) WriteDirectoryToTree(source DirSource, tree *treemodel.MutableTree, modifier *Modifier) ([]SizeEntry, error) {
	var sizes []SizeEntry
	if err := e.walkDir(source, ".", tree, modifier, &sizes); err != nil {
		return nil, err
	}
	return sizes, nil
}

func (e *CommitEngine) walkDir(source DirSource, dirPath string, tree *treemodel.MutableTree, modifier *Modifier, sizes *[]SizeEntry) error {
	info, err := source.Lstat(dirPath)
	if err != nil {
		return err
	}
	metaDigest, err := e.writeDirMeta(source, dirPath, info, modifier)
	if err != nil {
		return err
	}
	tree.SetMetadataChecksum(metaDigest)

	entries, err := source.ReadDir(dirPath)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	byName := make(map[string]fs.DirEntry, len(entries))
	for _, ent := range entries {
		names = append(names, ent.Name())
		byName[ent.Name()] = ent
	}
	sort.Strings(names)

	for _, name := range names {
		ent := byName[name]
		childPath := path.Join(dirPath, name)
		childInfo, err := source.Lstat(childPath)
		if err != nil {
			return err
		}
		if !modifier.filterAllows(childPath, childInfo) {
			continue
		}

		switch {
		case ent.IsDir():
			sub, err := tree.EnsureDir(name)
			if err != nil {
				return err
			}
			if err := e.walkDir(source, childPath, sub, modifier, sizes); err != nil {
				return err
			}
		case childInfo.Mode()&fs.ModeSymlink != 0:
			digest, err := e.writeSymlinkEntry(source, childPath, childInfo, modifier)
			if err != nil {
				return err
			}
			if err := tree.ReplaceFile(name, digest); err != nil {
				return err
			}
		default:
			digest, archived, unpacked, err := e.writeRegularFileEntry(source, childPath, childInfo, modifier)
			if err != nil {
				return err
			}
			if err := tree.ReplaceFile(name, digest); err != nil {
				return err
			}
			if modifier != nil && modifier.GenerateSizes {
				*sizes = append(*sizes, SizeEntry{Digest: digest, ArchivedSize: archived, UnpackedSize: unpacked})
			}
		}
	}
	return nil
}

func (e *CommitEngine) writeDirMeta(source DirSource, dirPath string, info fs.FileInfo, modifier *Modifier) (hashid.Hash, error) {
	own, mode, xattrs, err := e.resolveAttrs(source, dirPath, info, modifier)
	if err != nil {
		return hashid.Hash{}, err
	}
	rec := canon.DirMetaRecord{UID: own.UID, GID: own.GID, Mode: mode, Xattrs: xattrs}
	data := rec.MarshalCanonical()
	if len(data) > maxMetadataSize {
		return hashid.Hash{}, coreerr.New(coreerr.InvalidArgument, "commitengine: dir-meta for %s exceeds maximum metadata size", dirPath)
	}
	if err := e.reserve(int64(len(data))); err != nil {
		return hashid.Hash{}, err
	}
	digest, written, err := e.store.PutMetadata(hashid.KindDirMeta, data)
	if err != nil {
		return hashid.Hash{}, err
	}
	e.recordMetadata(written)
	return digest, nil
}

func (e *CommitEngine) writeSymlinkEntry(source DirSource, childPath string, info fs.FileInfo, modifier *Modifier) (hashid.Hash, error) {
	own, _, xattrs, err := e.resolveAttrs(source, childPath, info, modifier)
	if err != nil {
		return hashid.Hash{}, err
	}
	target, err := source.Readlink(childPath)
	if err != nil {
		return hashid.Hash{}, err
	}
	if err := e.reserve(int64(len(target) + 1)); err != nil {
		return hashid.Hash{}, err
	}
	digest, written, err := e.store.WriteSymlink(own, xattrs, target)
	if err != nil {
		return hashid.Hash{}, err
	}
	e.recordContent(int64(len(target)+1), written)
	return digest, nil
}

func (e *CommitEngine) writeRegularFileEntry(source DirSource, childPath string, info fs.FileInfo, modifier *Modifier) (digest hashid.Hash, archivedSize, unpackedSize int64, err error) {
	if modifier != nil && modifier.DevinoCache != nil {
		if devino, ok := source.DevIno(childPath, info); ok {
			if cached, hit := modifier.DevinoCache[devino]; hit {
				e.recordContent(info.Size(), false)
				return cached, info.Size(), info.Size(), nil
			}
		}
	}

	own, mode, xattrs, err := e.resolveAttrs(source, childPath, info, modifier)
	if err != nil {
		return hashid.Hash{}, 0, 0, err
	}
	if err := e.reserve(info.Size()); err != nil {
		return hashid.Hash{}, 0, 0, err
	}

	r, err := source.Open(childPath)
	if err != nil {
		return hashid.Hash{}, 0, 0, err
	}
	defer r.Close()

	var written bool
	digest, written, err = e.store.WriteRegfile(own, mode, xattrs, r, info.Size())
	if err != nil {
		return hashid.Hash{}, 0, 0, err
	}
	e.recordContent(info.Size(), written)

	if modifier != nil && modifier.DevinoCache != nil {
		if devino, ok := source.DevIno(childPath, info); ok {
			modifier.DevinoCache[devino] = digest
		}
	}
	return digest, info.Size(), info.Size(), nil
}

// resolveAttrs computes the (ownership, mode, xattrs) triple a path is
// committed with, applying canonical-permissions, skip-xattrs,
// xattr-callback, and sepolicy/error-on-unlabeled per Modifier.
func (e *CommitEngine) resolveAttrs(source DirSource, p string, info fs.FileInfo, modifier *Modifier) (Ownership, uint32, []canon.XAttr, error) {
	var own Ownership
	mode := uint32(info.Mode().Perm())
	if real, ok := realOwnership(info); ok {
		own = real
	}

	if modifier.canonicalPermissions() {
		// Mode here is a permission-bits-only field (the dir/file
		// distinction already lives in which object kind carries it), so
		// both IFREG|0755 and IFDIR|0755 collapse to the same 0755.
		own = Ownership{}
		mode = 0o755
	}

	var xattrs []canon.XAttr
	if !modifier.skipXattrs() {
		fetched, err := source.Xattrs(p)
		if err != nil {
			return Ownership{}, 0, nil, err
		}
		xattrs = fetched
	}
	xattrs = modifier.overrideXattrs(p, info, xattrs)

	if modifier != nil && modifier.Sepolicy != nil {
		label, ok, err := modifier.Sepolicy.Label(p, info)
		if err != nil {
			return Ownership{}, 0, nil, err
		}
		if ok {
			xattrs = append(xattrs, canon.XAttr{Name: "security.selinux", Value: []byte(label)})
		} else if modifier.ErrorOnUnlabeled {
			return Ownership{}, 0, nil, coreerr.New(coreerr.PolicyDenied, "commitengine: no SELinux label for %s", p)
		}
	}

	return own, mode, xattrs, nil
}

func (e *CommitEngine) reserve(size int64) error {
	if e.policy == nil {
		return nil
	}
	return e.policy.Reserve(size)
}

// statsTreeWriter wraps an ObjectStore so dir-tree writes made during
// treemodel.MutableTree.Serialize report through the engine's Sink, the same
// as every other object kind the engine writes directly.
type statsTreeWriter struct {
	store treemodel.DirTreeWriter
	e     *CommitEngine
}

func (w statsTreeWriter) PutMetadata(kind hashid.Kind, data []byte) (hashid.Hash, bool, error) {
	digest, written, err := w.store.PutMetadata(kind, data)
	if err != nil {
		return digest, written, err
	}
	w.e.recordMetadata(written)
	return digest, written, nil
}

// WriteTree serialises tree (and any unserialised children) and returns its
// (contents_digest, metadata_digest) pair.
func (e *CommitEngine) WriteTree(tree *treemodel.MutableTree) (contentsDigest, metadataDigest hashid.Hash, err error) {
	if !tree.HasMetadata() {
		return hashid.Hash{}, hashid.Hash{}, coreerr.New(coreerr.InvalidArgument, "commitengine: root tree has no metadata checksum set")
	}
	contentsDigest, err = tree.Serialize(statsTreeWriter{store: e.store, e: e})
	if err != nil {
		return hashid.Hash{}, hashid.Hash{}, err
	}
	return contentsDigest, tree.MetadataDigest(), nil
}

// CommitOptions gathers write_commit's arguments.
type CommitOptions struct {
	Parent         hashid.Hash // hashid.Zero for an initial commit
	Subject        string
	Body           string
	Metadata       map[string]canon.Variant
	RootTreeDigest hashid.Hash
	RootMetaDigest hashid.Hash
	Timestamp      int64
	RelatedRefs    []string
	Sizes          []SizeEntry
	GenerateSizes  bool
}

// WriteCommit assembles and stores a commit object, returning its digest.
// Identical opts and a deterministic Timestamp yield the same digest.
func (e *CommitEngine) WriteCommit(opts CommitOptions) (hashid.Hash, error) {
	if !opts.Parent.IsZero() && !e.store.Has(hashid.KindCommit, opts.Parent) {
		return hashid.Hash{}, coreerr.New(coreerr.NotFound, "commitengine: parent commit %s not found", opts.Parent.Short())
	}

	metadata := opts.Metadata
	if metadata == nil {
		metadata = make(map[string]canon.Variant)
	} else {
		copied := make(map[string]canon.Variant, len(metadata))
		for k, v := range metadata {
			copied[k] = v
		}
		metadata = copied
	}
	if opts.GenerateSizes {
		metadata[sizeIndexKey] = encodeSizeIndex(opts.Sizes)
	}

	rec := canon.CommitRecord{
		Metadata:       metadata,
		Parent:         opts.Parent,
		RelatedRefs:    opts.RelatedRefs,
		Subject:        opts.Subject,
		Body:           opts.Body,
		Timestamp:      opts.Timestamp,
		RootTreeDigest: opts.RootTreeDigest,
		RootMetaDigest: opts.RootMetaDigest,
	}
	data := rec.MarshalCanonical()
	if len(data) > maxMetadataSize {
		return hashid.Hash{}, coreerr.New(coreerr.InvalidArgument, "commitengine: commit object exceeds maximum metadata size")
	}

	digest, written, err := e.store.PutMetadata(hashid.KindCommit, data)
	if err != nil {
		return hashid.Hash{}, err
	}
	e.recordMetadata(written)
	if e.store.Has(hashid.KindTombstoneCommit, digest) {
		if err := e.store.Delete(hashid.KindTombstoneCommit, digest); err != nil {
			return hashid.Hash{}, err
		}
	}
	return digest, nil
}
