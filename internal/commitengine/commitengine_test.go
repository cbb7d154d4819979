package commitengine

import (
	"bytes"
	"io"
	"io/fs"
	"testing"
	"time"

	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/coreerr"
	"github.com/objectrepo/corestore/internal/hashid"
	"github.com/objectrepo/corestore/internal/objstore"
	"github.com/objectrepo/corestore/internal/treemodel"
)

// memFileInfo is a minimal fs.FileInfo for the fake in-memory source below;
// it deliberately returns nil from Sys() so realOwnership/DevIno report
// "unavailable", exercising the code paths a synthetic test tree hits.
type memFileInfo struct {
	name  string
	size  int64
	mode  fs.FileMode
	isDir bool
}

func (fi memFileInfo) Name() string       { return fi.name }
func (fi memFileInfo) Size() int64        { return fi.size }
func (fi memFileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi memFileInfo) ModTime() time.Time { return time.Time{} }
func (fi memFileInfo) IsDir() bool        { return fi.isDir }
func (fi memFileInfo) Sys() interface{}   { return nil }

type memDirEntry struct{ info memFileInfo }

func (e memDirEntry) Name() string              { return e.info.name }
func (e memDirEntry) IsDir() bool                { return e.info.isDir }
func (e memDirEntry) Type() fs.FileMode          { return e.info.mode.Type() }
func (e memDirEntry) Info() (fs.FileInfo, error) { return e.info, nil }

// memNode is either a file (content set) or a directory (children set).
type memNode struct {
	content  []byte
	children map[string]*memNode
	target   string // non-empty for symlinks
}

// memSource is a tiny in-memory DirSource fixture, standing in for a real
// filesystem the way a fake transport stands in for a real network call.
type memSource struct {
	root *memNode
}

func newMemSource() *memSource {
	return &memSource{root: &memNode{children: map[string]*memNode{}}}
}

func (s *memSource) addFile(path string, content string) {
	s.ensureParent(path).children[base(path)] = &memNode{content: []byte(content)}
}

func (s *memSource) addSymlink(path, target string) {
	s.ensureParent(path).children[base(path)] = &memNode{target: target}
}

func (s *memSource) addDir(path string) {
	s.ensureParent(path).children[base(path)] = &memNode{children: map[string]*memNode{}}
}

func (s *memSource) ensureParent(path string) *memNode {
	n := s.root
	for _, seg := range splitPath(parentOf(path)) {
		if seg == "" {
			continue
		}
		child, ok := n.children[seg]
		if !ok {
			child = &memNode{children: map[string]*memNode{}}
			n.children[seg] = child
		}
		n = child
	}
	return n
}

func (s *memSource) lookup(path string) (*memNode, bool) {
	if path == "." || path == "" {
		return s.root, true
	}
	n := s.root
	for _, seg := range splitPath(path) {
		if seg == "" {
			continue
		}
		child, ok := n.children[seg]
		if !ok {
			return nil, false
		}
		n = child
	}
	return n, true
}

func (s *memSource) ReadDir(path string) ([]fs.DirEntry, error) {
	n, ok := s.lookup(path)
	if !ok {
		return nil, coreerr.New(coreerr.NotFound, "memSource: %s not found", path)
	}
	var out []fs.DirEntry
	for name, child := range n.children {
		out = append(out, memDirEntry{info: infoOf(name, child)})
	}
	return out, nil
}

func (s *memSource) Lstat(path string) (fs.FileInfo, error) {
	if path == "." {
		return infoOf(".", s.root), nil
	}
	n, ok := s.lookup(path)
	if !ok {
		return nil, coreerr.New(coreerr.NotFound, "memSource: %s not found", path)
	}
	return infoOf(base(path), n), nil
}

func (s *memSource) Open(path string) (io.ReadCloser, error) {
	n, ok := s.lookup(path)
	if !ok {
		return nil, coreerr.New(coreerr.NotFound, "memSource: %s not found", path)
	}
	return io.NopCloser(bytes.NewReader(n.content)), nil
}

func (s *memSource) Readlink(path string) (string, error) {
	n, ok := s.lookup(path)
	if !ok {
		return "", coreerr.New(coreerr.NotFound, "memSource: %s not found", path)
	}
	return n.target, nil
}

func (s *memSource) Xattrs(path string) ([]canon.XAttr, error) { return nil, nil }

func (s *memSource) DevIno(path string, info fs.FileInfo) (DevIno, bool) { return DevIno{}, false }

func infoOf(name string, n *memNode) memFileInfo {
	switch {
	case n.target != "":
		return memFileInfo{name: name, mode: fs.ModeSymlink | 0o777}
	case n.children != nil:
		return memFileInfo{name: name, isDir: true, mode: fs.ModeDir | 0o755}
	default:
		return memFileInfo{name: name, size: int64(len(n.content)), mode: 0o644}
	}
}

func base(path string) string {
	segs := splitPath(path)
	if len(segs) == 0 {
		return path
	}
	return segs[len(segs)-1]
}

func parentOf(path string) string {
	segs := splitPath(path)
	if len(segs) <= 1 {
		return "."
	}
	return joinPath(segs[:len(segs)-1])
}

func splitPath(p string) []string {
	var out []string
	cur := ""
	for _, c := range p {
		if c == '/' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(c)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func joinPath(segs []string) string {
	out := ""
	for i, s := range segs {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}

func newStore(t *testing.T) *objstore.ObjectStore {
	t.Helper()
	s, err := objstore.Open(t.TempDir(), objstore.ModeArchive, nil)
	if err != nil {
		t.Fatalf("objstore.Open: %v", err)
	}
	return s
}

func TestWriteDirectoryToTreeAndCommit(t *testing.T) {
	src := newMemSource()
	src.addFile("etc/hostname", "myhost\n")
	src.addFile("usr/bin/sh", "#!/bin/sh\n")
	src.addSymlink("bin", "usr/bin")

	store := newStore(t)
	engine := New(store, nil)

	tree := treemodel.New()
	sizes, err := engine.WriteDirectoryToTree(src, tree, nil)
	if err != nil {
		t.Fatalf("WriteDirectoryToTree: %v", err)
	}
	if len(sizes) != 0 {
		t.Fatalf("expected no size entries without GenerateSizes, got %d", len(sizes))
	}

	contentsDigest, metaDigest, err := engine.WriteTree(tree)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	if contentsDigest.IsZero() || metaDigest.IsZero() {
		t.Fatal("WriteTree returned a zero digest")
	}

	commitDigest, err := engine.WriteCommit(CommitOptions{
		Parent:         hashid.Zero,
		Subject:        "initial import",
		RootTreeDigest: contentsDigest,
		RootMetaDigest: metaDigest,
		Timestamp:      0,
	})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	if !store.Has(hashid.KindCommit, commitDigest) {
		t.Fatal("commit object not found after WriteCommit")
	}

	res := tree.Lookup([]string{"etc", "hostname"})
	if res.Kind != treemodel.ResultFile {
		t.Fatalf("Lookup(etc/hostname) = %+v, want a file entry", res)
	}
}

func TestWriteCommitRejectsMissingParent(t *testing.T) {
	store := newStore(t)
	engine := New(store, nil)
	bogusParent := hashid.Sum([]byte("never written"))

	_, err := engine.WriteCommit(CommitOptions{Parent: bogusParent, Subject: "x"})
	if !coreerr.Is(err, coreerr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestWriteCommitIsIdempotent(t *testing.T) {
	store := newStore(t)
	engine := New(store, nil)
	opts := CommitOptions{Subject: "same inputs", Timestamp: 1700000000}

	d1, err := engine.WriteCommit(opts)
	if err != nil {
		t.Fatalf("WriteCommit (1): %v", err)
	}
	d2, err := engine.WriteCommit(opts)
	if err != nil {
		t.Fatalf("WriteCommit (2): %v", err)
	}
	if d1 != d2 {
		t.Fatalf("identical commit inputs produced different digests: %s vs %s", d1, d2)
	}
}

func TestWriteCommitZeroTimestampIsLegal(t *testing.T) {
	store := newStore(t)
	engine := New(store, nil)
	digest, err := engine.WriteCommit(CommitOptions{Subject: "b3", Timestamp: 0})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	if digest.IsZero() {
		t.Fatal("commit digest should not be zero even with a zero timestamp")
	}
}

func TestWriteCommitRemovesTombstone(t *testing.T) {
	store := newStore(t)
	engine := New(store, nil)
	opts := CommitOptions{Subject: "resurrected", Timestamp: 42}

	digest, err := engine.WriteCommit(opts)
	if err != nil {
		t.Fatalf("WriteCommit (first): %v", err)
	}
	if err := store.Delete(hashid.KindCommit, digest); err != nil {
		t.Fatalf("delete commit to simulate prune: %v", err)
	}

	ts := canon.TombstoneRecord{DeletedCommit: digest, Timestamp: 1}
	if _, err := store.PutTombstone(digest, ts.MarshalCanonical()); err != nil {
		t.Fatalf("PutTombstone: %v", err)
	}
	if !store.Has(hashid.KindTombstoneCommit, digest) {
		t.Fatal("tombstone not found after PutTombstone")
	}

	if _, err := engine.WriteCommit(opts); err != nil {
		t.Fatalf("WriteCommit (resurrect): %v", err)
	}
	if store.Has(hashid.KindTombstoneCommit, digest) {
		t.Fatal("WriteCommit should remove a matching tombstone on resurrection")
	}
}

func TestCanonicalPermissionsZeroesOwnershipAndMode(t *testing.T) {
	src := newMemSource()
	src.addFile("a", "content")

	store := newStore(t)
	engine := New(store, nil)
	tree := treemodel.New()

	_, err := engine.WriteDirectoryToTree(src, tree, &Modifier{CanonicalPermissions: true})
	if err != nil {
		t.Fatalf("WriteDirectoryToTree: %v", err)
	}

	digestWithCanon, _, err := engine.WriteTree(tree)
	if err != nil {
		t.Fatalf("WriteTree (canonical): %v", err)
	}

	tree2 := treemodel.New()
	store2 := newStore(t)
	engine2 := New(store2, nil)
	if _, err := engine2.WriteDirectoryToTree(src, tree2, nil); err != nil {
		t.Fatalf("WriteDirectoryToTree (plain): %v", err)
	}
	digestPlain, _, err := engine2.WriteTree(tree2)
	if err != nil {
		t.Fatalf("WriteTree (plain): %v", err)
	}

	if digestWithCanon == digestPlain {
		t.Fatal("canonical-permissions and plain modes should not collapse mode 0644 -> 0755 identically in this fixture")
	}
}

func TestFilterSkipsEntries(t *testing.T) {
	src := newMemSource()
	src.addFile("keep.txt", "a")
	src.addFile("skip.txt", "b")

	store := newStore(t)
	engine := New(store, nil)
	tree := treemodel.New()

	modifier := &Modifier{Filter: func(path string, info fs.FileInfo) bool {
		return path != "skip.txt"
	}}
	if _, err := engine.WriteDirectoryToTree(src, tree, modifier); err != nil {
		t.Fatalf("WriteDirectoryToTree: %v", err)
	}

	if res := tree.Lookup([]string{"keep.txt"}); res.Kind != treemodel.ResultFile {
		t.Fatal("expected keep.txt to survive the filter")
	}
	if res := tree.Lookup([]string{"skip.txt"}); res.Kind != treemodel.ResultNotFound {
		t.Fatal("expected skip.txt to be dropped by the filter")
	}
}

func TestGenerateSizesFoldsIndexIntoMetadata(t *testing.T) {
	src := newMemSource()
	src.addFile("a.txt", "hello world")

	store := newStore(t)
	engine := New(store, nil)
	tree := treemodel.New()

	sizes, err := engine.WriteDirectoryToTree(src, tree, &Modifier{GenerateSizes: true})
	if err != nil {
		t.Fatalf("WriteDirectoryToTree: %v", err)
	}
	if len(sizes) != 1 {
		t.Fatalf("expected 1 size entry, got %d", len(sizes))
	}

	contentsDigest, metaDigest, err := engine.WriteTree(tree)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}

	commitDigest, err := engine.WriteCommit(CommitOptions{
		Subject:        "with sizes",
		RootTreeDigest: contentsDigest,
		RootMetaDigest: metaDigest,
		Sizes:          sizes,
		GenerateSizes:  true,
	})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}

	stream, err := store.OpenRead(hashid.KindCommit, commitDigest)
	if err != nil {
		t.Fatalf("OpenRead commit: %v", err)
	}
	defer stream.Reader.Close()
	data, err := io.ReadAll(stream.Reader)
	if err != nil {
		t.Fatalf("read commit: %v", err)
	}

	var rec canon.CommitRecord
	if err := rec.UnmarshalCanonical(data); err != nil {
		t.Fatalf("UnmarshalCanonical: %v", err)
	}
	if _, ok := rec.Metadata["ostree.sizes"]; !ok {
		t.Fatal("expected ostree.sizes key in commit metadata")
	}
}

func TestFreeSpacePolicyRejectsPercentAndSizeTogether(t *testing.T) {
	_, err := NewFreeSpacePolicy(10, 1024)
	if !coreerr.Is(err, coreerr.InvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestFreeSpacePolicyCheckAtStartOnRealFilesystem(t *testing.T) {
	policy, err := NewFreeSpacePolicy(0, 0)
	if err != nil {
		t.Fatalf("NewFreeSpacePolicy: %v", err)
	}
	if err := policy.CheckAtStart(t.TempDir()); err != nil {
		t.Fatalf("CheckAtStart: %v", err)
	}
	if err := policy.Reserve(1); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
}
