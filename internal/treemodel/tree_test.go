package treemodel

import (
	"testing"

	"github.com/objectrepo/corestore/internal/hashid"
)

type fakeStore struct {
	objects map[hashid.Hash][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[hashid.Hash][]byte)}
}

func (f *fakeStore) PutMetadata(kind hashid.Kind, data []byte) (hashid.Hash, bool, error) {
	digest := hashid.Sum(data)
	if _, ok := f.objects[digest]; ok {
		return digest, false, nil
	}
	f.objects[digest] = data
	return digest, true, nil
}

func mustHash(t *testing.T, s string) hashid.Hash {
	t.Helper()
	return hashid.Sum([]byte(s))
}

func TestEnsureDirReplaceFileLookup(t *testing.T) {
	root := New()
	root.SetMetadataChecksum(mustHash(t, "root-meta"))

	etc, err := root.EnsureDir("etc")
	if err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	etc.SetMetadataChecksum(mustHash(t, "etc-meta"))

	digest := mustHash(t, "passwd contents")
	if err := etc.ReplaceFile("passwd", digest); err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}

	res := root.Lookup([]string{"etc", "passwd"})
	if res.Kind != ResultFile || res.FileDigest != digest {
		t.Fatalf("Lookup(etc/passwd) = %+v, want file with digest %s", res, digest)
	}

	res = root.Lookup([]string{"etc"})
	if res.Kind != ResultDir || res.Tree != etc {
		t.Fatalf("Lookup(etc) = %+v, want dir %v", res, etc)
	}

	res = root.Lookup([]string{"nope"})
	if res.Kind != ResultNotFound {
		t.Fatalf("Lookup(nope) = %+v, want not found", res)
	}
}

func TestEnsureDirIsIdempotent(t *testing.T) {
	root := New()
	a, err := root.EnsureDir("a")
	if err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	b, err := root.EnsureDir("a")
	if err != nil {
		t.Fatalf("EnsureDir (again): %v", err)
	}
	if a != b {
		t.Fatal("EnsureDir should return the same subtree on repeat calls")
	}
}

func TestReplaceFileRejectsNameCollisionWithDir(t *testing.T) {
	root := New()
	if _, err := root.EnsureDir("bin"); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if err := root.ReplaceFile("bin", mustHash(t, "x")); err == nil {
		t.Fatal("expected error replacing a directory entry with a file")
	}
}

func TestEnsureDirRejectsNameCollisionWithFile(t *testing.T) {
	root := New()
	if err := root.ReplaceFile("bin", mustHash(t, "x")); err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}
	if _, err := root.EnsureDir("bin"); err == nil {
		t.Fatal("expected error creating a directory over a file entry")
	}
}

func TestSerializeRequiresMetadataChecksum(t *testing.T) {
	root := New()
	store := newFakeStore()
	if _, err := root.Serialize(store); err == nil {
		t.Fatal("expected error serializing a tree with no metadata checksum")
	}
}

func TestSerializeIsDeterministicRegardlessOfInsertionOrder(t *testing.T) {
	store := newFakeStore()

	buildA := New()
	buildA.SetMetadataChecksum(mustHash(t, "m"))
	buildA.ReplaceFile("b", mustHash(t, "b-content"))
	buildA.ReplaceFile("a", mustHash(t, "a-content"))
	zDir, _ := buildA.EnsureDir("z")
	zDir.SetMetadataChecksum(mustHash(t, "z-meta"))
	yDir, _ := buildA.EnsureDir("y")
	yDir.SetMetadataChecksum(mustHash(t, "y-meta"))

	buildB := New()
	buildB.SetMetadataChecksum(mustHash(t, "m"))
	buildB.ReplaceFile("a", mustHash(t, "a-content"))
	buildB.ReplaceFile("b", mustHash(t, "b-content"))
	yDir2, _ := buildB.EnsureDir("y")
	yDir2.SetMetadataChecksum(mustHash(t, "y-meta"))
	zDir2, _ := buildB.EnsureDir("z")
	zDir2.SetMetadataChecksum(mustHash(t, "z-meta"))

	digestA, err := buildA.Serialize(store)
	if err != nil {
		t.Fatalf("Serialize A: %v", err)
	}
	digestB, err := buildB.Serialize(store)
	if err != nil {
		t.Fatalf("Serialize B: %v", err)
	}
	if digestA != digestB {
		t.Fatalf("insertion order changed the resulting digest: %s vs %s", digestA, digestB)
	}
}

func TestSerializeIsIdempotent(t *testing.T) {
	store := newFakeStore()
	root := New()
	root.SetMetadataChecksum(mustHash(t, "m"))
	root.ReplaceFile("f", mustHash(t, "f-content"))

	d1, err := root.Serialize(store)
	if err != nil {
		t.Fatalf("Serialize (1): %v", err)
	}
	d2, err := root.Serialize(store)
	if err != nil {
		t.Fatalf("Serialize (2): %v", err)
	}
	if d1 != d2 {
		t.Fatalf("repeat Serialize produced a different digest: %s vs %s", d1, d2)
	}
}

func TestFrozenTreeRejectsMutation(t *testing.T) {
	store := newFakeStore()
	root := New()
	root.SetMetadataChecksum(mustHash(t, "m"))
	if _, err := root.Serialize(store); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if err := root.ReplaceFile("late", mustHash(t, "x")); err == nil {
		t.Fatal("expected error mutating a frozen tree")
	}
	if _, err := root.EnsureDir("late"); err == nil {
		t.Fatal("expected error adding a subdir to a frozen tree")
	}
}

func TestReadTreeRoundTrip(t *testing.T) {
	store := newFakeStore()
	root := New()
	root.SetMetadataChecksum(mustHash(t, "root-meta"))
	root.ReplaceFile("hello.txt", mustHash(t, "hello"))
	sub, _ := root.EnsureDir("sub")
	sub.SetMetadataChecksum(mustHash(t, "sub-meta"))

	digest, err := root.Serialize(store)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	back, err := ReadTree(store.objects[digest])
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}

	res := back.Lookup([]string{"hello.txt"})
	if res.Kind != ResultFile || res.FileDigest != mustHash(t, "hello") {
		t.Fatalf("round-tripped tree lost file entry: %+v", res)
	}
	res = back.Lookup([]string{"sub"})
	if res.Kind != ResultDir || res.Tree.MetadataDigest() != mustHash(t, "sub-meta") {
		t.Fatalf("round-tripped tree lost dir entry: %+v", res)
	}
}
