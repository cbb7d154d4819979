package objstore

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/coreerr"
	"github.com/objectrepo/corestore/internal/hashid"
)

func openStore(t *testing.T, mode Mode) *ObjectStore {
	t.Helper()
	s, err := Open(t.TempDir(), mode, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestWriteRegfileRoundTripArchive(t *testing.T) {
	s := openStore(t, ModeArchive)
	payload := "default 0.0.0.0\nloopback 127.0.0.0\nlink-local 169.254.0.0\n"

	digest, wasNew, err := s.WriteRegfile(Ownership{UID: 0, GID: 0}, 0o644, nil, strings.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("WriteRegfile: %v", err)
	}
	if !wasNew {
		t.Fatal("expected wasNew=true on first write")
	}
	if !s.Has(hashid.KindFileContent, digest) {
		t.Fatal("Has() = false after WriteRegfile")
	}

	stream, err := s.OpenRead(hashid.KindFileContent, digest)
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer stream.Reader.Close()
	got, err := io.ReadAll(stream.Reader)
	if err != nil {
		t.Fatalf("read content: %v", err)
	}
	if string(got) != payload {
		t.Errorf("content = %q, want %q", got, payload)
	}
	if stream.Meta == nil {
		t.Fatal("expected archive-mode Meta to be populated")
	}
	if stream.Meta.Mode != 0o644 {
		t.Errorf("Meta.Mode = %o, want %o", stream.Meta.Mode, 0o644)
	}
}

func TestWriteRegfileRoundTripBare(t *testing.T) {
	s := openStore(t, ModeBare)
	payload := "raw bytes, no compression"

	digest, _, err := s.WriteRegfile(Ownership{}, 0o644, nil, strings.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("WriteRegfile: %v", err)
	}

	stream, err := s.OpenRead(hashid.KindFileContent, digest)
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer stream.Reader.Close()
	got, err := io.ReadAll(stream.Reader)
	if err != nil {
		t.Fatalf("read content: %v", err)
	}
	if string(got) != payload {
		t.Errorf("content = %q, want %q", got, payload)
	}
	if stream.Meta != nil {
		t.Error("bare mode should not populate Meta (ownership lives in real fs attrs)")
	}
}

func TestWriteRegfileSameContentSameDigest(t *testing.T) {
	s := openStore(t, ModeArchive)
	payload := "identical bytes"

	d1, _, err := s.WriteRegfile(Ownership{UID: 1000, GID: 1000}, 0o644, nil, strings.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("WriteRegfile (1): %v", err)
	}
	d2, wasNew, err := s.WriteRegfile(Ownership{UID: 1000, GID: 1000}, 0o644, nil, strings.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("WriteRegfile (2): %v", err)
	}
	if d1 != d2 {
		t.Fatalf("identical inputs produced different digests: %s vs %s", d1, d2)
	}
	if wasNew {
		t.Error("second identical write should report wasNew=false (R3)")
	}
}

func TestWriteRegfileDifferentXattrDifferentDigest(t *testing.T) {
	s := openStore(t, ModeArchive)
	payload := "default 0.0.0.0\nloopback 127.0.0.0\nlink-local 169.254.0.0\n"

	plain, _, err := s.WriteRegfile(Ownership{}, 0o644, nil, strings.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("WriteRegfile (plain): %v", err)
	}
	withXattr, _, err := s.WriteRegfile(Ownership{}, 0o644, []canon.XAttr{
		{Name: "security.selinux", Value: []byte("system_u:object_r:etc_t:s0")},
	}, strings.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("WriteRegfile (xattr): %v", err)
	}
	if plain == withXattr {
		t.Fatal("adding an xattr should change the object's digest")
	}
}

func TestDigestIsModeIndependent(t *testing.T) {
	payload := "mode independent content"
	own := Ownership{UID: 33, GID: 33}

	archive := openStore(t, ModeArchive)
	bare := openStore(t, ModeBare)

	dArchive, _, err := archive.WriteRegfile(own, 0o644, nil, strings.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("WriteRegfile (archive): %v", err)
	}
	dBare, _, err := bare.WriteRegfile(own, 0o644, nil, strings.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("WriteRegfile (bare): %v", err)
	}
	if dArchive != dBare {
		t.Fatalf("digest differs across storage modes: archive=%s bare=%s", dArchive, dBare)
	}
}

func TestWriteSymlinkArchiveStoresAsRegfile(t *testing.T) {
	s := openStore(t, ModeArchive)
	digest, _, err := s.WriteSymlink(Ownership{}, []canon.XAttr{
		{Name: "security.selinux", Value: []byte("system_u:object_r:bin_t:s0")},
	}, "bash")
	if err != nil {
		t.Fatalf("WriteSymlink: %v", err)
	}
	stream, err := s.OpenRead(hashid.KindFileContent, digest)
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer stream.Reader.Close()
	got, err := io.ReadAll(stream.Reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "bash\x00" {
		t.Errorf("symlink content = %q, want %q", got, "bash\x00")
	}
}

func TestWriteSymlinkBareCreatesRealSymlink(t *testing.T) {
	s := openStore(t, ModeBare)
	digest, _, err := s.WriteSymlink(Ownership{}, nil, "bash")
	if err != nil {
		t.Fatalf("WriteSymlink: %v", err)
	}
	p, err := s.loosePath(hashid.KindFileContent, digest)
	if err != nil {
		t.Fatalf("loosePath: %v", err)
	}
	target, err := os.Readlink(p)
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != "bash" {
		t.Errorf("symlink target = %q, want %q", target, "bash")
	}
}

func TestBareUserOnlyRejectsSetuid(t *testing.T) {
	s := openStore(t, ModeBareUserOnly)
	_, _, err := s.WriteRegfile(Ownership{}, 0o4755, nil, strings.NewReader("x"), 1)
	if !coreerr.Is(err, coreerr.PolicyDenied) {
		t.Fatalf("expected PolicyDenied, got %v", err)
	}
}

func TestHasFailsForMissingObject(t *testing.T) {
	s := openStore(t, ModeArchive)
	if s.Has(hashid.KindFileContent, hashid.Sum([]byte("nope"))) {
		t.Fatal("Has() = true for an object never written")
	}
}

func TestParentRepoCascade(t *testing.T) {
	parent := openStore(t, ModeArchive)
	digest, _, err := parent.WriteRegfile(Ownership{}, 0o644, nil, strings.NewReader("from parent"), 11)
	if err != nil {
		t.Fatalf("WriteRegfile on parent: %v", err)
	}

	child, err := Open(t.TempDir(), ModeArchive, parent)
	if err != nil {
		t.Fatalf("Open child: %v", err)
	}
	if !child.Has(hashid.KindFileContent, digest) {
		t.Fatal("child.Has() should cascade to parent")
	}
	stream, err := child.OpenRead(hashid.KindFileContent, digest)
	if err != nil {
		t.Fatalf("child.OpenRead should cascade to parent: %v", err)
	}
	stream.Reader.Close()
}

func TestPutMetadataIsSelfAddressed(t *testing.T) {
	s := openStore(t, ModeBare)
	rec := canon.DirTreeRecord{Files: []canon.FileEntry{{Name: "a", Digest: hashid.Sum([]byte("a"))}}}
	data := rec.MarshalCanonical()

	digest, wasNew, err := s.PutMetadata(hashid.KindDirTree, data)
	if err != nil {
		t.Fatalf("PutMetadata: %v", err)
	}
	if !wasNew {
		t.Fatal("expected wasNew=true")
	}
	if want := hashid.Sum(data); digest != want {
		t.Fatalf("digest = %s, want %s", digest, want)
	}

	_, wasNew2, err := s.PutMetadata(hashid.KindDirTree, data)
	if err != nil {
		t.Fatalf("PutMetadata (again): %v", err)
	}
	if wasNew2 {
		t.Fatal("expected wasNew=false on repeat PutMetadata (R3)")
	}
}

func TestPutCommitMetaKeyedByCommitDigest(t *testing.T) {
	s := openStore(t, ModeBare)
	commitDigest := hashid.Sum([]byte("pretend-commit-bytes"))
	meta := canon.CommitMetaRecord{Metadata: map[string]canon.Variant{"k": canon.VString("v")}}

	wasNew, err := s.PutCommitMeta(commitDigest, meta.MarshalCanonical())
	if err != nil {
		t.Fatalf("PutCommitMeta: %v", err)
	}
	if !wasNew {
		t.Fatal("expected wasNew=true")
	}
	if !s.Has(hashid.KindCommitMeta, commitDigest) {
		t.Fatal("commit-meta should be addressed by the commit's own digest")
	}
}

func TestEnumerateFindsWrittenObjects(t *testing.T) {
	s := openStore(t, ModeArchive)
	digest, _, err := s.WriteRegfile(Ownership{}, 0o644, nil, strings.NewReader("enumerate me"), 12)
	if err != nil {
		t.Fatalf("WriteRegfile: %v", err)
	}

	var found []ObjectRef
	if err := s.Enumerate(nil, func(ref ObjectRef) error {
		found = append(found, ref)
		return nil
	}); err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("Enumerate found %d objects, want 1", len(found))
	}
	if found[0].Digest != digest || found[0].Kind != hashid.KindFileContent || found[0].StorageKind != "loose" {
		t.Errorf("Enumerate result = %+v, want digest=%s kind=file-content storage=loose", found[0], digest)
	}
}

func TestEnumerateSkipsMalformedFilenames(t *testing.T) {
	s := openStore(t, ModeArchive)
	shard := filepath.Join(s.Root(), "objects", "ab")
	if err := os.MkdirAll(shard, 0o777); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(shard, "not-a-valid-object-name"), []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := s.Enumerate(nil, func(ObjectRef) error {
		count++
		return nil
	}); err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if count != 0 {
		t.Fatalf("Enumerate yielded %d objects for a malformed-only shard, want 0", count)
	}
}

func TestChecksumReaderAccumulates(t *testing.T) {
	data := []byte("stream me through a digest")
	cr := NewChecksumReader(strings.NewReader(string(data)))
	got, err := io.ReadAll(cr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("ChecksumReader altered the stream")
	}
	if want := hashid.Sum(data); cr.Sum() != want {
		t.Fatalf("Sum() = %s, want %s", cr.Sum(), want)
	}
	if cr.BytesRead() != int64(len(data)) {
		t.Fatalf("BytesRead() = %d, want %d", cr.BytesRead(), len(data))
	}
}
