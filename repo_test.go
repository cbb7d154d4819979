package corestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/objectrepo/corestore/internal/hashid"
	"github.com/objectrepo/corestore/internal/objstore"
	"github.com/objectrepo/corestore/internal/sign"
)

func writeTestTree(t *testing.T, seed string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello "+seed+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "nested.txt"), []byte("nested "+seed+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestInitThenOpen(t *testing.T) {
	root := t.TempDir()

	r, err := Init(root, objstore.ModeBareUserOnly, Options{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if r.Mode() != objstore.ModeBareUserOnly {
		t.Fatalf("expected ModeBareUserOnly, got %v", r.Mode())
	}

	if _, err := Init(root, objstore.ModeBareUserOnly, Options{}); err == nil {
		t.Fatal("expected second Init on same root to fail")
	}

	reopened, err := Open(root, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if reopened.Mode() != objstore.ModeBareUserOnly {
		t.Fatalf("expected ModeBareUserOnly after reopen, got %v", reopened.Mode())
	}
}

func TestCommitCreatesRefAndStats(t *testing.T) {
	root := t.TempDir()
	r, err := Init(root, objstore.ModeBareUserOnly, Options{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	srcDir := writeTestTree(t, "a")
	digest, stats, err := r.Commit(CommitOptions{
		SourceDir: srcDir,
		Branch:    "main",
		Subject:   "initial import",
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if digest.IsZero() {
		t.Fatal("expected a non-zero commit digest")
	}
	if stats.ContentObjectsWritten == 0 {
		t.Fatal("expected at least one content object written")
	}
	if stats.MetadataObjectsWritten == 0 {
		t.Fatal("expected at least one metadata object written")
	}

	resolved, err := r.ResolveRef("main")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if resolved != digest {
		t.Fatalf("expected main to resolve to %s, got %s", digest, resolved)
	}

	repoStats, err := r.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if repoStats.ObjectCount == 0 {
		t.Fatal("expected Stats to report a nonzero object count")
	}
	if repoStats.HeadDigest != digest.String() {
		t.Fatalf("expected HeadDigest %s, got %s", digest, repoStats.HeadDigest)
	}
}

func TestCommitChainsOntoParent(t *testing.T) {
	root := t.TempDir()
	r, err := Init(root, objstore.ModeBareUserOnly, Options{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	first, _, err := r.Commit(CommitOptions{SourceDir: writeTestTree(t, "a"), Branch: "main", Subject: "first"})
	if err != nil {
		t.Fatalf("first Commit: %v", err)
	}
	second, _, err := r.Commit(CommitOptions{SourceDir: writeTestTree(t, "b"), Branch: "main", Subject: "second"})
	if err != nil {
		t.Fatalf("second Commit: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct commit digests for two separate commits")
	}

	resolved, err := r.ResolveRef("main")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if resolved != second {
		t.Fatalf("expected main to resolve to the second commit, got %s", resolved)
	}
}

func TestSignAndVerifyCommitRoundTrip(t *testing.T) {
	root := t.TempDir()
	r, err := Init(root, objstore.ModeBareUserOnly, Options{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := r.Algorithm("dummy"); err != nil {
		t.Fatalf("Algorithm: %v", err)
	}

	digest, _, err := r.Commit(CommitOptions{SourceDir: writeTestTree(t, "a"), Branch: "main", Subject: "signed"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	secret := []byte("test-key-material")
	if err := r.SignCommit(digest, "dummy", secret); err != nil {
		t.Fatalf("SignCommit: %v", err)
	}

	verifiers := []sign.VerifierConfig{{Algorithm: "dummy", Keys: sign.KeySet{Trusted: [][]byte{secret}}}}
	result, err := r.VerifyCommit(digest, verifiers)
	if err != nil {
		t.Fatalf("VerifyCommit: %v", err)
	}
	if !result.AnyValid() {
		t.Fatal("expected the signature to verify under its own key")
	}

	wrongVerifiers := []sign.VerifierConfig{{Algorithm: "dummy", Keys: sign.KeySet{Trusted: [][]byte{[]byte("not-the-key")}}}}
	result, err = r.VerifyCommit(digest, wrongVerifiers)
	if err != nil {
		t.Fatalf("VerifyCommit (wrong key): %v", err)
	}
	if result.AnyValid() {
		t.Fatal("expected verification to fail under a mismatched key")
	}
}

func TestSignCommitTwiceAppendsBothSignatures(t *testing.T) {
	root := t.TempDir()
	r, err := Init(root, objstore.ModeBareUserOnly, Options{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	r.Algorithm("dummy")

	digest, _, err := r.Commit(CommitOptions{SourceDir: writeTestTree(t, "a"), Branch: "main", Subject: "double-signed"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	keyA := []byte("key-a")
	keyB := []byte("key-b")
	if err := r.SignCommit(digest, "dummy", keyA); err != nil {
		t.Fatalf("first SignCommit: %v", err)
	}
	if err := r.SignCommit(digest, "dummy", keyB); err != nil {
		t.Fatalf("second SignCommit: %v", err)
	}

	for _, key := range [][]byte{keyA, keyB} {
		verifiers := []sign.VerifierConfig{{Algorithm: "dummy", Keys: sign.KeySet{Trusted: [][]byte{key}}}}
		result, err := r.VerifyCommit(digest, verifiers)
		if err != nil {
			t.Fatalf("VerifyCommit: %v", err)
		}
		if !result.AnyValid() {
			t.Fatalf("expected signature under %s to still verify after a second Sign call", key)
		}
	}
}

func TestPruneRemovesUnreachableObjects(t *testing.T) {
	root := t.TempDir()
	r, err := Init(root, objstore.ModeBareUserOnly, Options{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if _, _, err := r.Commit(CommitOptions{SourceDir: writeTestTree(t, "main"), Branch: "main", Subject: "kept"}); err != nil {
		t.Fatalf("main Commit: %v", err)
	}
	orphan, _, err := r.Commit(CommitOptions{SourceDir: writeTestTree(t, "throwaway"), Branch: "throwaway", Subject: "orphaned"})
	if err != nil {
		t.Fatalf("throwaway Commit: %v", err)
	}
	if !r.store.Has(hashid.KindCommit, orphan) {
		t.Fatal("expected the throwaway commit to exist before deleting its ref")
	}

	statsBefore, err := r.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	// Drop the throwaway branch's ref entirely, orphaning everything it
	// alone referenced.
	if err := os.Remove(filepath.Join(root, "refs", "heads", "throwaway")); err != nil {
		t.Fatalf("remove ref: %v", err)
	}

	total, pruned, freed, err := r.Prune(PruneOptions{})
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned == 0 {
		t.Fatal("expected Prune to reclaim at least the orphaned commit's objects")
	}
	if freed == 0 {
		t.Fatal("expected Prune to report freed bytes for the orphaned file content")
	}
	if pruned > total {
		t.Fatalf("pruned (%d) should never exceed total (%d)", pruned, total)
	}

	if r.store.Has(hashid.KindCommit, orphan) {
		t.Fatal("expected the orphaned commit object to be deleted")
	}

	mainDigest, err := r.ResolveRef("main")
	if err != nil {
		t.Fatalf("ResolveRef(main) after prune: %v", err)
	}
	if !r.store.Has(hashid.KindCommit, mainDigest) {
		t.Fatal("expected main's commit to survive Prune")
	}

	statsAfter, err := r.Stats()
	if err != nil {
		t.Fatalf("Stats after prune: %v", err)
	}
	if statsAfter.ObjectCount >= statsBefore.ObjectCount {
		t.Fatalf("expected object count to drop after prune: before=%d after=%d", statsBefore.ObjectCount, statsAfter.ObjectCount)
	}
}

func TestPruneDryRunDeletesNothing(t *testing.T) {
	root := t.TempDir()
	r, err := Init(root, objstore.ModeBareUserOnly, Options{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	orphan, _, err := r.Commit(CommitOptions{SourceDir: writeTestTree(t, "dry-run"), Branch: "throwaway", Subject: "orphaned"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "refs", "heads", "throwaway")); err != nil {
		t.Fatalf("remove ref: %v", err)
	}

	total, pruned, _, err := r.Prune(PruneOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned == 0 || pruned > total {
		t.Fatalf("expected a nonzero, bounded pruned count in dry-run mode, got %d/%d", pruned, total)
	}
	if !r.store.Has(hashid.KindCommit, orphan) {
		t.Fatal("dry-run Prune must not actually delete objects")
	}
}

func TestFindReturnsNoErrorWithNoRemotes(t *testing.T) {
	root := t.TempDir()
	r, err := Init(root, objstore.ModeBareUserOnly, Options{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	results, err := r.Find(context.Background(), nil, FindOptions{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	_ = results
}
