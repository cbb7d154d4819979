package sign

import (
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/coreerr"
	"github.com/objectrepo/corestore/internal/hashid"
)

func TestEd25519SignAndVerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	engine := NewEngine()
	if _, err := engine.Use("ed25519"); err != nil {
		t.Fatalf("Use: %v", err)
	}
	payload := []byte("commit bytes")
	metadata := map[string]canon.Variant{}
	if err := engine.Sign("ed25519", payload, priv, metadata); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	result, err := engine.Verify(payload, metadata, []VerifierConfig{
		{Algorithm: "ed25519", Keys: KeySet{Trusted: [][]byte{pub}}},
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Valid["ed25519"] || !result.AnyValid() || !result.AllValid() {
		t.Fatalf("expected valid signature, got %+v", result)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	otherPub, _, _ := ed25519.GenerateKey(nil)
	engine := NewEngine()
	if _, err := engine.Use("ed25519"); err != nil {
		t.Fatalf("Use: %v", err)
	}
	metadata := map[string]canon.Variant{}
	payload := []byte("commit bytes")
	if err := engine.Sign("ed25519", payload, priv, metadata); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	result, err := engine.Verify(payload, metadata, []VerifierConfig{
		{Algorithm: "ed25519", Keys: KeySet{Trusted: [][]byte{otherPub}}},
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Valid["ed25519"] {
		t.Fatal("expected verification to fail under the wrong public key")
	}
}

func TestVerifyMissingSignatureIsInvalidNotError(t *testing.T) {
	engine := NewEngine()
	if _, err := engine.Use("ed25519"); err != nil {
		t.Fatalf("Use: %v", err)
	}
	pub, _, _ := ed25519.GenerateKey(nil)
	result, err := engine.Verify([]byte("x"), map[string]canon.Variant{}, []VerifierConfig{
		{Algorithm: "ed25519", Keys: KeySet{Trusted: [][]byte{pub}}},
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Valid["ed25519"] {
		t.Fatal("expected no signature present to verify as invalid")
	}
}

func TestSignAppendsToExistingSignatureArray(t *testing.T) {
	_, priv1, _ := ed25519.GenerateKey(nil)
	pub2, priv2, _ := ed25519.GenerateKey(nil)
	engine := NewEngine()
	if _, err := engine.Use("ed25519"); err != nil {
		t.Fatalf("Use: %v", err)
	}
	payload := []byte("commit bytes")
	metadata := map[string]canon.Variant{}
	if err := engine.Sign("ed25519", payload, priv1, metadata); err != nil {
		t.Fatalf("Sign 1: %v", err)
	}
	if err := engine.Sign("ed25519", payload, priv2, metadata); err != nil {
		t.Fatalf("Sign 2: %v", err)
	}
	arr, ok := metadata["ostree.sign.ed25519"].AsArray()
	if !ok || len(arr) != 2 {
		t.Fatalf("expected 2 signatures, got %+v", metadata)
	}
	result, err := engine.Verify(payload, metadata, []VerifierConfig{
		{Algorithm: "ed25519", Keys: KeySet{Trusted: [][]byte{pub2}}},
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Valid["ed25519"] {
		t.Fatal("expected second signer's key to validate one of the two signatures")
	}
}

func TestRevokedKeyShortCircuitsToInvalid(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	engine := NewEngine()
	if _, err := engine.Use("ed25519"); err != nil {
		t.Fatalf("Use: %v", err)
	}
	payload := []byte("commit bytes")
	metadata := map[string]canon.Variant{}
	if err := engine.Sign("ed25519", payload, priv, metadata); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	result, err := engine.Verify(payload, metadata, []VerifierConfig{
		{Algorithm: "ed25519", Keys: KeySet{Trusted: [][]byte{pub}, Revoked: [][]byte{pub}}},
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Valid["ed25519"] {
		t.Fatal("expected a revoked key match to override a trusted match")
	}
}

func TestDummyAlgorithmSignAndVerify(t *testing.T) {
	engine := NewEngine()
	if _, err := engine.Use("dummy"); err != nil {
		t.Fatalf("Use: %v", err)
	}
	key := []byte("shared-secret-key")
	metadata := map[string]canon.Variant{}
	if err := engine.Sign("dummy", []byte("payload"), key, metadata); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	result, err := engine.Verify([]byte("payload"), metadata, []VerifierConfig{
		{Algorithm: "dummy", Keys: KeySet{Trusted: [][]byte{key}}},
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Valid["dummy"] {
		t.Fatal("expected dummy algorithm to verify its own key as the signature")
	}
}

func TestGPGAlgorithmWithoutBackendReportsSignatureMissing(t *testing.T) {
	engine := NewEngine()
	alg, err := engine.Use("gpg")
	if err != nil {
		t.Fatalf("Use: %v", err)
	}
	_ = alg
	metadata := map[string]canon.Variant{}
	err = engine.Sign("gpg", []byte("payload"), []byte("key-ref"), metadata)
	if !coreerr.Is(err, coreerr.SignatureMissing) {
		t.Fatalf("expected SignatureMissing, got %v", err)
	}
}

type fakeGPGBackend struct {
	validKey []byte
}

func (b *fakeGPGBackend) Sign(payload, secretKeyRef []byte) ([]byte, error) {
	return append([]byte("sig:"), payload...), nil
}

func (b *fakeGPGBackend) Verify(payload, signature, publicKeyRef []byte) (bool, error) {
	return string(signature) == "sig:"+string(payload), nil
}

func TestGPGAlgorithmWithInjectedBackend(t *testing.T) {
	engine := NewEngine()
	alg, err := engine.Use("gpg")
	if err != nil {
		t.Fatalf("Use: %v", err)
	}
	gpgAlg, ok := alg.(*gpgAlgorithm)
	if !ok {
		t.Fatalf("expected *gpgAlgorithm, got %T", alg)
	}
	gpgAlg.SetBackend(&fakeGPGBackend{})

	metadata := map[string]canon.Variant{}
	if err := engine.Sign("gpg", []byte("payload"), []byte("key-ref"), metadata); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	result, err := engine.Verify([]byte("payload"), metadata, []VerifierConfig{
		{Algorithm: "gpg", Keys: KeySet{Trusted: [][]byte{[]byte("any-key-ref")}}},
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Valid["gpg"] {
		t.Fatal("expected injected GPG backend signature to verify")
	}
}

func TestLoadKeyFileAndKeyDir(t *testing.T) {
	dir := t.TempDir()
	pub1, _, _ := ed25519.GenerateKey(nil)
	pub2, _, _ := ed25519.GenerateKey(nil)

	filePath := filepath.Join(dir, "keys.txt")
	content := base64.StdEncoding.EncodeToString(pub1) + "\n# comment\n" + base64.StdEncoding.EncodeToString(pub2) + "\n"
	if err := os.WriteFile(filePath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	keys, err := LoadKeyFile(filePath)
	if err != nil {
		t.Fatalf("LoadKeyFile: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}

	dropinDir := filepath.Join(dir, "trusted.ed25519.d")
	if err := os.MkdirAll(dropinDir, 0o777); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dropinDir, "a.conf"), []byte(base64.StdEncoding.EncodeToString(pub1)+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	dirKeys, err := LoadKeyDir(dropinDir)
	if err != nil {
		t.Fatalf("LoadKeyDir: %v", err)
	}
	if len(dirKeys) != 1 {
		t.Fatalf("expected 1 key from drop-in dir, got %d", len(dirKeys))
	}
}

func TestLoadKeyDirToleratesMissingDirectory(t *testing.T) {
	keys, err := LoadKeyDir(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("LoadKeyDir: %v", err)
	}
	if keys != nil {
		t.Fatalf("expected nil keys for missing directory, got %v", keys)
	}
}

func TestPullVerificationCache(t *testing.T) {
	engine := NewEngine()
	digest := hashid.Sum([]byte("commit body"))
	if engine.WasVerified(digest) {
		t.Fatal("expected digest to start unverified")
	}
	engine.MarkVerified(digest)
	if !engine.WasVerified(digest) {
		t.Fatal("expected digest to be remembered as verified")
	}
	engine.ResetPullCache()
	if engine.WasVerified(digest) {
		t.Fatal("expected ResetPullCache to clear the memo")
	}
}
