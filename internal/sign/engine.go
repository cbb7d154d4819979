package sign

import (
	"sync"

	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/coreerr"
	"github.com/objectrepo/corestore/internal/hashid"
)

// Engine aggregates multiple configured algorithms for signing and
// verifying commit or summary payloads (§4.6).
type Engine struct {
	mu   sync.Mutex
	algs map[string]Algorithm

	verifiedMu sync.Mutex
	verified   map[hashid.Hash]bool
}

// NewEngine returns an Engine with no algorithms configured yet.
func NewEngine() *Engine {
	return &Engine{algs: make(map[string]Algorithm), verified: make(map[hashid.Hash]bool)}
}

// Use instantiates and registers algorithm name for this engine, returning
// the instance so callers can type-assert it (e.g. to call
// (*gpgAlgorithm).SetBackend).
func (e *Engine) Use(name string) (Algorithm, error) {
	alg, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.algs[name] = alg
	e.mu.Unlock()
	return alg, nil
}

func (e *Engine) algorithm(name string) (Algorithm, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	alg, ok := e.algs[name]
	if !ok {
		return nil, coreerr.New(coreerr.InvalidArgument, "sign: algorithm %q not configured on this engine", name)
	}
	return alg, nil
}

// Sign signs payload with secretKey under algoName and merges the
// signature into metadata's array-append dictionary, preserving any
// signatures of the same or other kinds already present.
func (e *Engine) Sign(algoName string, payload, secretKey []byte, metadata map[string]canon.Variant) error {
	alg, err := e.algorithm(algoName)
	if err != nil {
		return err
	}
	sig, err := alg.Sign(payload, secretKey)
	if err != nil {
		return err
	}
	key := alg.MetadataKey()
	existing, _ := metadata[key].AsArray()
	metadata[key] = canon.VArray(append(existing, canon.VBytes(sig)))
	return nil
}

// VerifierConfig is one configured algorithm's key material for a single
// verify call.
type VerifierConfig struct {
	Algorithm string
	Keys      KeySet
}

// VerifyResult reports, per algorithm, whether at least one signature
// validated under a trusted (and non-revoked) key.
type VerifyResult struct {
	Valid map[string]bool
}

// AnyValid reports whether any configured algorithm produced a valid
// signature.
func (r VerifyResult) AnyValid() bool {
	for _, ok := range r.Valid {
		if ok {
			return true
		}
	}
	return false
}

// AllValid reports whether every configured algorithm produced a valid
// signature (§4.6 step 4: "if both GPG and sign-API verifiers are
// configured, both must produce at least one valid signature").
func (r VerifyResult) AllValid() bool {
	if len(r.Valid) == 0 {
		return false
	}
	for _, ok := range r.Valid {
		if !ok {
			return false
		}
	}
	return true
}

// Verify checks payload against metadata's detached signature arrays for
// every configured verifier, accepting an algorithm if any of its
// signatures validates under any of its trusted (non-revoked) keys. A
// revoked key that matches a signature short-circuits that algorithm to
// invalid regardless of any other trusted key match.
func (e *Engine) Verify(payload []byte, metadata map[string]canon.Variant, verifiers []VerifierConfig) (VerifyResult, error) {
	result := VerifyResult{Valid: make(map[string]bool, len(verifiers))}
	for _, vc := range verifiers {
		alg, err := e.algorithm(vc.Algorithm)
		if err != nil {
			return VerifyResult{}, err
		}
		sigsVariant, ok := metadata[alg.MetadataKey()]
		if !ok {
			result.Valid[vc.Algorithm] = false
			continue
		}
		sigs, ok := sigsVariant.AsArray()
		if !ok {
			result.Valid[vc.Algorithm] = false
			continue
		}
		result.Valid[vc.Algorithm] = e.verifyOne(alg, payload, sigs, vc.Keys)
	}
	return result, nil
}

func (e *Engine) verifyOne(alg Algorithm, payload []byte, sigs []canon.Variant, keys KeySet) bool {
	revoked := false
	valid := false
	for _, sigVariant := range sigs {
		sig, ok := sigVariant.AsBytes()
		if !ok {
			continue
		}
		for _, key := range keys.Revoked {
			if ok, _ := alg.Verify(payload, sig, key); ok {
				revoked = true
			}
		}
		for _, key := range keys.Trusted {
			if ok, _ := alg.Verify(payload, sig, key); ok {
				valid = true
			}
		}
	}
	if revoked {
		return false
	}
	return valid
}

// MarkVerified remembers that digest was already verified during the
// current pull (§4.6 step 5), so a commit fetched and referenced within
// the same pull is not re-verified.
func (e *Engine) MarkVerified(digest hashid.Hash) {
	e.verifiedMu.Lock()
	defer e.verifiedMu.Unlock()
	e.verified[digest] = true
}

// WasVerified reports whether digest was already verified during the
// current pull.
func (e *Engine) WasVerified(digest hashid.Hash) bool {
	e.verifiedMu.Lock()
	defer e.verifiedMu.Unlock()
	return e.verified[digest]
}

// ResetPullCache clears the per-pull verified-commit memo, called when
// starting a new pull.
func (e *Engine) ResetPullCache() {
	e.verifiedMu.Lock()
	defer e.verifiedMu.Unlock()
	e.verified = make(map[hashid.Hash]bool)
}
