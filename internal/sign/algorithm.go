// Package sign implements pluggable payload signing and verification for
// commit and summary objects (§4.6): ed25519 and dummy algorithms built in,
// GPG delegated to an injected external backend, with multi-verifier
// aggregation and key material loaded from inline config, key files, or
// trusted/revoked drop-in directories.
package sign

import (
	"sync"

	"github.com/objectrepo/corestore/internal/coreerr"
)

// Algorithm is one pluggable signing scheme: ed25519, dummy, or gpg.
type Algorithm interface {
	// Name is the algorithm identifier used in config keys like
	// "verification-<algo>-key".
	Name() string
	// MetadataKey is the detached-metadata dictionary key signatures of
	// this algorithm are stored under (e.g. "ostree.sign.ed25519").
	MetadataKey() string
	// Sign produces a signature blob over payload using secretKey.
	Sign(payload, secretKey []byte) ([]byte, error)
	// Verify reports whether signature validates payload under publicKey.
	Verify(payload, signature, publicKey []byte) (bool, error)
}

var (
	registryMu sync.Mutex
	registry   = make(map[string]func() Algorithm)
)

// Register adds an algorithm constructor to the global registry. Intended
// to be called from each algorithm file's init().
func Register(name string, ctor func() Algorithm) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = ctor
}

// Lookup returns a fresh Algorithm instance for name.
func Lookup(name string) (Algorithm, error) {
	registryMu.Lock()
	ctor, ok := registry[name]
	registryMu.Unlock()
	if !ok {
		return nil, coreerr.New(coreerr.InvalidArgument, "sign: unknown algorithm %q", name)
	}
	return ctor(), nil
}

// Names returns every registered algorithm name.
func Names() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}
