package sign

import (
	"crypto/ed25519"

	"github.com/objectrepo/corestore/internal/coreerr"
)

func init() {
	Register("ed25519", func() Algorithm { return ed25519Algorithm{} })
}

// ed25519Algorithm implements §4.6's ed25519 variant: 64-byte secret keys,
// 32-byte public keys, signatures stored under ostree.sign.ed25519 as an
// array of byte-array signatures.
type ed25519Algorithm struct{}

func (ed25519Algorithm) Name() string        { return "ed25519" }
func (ed25519Algorithm) MetadataKey() string { return "ostree.sign.ed25519" }

func (ed25519Algorithm) Sign(payload, secretKey []byte) ([]byte, error) {
	if len(secretKey) != ed25519.PrivateKeySize {
		return nil, coreerr.New(coreerr.InvalidArgument, "sign: ed25519 secret key must be %d bytes, got %d", ed25519.PrivateKeySize, len(secretKey))
	}
	sig := ed25519.Sign(ed25519.PrivateKey(secretKey), payload)
	return sig, nil
}

func (ed25519Algorithm) Verify(payload, signature, publicKey []byte) (bool, error) {
	if len(publicKey) != ed25519.PublicKeySize {
		return false, coreerr.New(coreerr.InvalidArgument, "sign: ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(publicKey))
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), payload, signature), nil
}
