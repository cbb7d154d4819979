package sign

import "github.com/objectrepo/corestore/internal/coreerr"

func init() {
	Register("gpg", func() Algorithm { return &gpgAlgorithm{} })
}

// GPGBackend is the delegated external GPG implementation §4.6 requires
// ("key bytes: delegated to GPG backend"): a real implementation would
// shell out to gpgme or an equivalent keyring, mirroring
// ot_gpgme_new_ctx/ot_gpgme_data_input in original_source's
// libotutil/ot-gpg-utils.c. No backend ships with the core; callers inject
// one (or leave it nil, in which case the algorithm reports
// SignatureMissing rather than silently accepting or rejecting).
type GPGBackend interface {
	Sign(payload, secretKeyRef []byte) ([]byte, error)
	Verify(payload, signature, publicKeyRef []byte) (bool, error)
}

// gpgAlgorithm is the registry-visible boundary; Backend is nil until a
// caller assigns one via SetBackend.
type gpgAlgorithm struct {
	Backend GPGBackend
}

// SetBackend installs the delegated GPG implementation. Call once at
// process start if GPG verification is configured.
func (g *gpgAlgorithm) SetBackend(b GPGBackend) { g.Backend = b }

func (g *gpgAlgorithm) Name() string        { return "gpg" }
func (g *gpgAlgorithm) MetadataKey() string { return "ostree.gpgsigs" }

func (g *gpgAlgorithm) Sign(payload, secretKey []byte) ([]byte, error) {
	if g.Backend == nil {
		return nil, coreerr.New(coreerr.SignatureMissing, "sign: no GPG backend configured")
	}
	return g.Backend.Sign(payload, secretKey)
}

func (g *gpgAlgorithm) Verify(payload, signature, publicKey []byte) (bool, error) {
	if g.Backend == nil {
		return false, coreerr.New(coreerr.SignatureMissing, "sign: no GPG backend configured")
	}
	return g.Backend.Verify(payload, signature, publicKey)
}
