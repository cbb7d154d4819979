package sign

import "bytes"

func init() {
	Register("dummy", func() Algorithm { return dummyAlgorithm{} })
}

// dummyAlgorithm is the test/development variant from §4.6: arbitrary
// UTF-8 key bytes, and a "signature" that is just the key itself. It never
// hashes or encrypts anything; only used where tests need a signing
// algorithm with no external key-format dependency.
type dummyAlgorithm struct{}

func (dummyAlgorithm) Name() string        { return "dummy" }
func (dummyAlgorithm) MetadataKey() string { return "ostree.sign.dummy" }

func (dummyAlgorithm) Sign(payload, secretKey []byte) ([]byte, error) {
	return append([]byte(nil), secretKey...), nil
}

func (dummyAlgorithm) Verify(payload, signature, publicKey []byte) (bool, error) {
	return bytes.Equal(signature, publicKey), nil
}
