package objstore

import (
	"io"

	"github.com/objectrepo/corestore/internal/hashid"
)

// ChecksumReader tees bytes read through it into a running SHA-256 digest,
// the same shape as ostree's ostree-checksum-input-stream.c: a digest
// accumulates in one pass as the caller streams an object's content,
// without a second read-back.
type ChecksumReader struct {
	r io.Reader
	d *hashid.Digester
	n int64
}

// NewChecksumReader wraps r.
func NewChecksumReader(r io.Reader) *ChecksumReader {
	return &ChecksumReader{r: r, d: hashid.Hasher()}
}

// Read implements io.Reader.
func (c *ChecksumReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.d.Write(p[:n])
		c.n += int64(n)
	}
	return n, err
}

// Sum returns the digest accumulated so far.
func (c *ChecksumReader) Sum() hashid.Hash { return c.d.Sum() }

// BytesRead returns the number of bytes streamed through Read so far.
func (c *ChecksumReader) BytesRead() int64 { return c.n }
