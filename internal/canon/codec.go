// Package canon implements the canonical tagged structured-value record
// encoding used for every on-disk object body: fixed-width big-endian
// integers and length-prefixed byte/string fields, laid out so that
// byte-identical inputs always yield byte-identical outputs.
package canon

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/objectrepo/corestore/internal/coreerr"
	"github.com/objectrepo/corestore/internal/hashid"
)

// maxFieldLen bounds a single length-prefixed field during decode. Records
// never legitimately need a single string/bytes field anywhere near this;
// it exists only to keep a corrupted length prefix from driving a giant
// allocation.
const maxFieldLen = 256 << 20

func writeUint32(w *bytes.Buffer, n uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	w.Write(b[:])
}

func writeInt64(w *bytes.Buffer, n int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	w.Write(b[:])
}

func writeBytes(w *bytes.Buffer, b []byte) {
	writeUint32(w, uint32(len(b)))
	w.Write(b)
}

func writeString(w *bytes.Buffer, s string) {
	writeBytes(w, []byte(s))
}

func writeDigest(w *bytes.Buffer, h hashid.Hash) {
	w.Write(h.Bytes())
}

// reader is a cursor over a record's bytes, mirroring the teacher's
// binary.Read/io.ReadFull decode idiom from pack.go's index parsing.
type reader struct {
	r *bytes.Reader
}

func newReader(data []byte) *reader { return &reader{r: bytes.NewReader(data)} }

func (r *reader) byte() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, coreerr.Wrap(coreerr.MalformedObject, err, "canon: read tag byte")
	}
	return b, nil
}

func (r *reader) uint32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, coreerr.Wrap(coreerr.MalformedObject, err, "canon: read uint32")
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func (r *reader) int64() (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, coreerr.Wrap(coreerr.MalformedObject, err, "canon: read int64")
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}

func (r *reader) bytesField() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if n > maxFieldLen {
		return nil, coreerr.New(coreerr.MalformedObject, "canon: field length %d exceeds %d", n, maxFieldLen)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, coreerr.Wrap(coreerr.MalformedObject, err, "canon: read %d-byte field", n)
	}
	return b, nil
}

func (r *reader) stringField() (string, error) {
	b, err := r.bytesField()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) digest() (hashid.Hash, error) {
	b := make([]byte, hashid.Size)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return hashid.Hash{}, coreerr.Wrap(coreerr.MalformedObject, err, "canon: read digest")
	}
	return hashid.FromBytes(b)
}

func (r *reader) requireExhausted() error {
	if n := r.r.Len(); n != 0 {
		return coreerr.New(coreerr.MalformedObject, "canon: %d trailing bytes after record", n)
	}
	return nil
}

func malformed(format string, args ...interface{}) error {
	return coreerr.New(coreerr.MalformedObject, format, args...)
}
