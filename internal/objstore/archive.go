package objstore

import (
	"compress/zlib"
	"encoding/binary"
	"io"
	"os"

	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/coreerr"
)

// maxArchiveHeaderLen bounds a single archive frame's header, the same
// defensive-parse guard idea as canon's maxFieldLen, grounded directly on
// the teacher's readCompressedData maxDecompressedSize cap.
const maxArchiveHeaderLen = 16 << 20

// writeArchiveFrame writes the archive-mode on-disk form of a file-content
// object: a big-endian length-prefixed canonical DirMetaRecord header
// followed by zlib-compressed content. Grounded on the teacher's
// readLooseObjectRaw/readCompressedData "peel header, zlib-inflate rest"
// shape, generalized from an ASCII "type size\0" header to this kind's
// binary framing.
func writeArchiveFrame(w io.Writer, meta canon.DirMetaRecord, content io.Reader) error {
	header := meta.MarshalCanonical()
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(header)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return coreerr.Wrap(coreerr.Io, err, "objstore: write archive frame header length")
	}
	if _, err := w.Write(header); err != nil {
		return coreerr.Wrap(coreerr.Io, err, "objstore: write archive frame header")
	}
	zw := zlib.NewWriter(w)
	if _, err := io.Copy(zw, content); err != nil {
		zw.Close()
		return coreerr.Wrap(coreerr.Io, err, "objstore: write archive frame content")
	}
	return zw.Close()
}

func openArchiveFrame(f *os.File) (*Stream, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
		f.Close()
		return nil, coreerr.Wrap(coreerr.MalformedObject, err, "objstore: read archive frame header length")
	}
	headerLen := binary.BigEndian.Uint32(lenBuf[:])
	if headerLen > maxArchiveHeaderLen {
		f.Close()
		return nil, coreerr.New(coreerr.MalformedObject, "objstore: archive frame header length %d exceeds %d", headerLen, maxArchiveHeaderLen)
	}
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		return nil, coreerr.Wrap(coreerr.MalformedObject, err, "objstore: read archive frame header")
	}
	var meta canon.DirMetaRecord
	if err := meta.UnmarshalCanonical(header); err != nil {
		f.Close()
		return nil, err
	}
	zr, err := zlib.NewReader(f)
	if err != nil {
		f.Close()
		return nil, coreerr.Wrap(coreerr.CorruptedObject, err, "objstore: open zlib reader")
	}
	return &Stream{Reader: &archiveReadCloser{zr: zr, f: f}, Meta: &meta}, nil
}

// archiveReadCloser closes both the zlib reader and the underlying file,
// reporting the zlib close error (content truncation/corruption) first.
type archiveReadCloser struct {
	zr io.ReadCloser
	f  *os.File
}

func (a *archiveReadCloser) Read(p []byte) (int, error) { return a.zr.Read(p) }

func (a *archiveReadCloser) Close() error {
	zerr := a.zr.Close()
	ferr := a.f.Close()
	if zerr != nil {
		return zerr
	}
	return ferr
}
