package commitengine

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/hashid"
)

// SizeEntry is one (digest, archived-size, unpacked-size) triple collected
// while GenerateSizes is set, destined for the commit's ostree.sizes index.
type SizeEntry struct {
	Digest       hashid.Hash
	ArchivedSize int64
	UnpackedSize int64
}

// sizeIndexKey is the commit metadata key the folded size index is stored
// under.
const sizeIndexKey = "ostree.sizes"

// encodeSizeIndex sorts entries by digest and packs them into a single
// length-prefixed blob, matching the rest of this repository's
// fixed-width/big-endian canonical encoding style.
func encodeSizeIndex(entries []SizeEntry) canon.Variant {
	sorted := make([]SizeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Digest[:], sorted[j].Digest[:]) < 0
	})

	var buf bytes.Buffer
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(sorted)))
	buf.Write(countBuf[:])
	for _, e := range sorted {
		buf.Write(e.Digest[:])
		var sizeBuf [16]byte
		binary.BigEndian.PutUint64(sizeBuf[0:8], uint64(e.ArchivedSize))
		binary.BigEndian.PutUint64(sizeBuf[8:16], uint64(e.UnpackedSize))
		buf.Write(sizeBuf[:])
	}
	return canon.VBytes(buf.Bytes())
}
