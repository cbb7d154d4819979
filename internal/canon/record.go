package canon

import (
	"bytes"

	"github.com/objectrepo/corestore/internal/hashid"
)

// FileEntry is one (name, content-digest) pair in a dir-tree record.
type FileEntry struct {
	Name   string
	Digest hashid.Hash
}

// DirEntry is one (name, tree-digest, meta-digest) triple in a dir-tree
// record, naming a subdirectory.
type DirEntry struct {
	Name       string
	TreeDigest hashid.Hash
	MetaDigest hashid.Hash
}

// DirTreeRecord is the canonical body of a dir-tree object. Files and Dirs
// must already be sorted lexicographically by Name; this package encodes
// them in the order given rather than re-sorting, since sort order is part
// of the tree-builder's contract (see treemodel).
type DirTreeRecord struct {
	Files []FileEntry
	Dirs  []DirEntry
}

// MarshalCanonical encodes t into its canonical byte form.
func (t DirTreeRecord) MarshalCanonical() []byte {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(t.Files)))
	for _, f := range t.Files {
		writeString(&buf, f.Name)
		writeDigest(&buf, f.Digest)
	}
	writeUint32(&buf, uint32(len(t.Dirs)))
	for _, d := range t.Dirs {
		writeString(&buf, d.Name)
		writeDigest(&buf, d.TreeDigest)
		writeDigest(&buf, d.MetaDigest)
	}
	return buf.Bytes()
}

// UnmarshalCanonical decodes data into t, replacing its contents.
func (t *DirTreeRecord) UnmarshalCanonical(data []byte) error {
	r := newReader(data)
	nFiles, err := r.uint32()
	if err != nil {
		return err
	}
	files := make([]FileEntry, nFiles)
	for i := range files {
		if files[i].Name, err = r.stringField(); err != nil {
			return err
		}
		if files[i].Digest, err = r.digest(); err != nil {
			return err
		}
	}
	nDirs, err := r.uint32()
	if err != nil {
		return err
	}
	dirs := make([]DirEntry, nDirs)
	for i := range dirs {
		if dirs[i].Name, err = r.stringField(); err != nil {
			return err
		}
		if dirs[i].TreeDigest, err = r.digest(); err != nil {
			return err
		}
		if dirs[i].MetaDigest, err = r.digest(); err != nil {
			return err
		}
	}
	if err := r.requireExhausted(); err != nil {
		return err
	}
	t.Files = files
	t.Dirs = dirs
	return nil
}

// XAttr is a single extended attribute (name, value) pair.
type XAttr struct {
	Name  string
	Value []byte
}

// DirMetaRecord is the canonical body of a dir-meta object.
type DirMetaRecord struct {
	UID    uint32
	GID    uint32
	Mode   uint32
	Xattrs []XAttr
}

// MarshalCanonical encodes m into its canonical byte form.
func (m DirMetaRecord) MarshalCanonical() []byte {
	var buf bytes.Buffer
	writeUint32(&buf, m.UID)
	writeUint32(&buf, m.GID)
	writeUint32(&buf, m.Mode)
	writeUint32(&buf, uint32(len(m.Xattrs)))
	for _, x := range m.Xattrs {
		writeString(&buf, x.Name)
		writeBytes(&buf, x.Value)
	}
	return buf.Bytes()
}

// UnmarshalCanonical decodes data into m, replacing its contents.
func (m *DirMetaRecord) UnmarshalCanonical(data []byte) error {
	r := newReader(data)
	var err error
	if m.UID, err = r.uint32(); err != nil {
		return err
	}
	if m.GID, err = r.uint32(); err != nil {
		return err
	}
	if m.Mode, err = r.uint32(); err != nil {
		return err
	}
	n, err := r.uint32()
	if err != nil {
		return err
	}
	xattrs := make([]XAttr, n)
	for i := range xattrs {
		if xattrs[i].Name, err = r.stringField(); err != nil {
			return err
		}
		if xattrs[i].Value, err = r.bytesField(); err != nil {
			return err
		}
	}
	if err := r.requireExhausted(); err != nil {
		return err
	}
	m.Xattrs = xattrs
	return nil
}

// CommitRecord is the canonical body of a commit object. Parent is
// hashid.Zero for an initial commit (no parent).
type CommitRecord struct {
	Metadata       map[string]Variant
	Parent         hashid.Hash
	RelatedRefs    []string
	Subject        string
	Body           string
	Timestamp      int64
	RootTreeDigest hashid.Hash
	RootMetaDigest hashid.Hash
}

// MarshalCanonical encodes c into its canonical byte form.
func (c CommitRecord) MarshalCanonical() []byte {
	var buf bytes.Buffer
	marshalDict(&buf, c.Metadata)
	writeDigest(&buf, c.Parent)
	writeUint32(&buf, uint32(len(c.RelatedRefs)))
	for _, r := range c.RelatedRefs {
		writeString(&buf, r)
	}
	writeString(&buf, c.Subject)
	writeString(&buf, c.Body)
	writeInt64(&buf, c.Timestamp)
	writeDigest(&buf, c.RootTreeDigest)
	writeDigest(&buf, c.RootMetaDigest)
	return buf.Bytes()
}

// UnmarshalCanonical decodes data into c, replacing its contents.
func (c *CommitRecord) UnmarshalCanonical(data []byte) error {
	r := newReader(data)
	metadata, err := unmarshalDict(r)
	if err != nil {
		return err
	}
	parent, err := r.digest()
	if err != nil {
		return err
	}
	n, err := r.uint32()
	if err != nil {
		return err
	}
	related := make([]string, n)
	for i := range related {
		if related[i], err = r.stringField(); err != nil {
			return err
		}
	}
	subject, err := r.stringField()
	if err != nil {
		return err
	}
	body, err := r.stringField()
	if err != nil {
		return err
	}
	timestamp, err := r.int64()
	if err != nil {
		return err
	}
	rootTree, err := r.digest()
	if err != nil {
		return err
	}
	rootMeta, err := r.digest()
	if err != nil {
		return err
	}
	if err := r.requireExhausted(); err != nil {
		return err
	}
	c.Metadata = metadata
	c.Parent = parent
	c.RelatedRefs = related
	c.Subject = subject
	c.Body = body
	c.Timestamp = timestamp
	c.RootTreeDigest = rootTree
	c.RootMetaDigest = rootMeta
	return nil
}

// CommitMetaRecord is a detached metadata dictionary. Unlike every other
// object kind it is not addressed by the hash of its own bytes: it is
// stored under the digest of the commit it annotates (see objstore).
type CommitMetaRecord struct {
	Metadata map[string]Variant
}

// MarshalCanonical encodes cm into its canonical byte form.
func (cm CommitMetaRecord) MarshalCanonical() []byte {
	var buf bytes.Buffer
	marshalDict(&buf, cm.Metadata)
	return buf.Bytes()
}

// UnmarshalCanonical decodes data into cm, replacing its contents.
func (cm *CommitMetaRecord) UnmarshalCanonical(data []byte) error {
	r := newReader(data)
	metadata, err := unmarshalDict(r)
	if err != nil {
		return err
	}
	if err := r.requireExhausted(); err != nil {
		return err
	}
	cm.Metadata = metadata
	return nil
}

// TombstoneRecord marks an earlier commit digest as deleted, precluding it
// from being fetched again from a remote until the tombstone is removed.
type TombstoneRecord struct {
	DeletedCommit hashid.Hash
	Timestamp     int64
}

// MarshalCanonical encodes ts into its canonical byte form.
func (ts TombstoneRecord) MarshalCanonical() []byte {
	var buf bytes.Buffer
	writeDigest(&buf, ts.DeletedCommit)
	writeInt64(&buf, ts.Timestamp)
	return buf.Bytes()
}

// UnmarshalCanonical decodes data into ts, replacing its contents.
func (ts *TombstoneRecord) UnmarshalCanonical(data []byte) error {
	r := newReader(data)
	var err error
	if ts.DeletedCommit, err = r.digest(); err != nil {
		return err
	}
	if ts.Timestamp, err = r.int64(); err != nil {
		return err
	}
	return r.requireExhausted()
}
