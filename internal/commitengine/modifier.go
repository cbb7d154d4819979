package commitengine

import (
	"io/fs"

	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/hashid"
)

// DevIno identifies a file by (device, inode), the key of Modifier's
// devino cache.
type DevIno struct {
	Dev uint64
	Ino uint64
}

// SELinuxLabeler computes the security.selinux xattr value for a path, the
// "sepolicy" modifier option. No implementation ships with this package
// (SELinux policy evaluation is out of scope); callers inject one.
type SELinuxLabeler interface {
	Label(path string, info fs.FileInfo) (label string, ok bool, err error)
}

// Modifier configures a single write_directory_to_tree walk. The zero value
// applies no transformation: real filesystem ownership, mode, and xattrs are
// preserved verbatim.
type Modifier struct {
	// SkipXattrs drops xattrs from every written object.
	SkipXattrs bool

	// CanonicalPermissions zeroes uid/gid of every entry and sets mode to
	// 0755 for both regular files and directories; a symlink's mode is not
	// recorded, so for symlinks only uid/gid change.
	CanonicalPermissions bool

	// ErrorOnUnlabeled fails the walk if Sepolicy is set but yields no
	// label for some path.
	ErrorOnUnlabeled bool

	// GenerateSizes folds an ostree.sizes index into the eventual commit's
	// metadata, recording (digest, archived-size, unpacked-size) per
	// content object written during the walk.
	GenerateSizes bool

	// DevinoCache maps (device, inode) to an already-known digest, so a
	// file checked out from a previous commit need not be rehashed.
	// Hits are recorded but not removed; callers own the cache's lifetime.
	DevinoCache map[DevIno]hashid.Hash

	// Filter is consulted per entry; returning false skips the entry
	// (and, for a directory, its entire subtree) entirely.
	Filter func(path string, info fs.FileInfo) bool

	// XattrCallback, if set, replaces the xattrs read from the live
	// filesystem for path with its own return value.
	XattrCallback func(path string, info fs.FileInfo, existing []canon.XAttr) []canon.XAttr

	// Sepolicy computes a security.selinux label per path when set.
	Sepolicy SELinuxLabeler
}

func (m *Modifier) skipXattrs() bool {
	return m != nil && m.SkipXattrs
}

func (m *Modifier) canonicalPermissions() bool {
	return m != nil && m.CanonicalPermissions
}

func (m *Modifier) filterAllows(path string, info fs.FileInfo) bool {
	if m == nil || m.Filter == nil {
		return true
	}
	return m.Filter(path, info)
}

func (m *Modifier) overrideXattrs(path string, info fs.FileInfo, existing []canon.XAttr) []canon.XAttr {
	if m == nil || m.XattrCallback == nil {
		return existing
	}
	return m.XattrCallback(path, info, existing)
}
