package commitengine

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/coreerr"
)

// DirSource is the abstract "file tree" write_directory_to_tree walks: a
// live filesystem view (fd-relative in spirit, path-relative here since Go
// lacks the teacher's openat idiom) or any test double implementing the
// same contract.
type DirSource interface {
	ReadDir(path string) ([]fs.DirEntry, error)
	Lstat(path string) (fs.FileInfo, error)
	Open(path string) (io.ReadCloser, error)
	Readlink(path string) (string, error)
	// Xattrs returns the extended attributes of path, or nil if the
	// source does not track them (e.g. an in-memory test fixture).
	Xattrs(path string) ([]canon.XAttr, error)
	// DevIno returns the (device, inode) pair backing path, used for the
	// devino cache; ok is false if the source has no notion of one.
	DevIno(path string, info fs.FileInfo) (DevIno, bool)
}

// OSDirSource is a DirSource rooted at a real directory on the local
// filesystem.
type OSDirSource struct {
	Root string
}

func (s OSDirSource) full(path string) string { return filepath.Join(s.Root, path) }

// ReadDir lists path's entries.
func (s OSDirSource) ReadDir(path string) ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(s.full(path))
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Io, err, "commitengine: read dir %s", path)
	}
	return entries, nil
}

// Lstat stats path without following a trailing symlink.
func (s OSDirSource) Lstat(path string) (fs.FileInfo, error) {
	info, err := os.Lstat(s.full(path))
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Io, err, "commitengine: lstat %s", path)
	}
	return info, nil
}

// Open opens path's content for reading.
func (s OSDirSource) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(s.full(path))
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Io, err, "commitengine: open %s", path)
	}
	return f, nil
}

// Readlink returns path's symlink target.
func (s OSDirSource) Readlink(path string) (string, error) {
	target, err := os.Readlink(s.full(path))
	if err != nil {
		return "", coreerr.Wrap(coreerr.Io, err, "commitengine: readlink %s", path)
	}
	return target, nil
}

// Xattrs reads path's extended attributes via the listxattr/getxattr
// syscalls, skipping namespaces the process has no access to.
func (s OSDirSource) Xattrs(path string) ([]canon.XAttr, error) {
	full := s.full(path)
	size, err := unix.Llistxattr(full, nil)
	if err != nil || size == 0 {
		return nil, nil
	}
	names := make([]byte, size)
	if _, err := unix.Llistxattr(full, names); err != nil {
		return nil, nil
	}
	var out []canon.XAttr
	for _, name := range splitNulTerminated(names) {
		valSize, err := unix.Lgetxattr(full, name, nil)
		if err != nil {
			continue
		}
		val := make([]byte, valSize)
		if n, err := unix.Lgetxattr(full, name, val); err == nil {
			out = append(out, canon.XAttr{Name: name, Value: val[:n]})
		}
	}
	return out, nil
}

// DevIno reports the (device, inode) pair from info's platform-specific
// Sys() value.
func (s OSDirSource) DevIno(path string, info fs.FileInfo) (DevIno, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return DevIno{}, false
	}
	return DevIno{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}, true
}

func splitNulTerminated(b []byte) []string {
	var out []string
	start := 0
	for i, c := range b {
		if c == 0 {
			if i > start {
				out = append(out, string(b[start:i]))
			}
			start = i + 1
		}
	}
	return out
}
