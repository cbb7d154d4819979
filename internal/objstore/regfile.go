package objstore

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/coreerr"
	"github.com/objectrepo/corestore/internal/hashid"
)

// Mode bits a bare-user-only store refuses to carry (see §3's mode table).
const (
	modeSetuid = 0o4000
	modeSetgid = 0o2000
	modeSticky = 0o1000
)

// symlinkModeBits is the POSIX mode folded into a symlink's canonical
// header, matching the real st_mode a symlink carries on disk.
const symlinkModeBits = 0o120777

// StagedFile is an anonymous writable temp file under the repository's
// tmp/ directory, per §4.1's stage_regfile.
type StagedFile struct {
	f    *os.File
	path string
}

// Name returns the staged file's temporary path.
func (sf *StagedFile) Name() string { return sf.path }

// Write appends to the staged file.
func (sf *StagedFile) Write(p []byte) (int, error) { return sf.f.Write(p) }

// StageRegfile creates an anonymous writable temp file in the staging
// directory, optionally preallocating sizeHint bytes.
func (s *ObjectStore) StageRegfile(sizeHint int64) (*StagedFile, error) {
	f, err := os.CreateTemp(s.TmpDir(), "stage-*")
	if err != nil {
		return nil, coreerr.Wrap(coreerr.Io, err, "objstore: create staged temp file")
	}
	if sizeHint > 0 {
		if err := f.Truncate(sizeHint); err != nil {
			f.Close()
			os.Remove(f.Name())
			return nil, coreerr.Wrap(coreerr.Io, err, "objstore: preallocate staged file")
		}
	}
	return &StagedFile{f: f, path: f.Name()}, nil
}

// FinalizeRegfile validates (unless trustDigest is set), permissions, and
// atomically links a staged regular file into its loose path. kind is
// usually hashid.KindFileContent; own/mode/xattrs only matter for bare*
// modes, where they become real filesystem attributes applied to the fd
// before it is linked into objects/ (never after: §4.1 forbids a window
// where a partially-permissioned file appears under a valid loose path).
func (s *ObjectStore) FinalizeRegfile(staged *StagedFile, digest hashid.Hash, kind hashid.Kind, own Ownership, mode uint32, xattrs []canon.XAttr, trustDigest bool) (bool, error) {
	if !trustDigest {
		actual, err := hashFileBytes(staged.path)
		if err != nil {
			staged.f.Close()
			os.Remove(staged.path)
			return false, err
		}
		if actual != digest {
			staged.f.Close()
			os.Remove(staged.path)
			return false, coreerr.New(coreerr.CorruptedObject, "objstore: staged file digest %s does not match expected %s", actual, digest)
		}
	}
	if kind == hashid.KindFileContent && s.mode != ModeArchive {
		if err := s.applyRegfilePolicy(staged.f, staged.path, own, mode, xattrs); err != nil {
			staged.f.Close()
			os.Remove(staged.path)
			return false, err
		}
	}
	if err := staged.f.Close(); err != nil {
		os.Remove(staged.path)
		return false, coreerr.Wrap(coreerr.Io, err, "objstore: close staged file")
	}
	defer os.Remove(staged.path)
	return s.linkIntoPlace(staged.path, kind, digest)
}

// FinalizeSymlink renames a staged real symlink into its loose path,
// applying ownership per mode's policy first. Used only by ModeBare and
// ModeBareUserOnly; the other two modes store symlinks as regular files
// via WriteSymlink -> WriteRegfile.
func (s *ObjectStore) FinalizeSymlink(stagedPath string, digest hashid.Hash, own Ownership, xattrs []canon.XAttr) (bool, error) {
	if s.mode == ModeBare {
		if err := os.Lchown(stagedPath, int(own.UID), int(own.GID)); err != nil && !os.IsPermission(err) {
			os.Remove(stagedPath)
			return false, coreerr.Wrap(coreerr.Io, err, "objstore: lchown staged symlink")
		}
		for _, x := range xattrs {
			if err := unix.Lsetxattr(stagedPath, x.Name, x.Value, 0); err != nil {
				os.Remove(stagedPath)
				return false, coreerr.Wrap(coreerr.Io, err, "objstore: lsetxattr %s on staged symlink", x.Name)
			}
		}
	}
	return s.linkIntoPlace(stagedPath, hashid.KindFileContent, digest)
}

// hashFileBytes computes the SHA-256 digest of a file's raw on-disk bytes,
// used only by FinalizeRegfile's non-trusting path (a caller that staged
// content itself and wants the store to verify it before linking).
func hashFileBytes(path string) (hashid.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return hashid.Hash{}, coreerr.Wrap(coreerr.Io, err, "objstore: open staged file for verification")
	}
	defer f.Close()
	d := hashid.Hasher()
	if _, err := io.Copy(d, f); err != nil {
		return hashid.Hash{}, coreerr.Wrap(coreerr.Io, err, "objstore: hash staged file")
	}
	return d.Sum(), nil
}

func (s *ObjectStore) applyRegfilePolicy(f *os.File, path string, own Ownership, mode uint32, xattrs []canon.XAttr) error {
	switch s.mode {
	case ModeBare:
		// setuid/setgid/sticky are allowed here; the real filesystem
		// carries the actual bits, unlike bare-user-only below.
		if err := f.Chmod(os.FileMode(mode & 0o7777)); err != nil {
			return coreerr.Wrap(coreerr.Io, err, "objstore: chmod staged file")
		}
		if err := f.Chown(int(own.UID), int(own.GID)); err != nil && !os.IsPermission(err) {
			return coreerr.Wrap(coreerr.Io, err, "objstore: chown staged file")
		}
		for _, x := range xattrs {
			if err := unix.Fsetxattr(int(f.Fd()), x.Name, x.Value, 0); err != nil {
				return coreerr.Wrap(coreerr.Io, err, "objstore: setxattr %s", x.Name)
			}
		}
	case ModeBareUser:
		if err := f.Chmod(0o644); err != nil {
			return coreerr.Wrap(coreerr.Io, err, "objstore: chmod staged file")
		}
		header := canon.DirMetaRecord{UID: own.UID, GID: own.GID, Mode: mode, Xattrs: xattrs}
		if err := unix.Fsetxattr(int(f.Fd()), "user.ostreemeta", header.MarshalCanonical(), 0); err != nil {
			return coreerr.Wrap(coreerr.Io, err, "objstore: setxattr user.ostreemeta")
		}
	case ModeBareUserOnly:
		if mode&(modeSetuid|modeSetgid|modeSticky) != 0 {
			return coreerr.New(coreerr.PolicyDenied, "objstore: bare-user-only repository refuses setuid/setgid/sticky bits")
		}
		if err := f.Chmod(os.FileMode(mode & 0o775)); err != nil {
			return coreerr.Wrap(coreerr.Io, err, "objstore: chmod staged file")
		}
	}
	return nil
}

// WriteRegfile implements the digest-then-link algorithm for a regular
// file: content is streamed while tee-hashed, the ownership/mode/xattr
// header (built the same way in every mode) is folded into the digest so
// that the same file committed under
// different repository modes yields the same identity, and the on-disk
// bytes are framed (archive) or raw (bare*) accordingly.
func (s *ObjectStore) WriteRegfile(own Ownership, mode uint32, xattrs []canon.XAttr, content io.Reader, sizeHint int64) (hashid.Hash, bool, error) {
	staged, err := s.StageRegfile(0) // content length is not known precisely once framed; let the writer grow the file.
	if err != nil {
		return hashid.Hash{}, false, err
	}

	header := canon.DirMetaRecord{UID: own.UID, GID: own.GID, Mode: mode, Xattrs: xattrs}
	digester := hashid.Hasher()
	digester.Write(header.MarshalCanonical())
	teed := io.TeeReader(content, digester)

	if s.mode == ModeArchive {
		if err := writeArchiveFrame(staged.f, header, teed); err != nil {
			staged.f.Close()
			os.Remove(staged.path)
			return hashid.Hash{}, false, err
		}
	} else {
		if _, err := io.Copy(staged.f, teed); err != nil {
			staged.f.Close()
			os.Remove(staged.path)
			return hashid.Hash{}, false, coreerr.Wrap(coreerr.Io, err, "objstore: write staged file content")
		}
	}

	digest := digester.Sum()
	wasNew, err := s.FinalizeRegfile(staged, digest, hashid.KindFileContent, own, mode, xattrs, true)
	return digest, wasNew, err
}

// WriteSymlink implements the digest-then-link algorithm for a symlink.
// In archive and bare-user stores it is stored as a regular file per the
// mode table; in bare and bare-user-only stores it becomes a real symlink.
func (s *ObjectStore) WriteSymlink(own Ownership, xattrs []canon.XAttr, target string) (hashid.Hash, bool, error) {
	if strings.ContainsRune(target, 0) {
		return hashid.Hash{}, false, coreerr.New(coreerr.InvalidArgument, "objstore: symlink target contains a NUL byte")
	}
	content := []byte(target + "\x00")

	if s.mode == ModeArchive || s.mode == ModeBareUser {
		return s.WriteRegfile(own, symlinkModeBits, xattrs, strings.NewReader(target+"\x00"), int64(len(content)))
	}

	header := canon.DirMetaRecord{UID: own.UID, GID: own.GID, Mode: symlinkModeBits, Xattrs: xattrs}
	digest := hashid.Sum(append(header.MarshalCanonical(), content...))

	if s.Has(hashid.KindFileContent, digest) {
		return digest, false, nil
	}

	stagedPath := filepath.Join(s.TmpDir(), "stage-symlink-"+digest.Short())
	if err := os.Symlink(target, stagedPath); err != nil {
		return hashid.Hash{}, false, coreerr.Wrap(coreerr.Io, err, "objstore: create staged symlink")
	}
	wasNew, err := s.FinalizeSymlink(stagedPath, digest, own, xattrs)
	return digest, wasNew, err
}
