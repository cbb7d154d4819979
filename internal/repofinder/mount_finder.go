package repofinder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/objectrepo/corestore/internal/hashid"
	"github.com/objectrepo/corestore/internal/refstore"
)

// MountLister abstracts enumerating mounted filesystem roots, so
// MountFinder doesn't need to parse /proc/mounts itself in tests.
type MountLister interface {
	ListMounts() ([]string, error)
}

// MountFinder walks mounted filesystems looking for
// <mount>/.ostree/repos/<collection>/<ref>, per §4.7's "mount" variant.
type MountFinder struct {
	Lister     MountLister
	ParentRoot string // the local repo's own root, for the self-reference check
	Priority   int
}

func (f *MountFinder) Variant() string { return "mount" }

func (f *MountFinder) ResolveAsync(ctx context.Context, requests []CollectionRef) ([]Result, error) {
	mounts, err := f.Lister.ListMounts()
	if err != nil {
		return nil, err
	}
	parentDevIno, parentOK := devIno(f.ParentRoot)

	refToDigest := make(map[CollectionRef]*hashid.Hash)
	for _, mount := range mounts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, req := range requests {
			repoDir := filepath.Join(mount, ".ostree", "repos", req.Collection, req.Ref)
			resolved, err := resolveWithinMount(mount, repoDir)
			if err != nil {
				continue
			}
			if parentOK {
				if di, ok := devIno(resolved); ok && di == parentDevIno {
					continue
				}
			}
			store, err := refstore.Open(resolved)
			if err != nil {
				continue
			}
			digest, err := store.Resolve(req.Ref)
			if err != nil {
				continue
			}
			d := digest
			refToDigest[req] = &d
		}
	}
	if len(refToDigest) == 0 {
		return nil, nil
	}
	return []Result{{
		Remote:        RemoteConfig{Name: "mount"},
		FinderVariant: f.Variant(),
		Priority:      f.Priority,
		RefToDigest:   refToDigest,
	}}, nil
}

// resolveWithinMount follows path, allowing intermediate symlinks only if
// the final resolved path stays within mount.
func resolveWithinMount(mount, path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	mountAbs, err := filepath.Abs(mount)
	if err != nil {
		return "", err
	}
	if resolved != mountAbs && !strings.HasPrefix(resolved, mountAbs+string(filepath.Separator)) {
		return "", os.ErrPermission
	}
	return resolved, nil
}

type devInoPair struct {
	dev, ino uint64
}

func devIno(path string) (devInoPair, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return devInoPair{}, false
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return devInoPair{}, false
	}
	return devInoPair{dev: uint64(st.Dev), ino: st.Ino}, true
}
