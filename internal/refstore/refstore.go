package refstore

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/objectrepo/corestore/internal/coreerr"
	"github.com/objectrepo/corestore/internal/hashid"
)

// maxAliasDepth caps alias-chasing recursion; chosen generously above any
// plausible legitimate chain while still catching runaway cycles quickly.
const maxAliasDepth = 32

const aliasPrefix = "ref: "

// RefStore is the name-to-commit-digest mapping rooted at a repository's
// refs/ directory.
type RefStore struct {
	root string // repository root, not refs/ itself
}

// Open returns a RefStore rooted at repoRoot, creating refs/heads if
// missing.
func Open(repoRoot string) (*RefStore, error) {
	if err := os.MkdirAll(filepath.Join(repoRoot, "refs", "heads"), 0o777); err != nil {
		return nil, coreerr.Wrap(coreerr.Io, err, "refstore: create refs/heads")
	}
	return &RefStore{root: repoRoot}, nil
}

func (s *RefStore) flatPath(remote, path string) string {
	if remote == "" {
		return filepath.Join(s.root, "refs", "heads", filepath.FromSlash(path))
	}
	return filepath.Join(s.root, "refs", "remotes", remote, filepath.FromSlash(path))
}

func (s *RefStore) mirrorPath(collection, name string) string {
	return filepath.Join(s.root, "refs", "mirrors", filepath.FromSlash(collection), filepath.FromSlash(name))
}

// Resolve accepts a name, "remote:name", a bare commit-digest literal, or an
// alias (a one-line file containing another refspec), resolving aliases
// recursively with cycle detection and a depth cap.
func (s *RefStore) Resolve(refspec string) (hashid.Hash, error) {
	if h, err := hashid.Parse(refspec); err == nil {
		return h, nil
	}
	spec, err := ParseRefspec(refspec)
	if err != nil {
		return hashid.Hash{}, err
	}
	return s.resolve(spec, make(map[string]bool), 0)
}

func (s *RefStore) resolve(spec Refspec, visited map[string]bool, depth int) (hashid.Hash, error) {
	if depth > maxAliasDepth {
		return hashid.Hash{}, coreerr.New(coreerr.InvalidArgument, "refstore: alias chain exceeds depth cap resolving %s", spec.Path)
	}
	key := spec.Remote + ":" + spec.Path
	if visited[key] {
		return hashid.Hash{}, coreerr.New(coreerr.InvalidArgument, "refstore: alias cycle detected at %s", key)
	}
	visited[key] = true

	content, err := s.readRef(s.flatPath(spec.Remote, spec.Path))
	if err != nil {
		return hashid.Hash{}, err
	}
	if target, ok := strings.CutPrefix(content, aliasPrefix); ok {
		targetSpec, err := ParseRefspec(strings.TrimSpace(target))
		if err != nil {
			return hashid.Hash{}, err
		}
		return s.resolve(targetSpec, visited, depth+1)
	}
	return hashid.Parse(content)
}

func (s *RefStore) readRef(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", coreerr.New(coreerr.NotFound, "refstore: ref %s not found", path)
		}
		return "", coreerr.Wrap(coreerr.Io, err, "refstore: read %s", path)
	}
	return strings.TrimSpace(string(data)), nil
}

// List returns every flat/remote-scoped ref whose refspec has the given
// prefix (or all of them if prefix is empty), resolved to digests. Refs
// that fail to resolve (dangling alias, corrupt content) are omitted
// rather than failing the whole listing.
func (s *RefStore) List(prefix string) (map[string]hashid.Hash, error) {
	out := make(map[string]hashid.Hash)

	if err := s.walkFlat("", filepath.Join(s.root, "refs", "heads"), prefix, out); err != nil {
		return nil, err
	}

	remotesRoot := filepath.Join(s.root, "refs", "remotes")
	remoteDirs, err := os.ReadDir(remotesRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, coreerr.Wrap(coreerr.Io, err, "refstore: read refs/remotes")
	}
	for _, rd := range remoteDirs {
		if !rd.IsDir() {
			continue
		}
		if err := s.walkFlat(rd.Name(), filepath.Join(remotesRoot, rd.Name()), prefix, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *RefStore) walkFlat(remote, dir, prefix string, out map[string]hashid.Hash) error {
	return filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		path := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(path, prefix) {
			return nil
		}
		refspec := path
		if remote != "" {
			refspec = remote + ":" + path
		}
		digest, rerr := s.Resolve(refspec)
		if rerr != nil {
			return nil
		}
		out[refspec] = digest
		return nil
	})
}

// ListCollectionRefs returns every collection-scoped ref, optionally
// filtered to a single collection id.
func (s *RefStore) ListCollectionRefs(collectionFilter string) (map[CollectionRef]hashid.Hash, error) {
	out := make(map[CollectionRef]hashid.Hash)
	mirrorsRoot := filepath.Join(s.root, "refs", "mirrors")

	var collections []string
	if collectionFilter != "" {
		collections = []string{collectionFilter}
	} else {
		entries, err := os.ReadDir(mirrorsRoot)
		if err != nil {
			if os.IsNotExist(err) {
				return out, nil
			}
			return nil, coreerr.Wrap(coreerr.Io, err, "refstore: read refs/mirrors")
		}
		for _, e := range entries {
			if e.IsDir() {
				collections = append(collections, e.Name())
			}
		}
	}
	sort.Strings(collections)

	for _, collection := range collections {
		dir := filepath.Join(mirrorsRoot, collection)
		err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if info.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			name := filepath.ToSlash(rel)
			content, err := s.readRef(p)
			if err != nil {
				return nil
			}
			digest, err := hashid.Parse(content)
			if err != nil {
				return nil
			}
			out[CollectionRef{Collection: collection, Name: name}] = digest
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CollectionRef identifies a collection-scoped ref.
type CollectionRef struct {
	Collection string
	Name       string
}

// WriteRef atomically updates a flat or remote-scoped ref. Exactly one of
// digest (non-zero) or alias (non-empty) must be set; passing the zero
// digest and an empty alias deletes the ref.
func (s *RefStore) WriteRef(remote, name string, digest hashid.Hash, alias string) error {
	if err := validatePath(name); err != nil {
		return err
	}
	if !digest.IsZero() && alias != "" {
		return coreerr.New(coreerr.InvalidArgument, "refstore: write_ref digest and alias are mutually exclusive")
	}
	path := s.flatPath(remote, name)

	if digest.IsZero() && alias == "" {
		return removeRef(path)
	}
	if alias != "" {
		if _, err := ParseRefspec(alias); err != nil {
			return err
		}
		return writeRefFile(path, aliasPrefix+alias+"\n")
	}
	return writeRefFile(path, digest.String()+"\n")
}

// WriteCollectionRef atomically updates a collection-scoped ref. A zero
// digest deletes it.
func (s *RefStore) WriteCollectionRef(collection, name string, digest hashid.Hash) error {
	if err := ValidateCollectionID(collection); err != nil {
		return err
	}
	if err := validatePath(name); err != nil {
		return err
	}
	path := s.mirrorPath(collection, name)
	if digest.IsZero() {
		return removeRef(path)
	}
	return writeRefFile(path, digest.String()+"\n")
}

func writeRefFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return coreerr.Wrap(coreerr.Io, err, "refstore: create ref directory for %s", path)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ref-*")
	if err != nil {
		return coreerr.Wrap(coreerr.Io, err, "refstore: create temp ref file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return coreerr.Wrap(coreerr.Io, err, "refstore: write ref %s", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return coreerr.Wrap(coreerr.Io, err, "refstore: fsync ref %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return coreerr.Wrap(coreerr.Io, err, "refstore: close ref %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return coreerr.Wrap(coreerr.Io, err, "refstore: rename ref into place %s", path)
	}
	return nil
}

func removeRef(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return coreerr.Wrap(coreerr.Io, err, "refstore: delete ref %s", path)
	}
	return nil
}
