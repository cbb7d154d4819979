// Package corestore implements a content-addressed object repository core
// modeled on libostree/ostree: a local object store, commit history, ref
// namespace, transactional writer, signing engine and peer-discovery layer,
// wired together behind a single Repo handle.
package corestore

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/objectrepo/corestore/internal/commitengine"
	"github.com/objectrepo/corestore/internal/coreerr"
	"github.com/objectrepo/corestore/internal/hashid"
	"github.com/objectrepo/corestore/internal/objstore"
	"github.com/objectrepo/corestore/internal/refstore"
	"github.com/objectrepo/corestore/internal/repoconfig"
	"github.com/objectrepo/corestore/internal/sign"
	"github.com/objectrepo/corestore/internal/txn"
)

// Options configures Open and Init beyond what the on-disk config carries.
type Options struct {
	// Logger receives structured diagnostics; nil falls back to slog.Default().
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Repo is the top-level handle over one repository: its object store, ref
// namespace, commit engine, signing engine and on-disk config. A Repo also
// implements introspect.StatsProvider, so it can back a live introspection
// server directly.
type Repo struct {
	root   string
	store  *objstore.ObjectStore
	refs   *refstore.RefStore
	engine *commitengine.CommitEngine
	policy *commitengine.FreeSpacePolicy
	sign   *sign.Engine
	config *repoconfig.Config
	core   repoconfig.CoreConfig
	bootID string
	logger *slog.Logger
}

// Root returns the repository's root directory.
func (r *Repo) Root() string { return r.root }

// Mode returns the repository's storage variant.
func (r *Repo) Mode() objstore.Mode { return r.core.Mode }

// Open loads an existing repository rooted at root, recursively opening a
// parent repo chain when core.parent is set.
func Open(root string, opts Options) (*Repo, error) {
	opts.defaults()

	cfg, err := repoconfig.LoadFile(root)
	if err != nil {
		return nil, err
	}
	core, err := cfg.LoadCore()
	if err != nil {
		return nil, err
	}

	var parentStore *objstore.ObjectStore
	if core.Parent != "" {
		parent, err := Open(core.Parent, opts)
		if err != nil {
			return nil, coreerr.Wrap(coreerr.Io, err, "corestore: open parent repo %s", core.Parent)
		}
		parentStore = parent.store
	}

	store, err := objstore.Open(root, core.Mode, parentStore)
	if err != nil {
		return nil, err
	}
	refs, err := refstore.Open(root)
	if err != nil {
		return nil, err
	}

	var policy *commitengine.FreeSpacePolicy
	if core.MinFreeSpacePercent != 0 || core.MinFreeSpaceSize != 0 {
		policy, err = commitengine.NewFreeSpacePolicy(core.MinFreeSpacePercent, core.MinFreeSpaceSize)
		if err != nil {
			return nil, err
		}
	}

	return &Repo{
		root:   root,
		store:  store,
		refs:   refs,
		engine: commitengine.New(store, policy),
		policy: policy,
		sign:   sign.NewEngine(),
		config: cfg,
		core:   core,
		bootID: txn.NewBootID(),
		logger: opts.Logger,
	}, nil
}

// Init creates a new repository at root with the given storage mode and
// opens it. Fails with coreerr.AlreadyExists if a config file is already
// present.
func Init(root string, mode objstore.Mode, opts Options) (*Repo, error) {
	opts.defaults()

	if err := os.MkdirAll(root, 0o777); err != nil {
		return nil, coreerr.Wrap(coreerr.Io, err, "corestore: create repo root")
	}
	configPath := filepath.Join(root, "config")
	if _, err := os.Stat(configPath); err == nil {
		return nil, coreerr.New(coreerr.AlreadyExists, "corestore: %s already initialised", root)
	}

	cfg := repoconfig.New()
	cfg.Set("core", "mode", mode.String())
	cfg.Set("core", "repo_version", "1")
	if err := os.WriteFile(configPath, cfg.Marshal(), 0o644); err != nil {
		return nil, coreerr.Wrap(coreerr.Io, err, "corestore: write config")
	}

	return Open(root, opts)
}

// Algorithm registers and returns a signing algorithm by name, so callers
// can configure keys before calling SignCommit/VerifyCommit.
func (r *Repo) Algorithm(name string) (sign.Algorithm, error) {
	return r.sign.Use(name)
}

// ResolveRef resolves a refspec (name, "remote:name", a bare digest
// literal, or an alias) to a commit digest.
func (r *Repo) ResolveRef(refspec string) (hashid.Hash, error) {
	return r.refs.Resolve(refspec)
}

// ListRefs returns every flat/remote-scoped ref whose refspec starts with
// prefix, keyed by refspec string.
func (r *Repo) ListRefs(prefix string) (map[string]hashid.Hash, error) {
	return r.refs.List(prefix)
}

// ListCollectionRefs returns every collection-scoped ref matching filter.
func (r *Repo) ListCollectionRefs(filter string) (map[refstore.CollectionRef]hashid.Hash, error) {
	return r.refs.ListCollectionRefs(filter)
}
