package corestore

import (
	"time"

	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/commitengine"
	"github.com/objectrepo/corestore/internal/coreerr"
	"github.com/objectrepo/corestore/internal/hashid"
	"github.com/objectrepo/corestore/internal/treemodel"
	"github.com/objectrepo/corestore/internal/txn"
)

// CommitOptions gathers the arguments for Commit: the directory to ingest
// and the ref it should be published under.
type CommitOptions struct {
	SourceDir string

	// Exactly one of Branch/Collection+Name selects the ref to update.
	Branch       string
	Collection   string
	Name         string

	Subject     string
	Body        string
	Metadata    map[string]canon.Variant
	RelatedRefs []string
	Modifier    *commitengine.Modifier
	// GenerateSizes folds an ostree.sizes index into the commit's metadata.
	GenerateSizes bool
}

// txnStatsSink adapts a *txn.Transaction into a commitengine.StatsSink, so
// object writes made during the walk feed the transaction's running Stats
// without commitengine depending on txn.
type txnStatsSink struct {
	t *txn.Transaction
}

func (s txnStatsSink) AddMetadataObject(written bool) {
	delta := txn.Stats{MetadataObjectsTotal: 1}
	if written {
		delta.MetadataObjectsWritten = 1
	}
	s.t.AddStats(delta)
}

func (s txnStatsSink) AddContentObject(size int64, written bool) {
	delta := txn.Stats{ContentObjectsTotal: 1}
	if written {
		delta.ContentObjectsWritten = 1
		delta.ContentBytesWritten = size
	}
	s.t.AddStats(delta)
}

// Commit ingests opts.SourceDir into a new commit, chaining it onto the
// current value of the selected ref (if any), and publishes both the
// commit and the ref update as a single transaction.
func (r *Repo) Commit(opts CommitOptions) (hashid.Hash, txn.Stats, error) {
	parent := hashid.Zero
	if opts.Branch != "" {
		if h, err := r.refs.Resolve(opts.Branch); err == nil {
			parent = h
		} else if !coreerr.Is(err, coreerr.NotFound) {
			return hashid.Hash{}, txn.Stats{}, err
		}
	}

	t := txn.New(r.root, r.bootID, r.store, r.refs)
	if _, err := t.Prepare(); err != nil {
		return hashid.Hash{}, txn.Stats{}, err
	}
	defer t.Close()

	if r.policy != nil {
		if err := r.policy.CheckAtStart(r.root); err != nil {
			return hashid.Hash{}, txn.Stats{}, err
		}
	}

	r.engine.Sink = txnStatsSink{t: t}
	defer func() { r.engine.Sink = nil }()

	tree := treemodel.New()
	source := commitengine.OSDirSource{Root: opts.SourceDir}
	sizes, err := r.engine.WriteDirectoryToTree(source, tree, opts.Modifier)
	if err != nil {
		return hashid.Hash{}, txn.Stats{}, err
	}

	rootTreeDigest, rootMetaDigest, err := r.engine.WriteTree(tree)
	if err != nil {
		return hashid.Hash{}, txn.Stats{}, err
	}

	digest, err := r.engine.WriteCommit(commitengine.CommitOptions{
		Parent:         parent,
		Subject:        opts.Subject,
		Body:           opts.Body,
		Metadata:       opts.Metadata,
		RootTreeDigest: rootTreeDigest,
		RootMetaDigest: rootMetaDigest,
		Timestamp:      time.Now().Unix(),
		RelatedRefs:    opts.RelatedRefs,
		Sizes:          sizes,
		GenerateSizes:  opts.GenerateSizes,
	})
	if err != nil {
		return hashid.Hash{}, txn.Stats{}, err
	}

	if opts.Collection != "" {
		if err := t.SetCollectionRef(opts.Collection, opts.Name, digest); err != nil {
			return hashid.Hash{}, txn.Stats{}, err
		}
	} else if opts.Branch != "" {
		if err := t.SetRef("", opts.Branch, digest); err != nil {
			return hashid.Hash{}, txn.Stats{}, err
		}
	}

	stats, err := t.Commit()
	if err != nil {
		return hashid.Hash{}, txn.Stats{}, err
	}
	return digest, stats, nil
}
