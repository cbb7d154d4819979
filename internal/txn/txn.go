// Package txn implements the transaction state machine that groups writes
// into a repository, fsync-barriers them, and publishes staged objects and
// ref updates atomically.
package txn

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/objectrepo/corestore/internal/coreerr"
	"github.com/objectrepo/corestore/internal/hashid"
)

// State is one of the three states a Transaction can be in.
type State int

const (
	// Idle means no transaction is open.
	Idle State = iota
	// Open means writes may be staged.
	Open
	// Publishing means commit() is actively publishing staged objects.
	Publishing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Open:
		return "open"
	case Publishing:
		return "publishing"
	default:
		return "unknown"
	}
}

// Stats mirrors §4.4's "gathered under the txn mutex" counters. Total
// counts include dedup hits; written counts only new stores.
type Stats struct {
	MetadataObjectsTotal   int
	MetadataObjectsWritten int
	ContentObjectsTotal    int
	ContentObjectsWritten  int
	ContentBytesWritten    int64
}

// RefUpdate is one queued ref write: Digest is the zero hash to mean
// "delete this ref."
type RefUpdate struct {
	Remote     string
	Collection string
	Name       string
	Digest     hashid.Hash
	Alias      string
	IsAlias    bool
}

// Publisher is the narrow surface txn needs from the object store to
// publish a transaction, kept local to avoid a txn->objstore import for the
// whole package. Objects themselves are written directly into objects/ as
// they are staged during the Open state (objstore's put path is already
// idempotent and content-addressed, and the staging lock guarantees a
// single writer), so Commit's job is durability and ref publication, not
// a separate rename-into-place pass over a staging tree.
type Publisher interface {
	SyncObjectsDir() error
}

// RefWriter applies a single queued ref update.
type RefWriter interface {
	ApplyUpdate(u RefUpdate) error
}

// Transaction is a single repository's write-grouping handle. Only one
// Transaction may be Open at a time per repository (enforced by the
// exclusive staging lock, not by in-process state alone, since cooperating
// processes must also be excluded).
type Transaction struct {
	repoRoot  string
	bootID    string
	publisher Publisher
	refWriter RefWriter

	mu         sync.Mutex
	state      State
	stagingDir string
	lock       *flock.Flock
	stats      Stats
	refQueue   []RefUpdate

	// InjectError, when non-nil, is called at the start of commit() for
	// synthetic-error-injection testing (§4.4 step 1).
	InjectError func() error
	// SkipSyncfs suppresses the staging-directory syncfs call, used only
	// by tests running against filesystems where it is unavailable.
	SkipSyncfs bool
}

// New returns a Transaction bound to a repository root. bootID identifies
// this process's boot/run for staging-directory naming and stale-directory
// sweeps; callers typically derive it once at process start.
func New(repoRoot, bootID string, publisher Publisher, refWriter RefWriter) *Transaction {
	return &Transaction{
		repoRoot:  repoRoot,
		bootID:    bootID,
		publisher: publisher,
		refWriter: refWriter,
		state:     Idle,
	}
}

// State returns the transaction's current state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Prepare allocates (or resumes) the staging directory and takes its
// exclusive lock. resumed is true if a previous staging directory for this
// boot-id already existed.
func (t *Transaction) Prepare() (resumed bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Idle {
		return false, coreerr.New(coreerr.InvalidArgument, "txn: prepare() called while transaction is %s", t.state)
	}

	tmpDir := filepath.Join(t.repoRoot, "tmp")
	stagingName := "staging-" + t.bootID
	stagingDir := filepath.Join(tmpDir, stagingName)

	_, statErr := os.Stat(stagingDir)
	resumed = statErr == nil
	if !resumed {
		// A previous Prepare for this boot-id leaves staging-<bootID>-<uuid>.
		if matches, _ := filepath.Glob(filepath.Join(tmpDir, stagingName+"-*")); len(matches) > 0 {
			stagingDir = matches[0]
			resumed = true
		}
	}
	if !resumed {
		stagingDir = filepath.Join(tmpDir, stagingName+"-"+uuid.NewString())
		if err := os.MkdirAll(stagingDir, 0o777); err != nil {
			return false, coreerr.Wrap(coreerr.Io, err, "txn: create staging directory")
		}
	}

	lockPath := filepath.Join(tmpDir, ".staging-lock-"+t.bootID)
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return false, coreerr.Wrap(coreerr.Io, err, "txn: acquire staging lock")
	}
	if !locked {
		return false, coreerr.New(coreerr.Busy, "txn: another transaction already holds the staging lock")
	}

	t.stagingDir = stagingDir
	t.lock = lock
	t.stats = Stats{}
	t.refQueue = nil
	t.state = Open
	return resumed, nil
}

// StagingDir returns the currently prepared staging directory.
func (t *Transaction) StagingDir() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stagingDir
}

// AddStats folds delta into the transaction's running Stats, matching
// §4.4's "gathered under the txn mutex" requirement.
func (t *Transaction) AddStats(delta Stats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.MetadataObjectsTotal += delta.MetadataObjectsTotal
	t.stats.MetadataObjectsWritten += delta.MetadataObjectsWritten
	t.stats.ContentObjectsTotal += delta.ContentObjectsTotal
	t.stats.ContentObjectsWritten += delta.ContentObjectsWritten
	t.stats.ContentBytesWritten += delta.ContentBytesWritten
}

// SetRef enqueues a flat or remote-scoped ref update; digest is hashid.Zero
// to mean "delete".
func (t *Transaction) SetRef(remote, name string, digest hashid.Hash) error {
	return t.enqueue(RefUpdate{Remote: remote, Name: name, Digest: digest})
}

// SetCollectionRef enqueues a collection-scoped ref update.
func (t *Transaction) SetCollectionRef(collectionID, name string, digest hashid.Hash) error {
	return t.enqueue(RefUpdate{Collection: collectionID, Name: name, Digest: digest})
}

// SetAlias enqueues a ref update that points name at another refspec
// instead of a literal digest.
func (t *Transaction) SetAlias(remote, name, alias string) error {
	return t.enqueue(RefUpdate{Remote: remote, Name: name, Alias: alias, IsAlias: true})
}

func (t *Transaction) enqueue(u RefUpdate) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Open {
		return coreerr.New(coreerr.InvalidArgument, "txn: ref update queued while transaction is %s", t.state)
	}
	t.refQueue = append(t.refQueue, u)
	return nil
}

// Commit runs the publish sequence: optional error injection, fsync the
// staging dir, fsync objects/ through the Publisher, remove the staging
// dir, apply queued ref updates, release the lock. It does not rename
// staged objects into place or fsync per-bucket directories: objects are
// already written into objects/ while the transaction is Open.
func (t *Transaction) Commit() (Stats, error) {
	t.mu.Lock()
	if t.state != Open {
		t.mu.Unlock()
		return Stats{}, coreerr.New(coreerr.InvalidArgument, "txn: commit() called while transaction is %s", t.state)
	}
	t.state = Publishing
	stagingDir := t.stagingDir
	queue := t.refQueue
	inject := t.InjectError
	skipSyncfs := t.SkipSyncfs
	t.mu.Unlock()

	if inject != nil {
		if err := inject(); err != nil {
			t.mu.Lock()
			t.state = Open
			t.mu.Unlock()
			return Stats{}, err
		}
	}

	if !skipSyncfs {
		if err := syncDir(stagingDir); err != nil {
			t.mu.Lock()
			t.state = Open
			t.mu.Unlock()
			return Stats{}, err
		}
	}

	if err := t.publisher.SyncObjectsDir(); err != nil {
		t.mu.Lock()
		t.state = Open
		t.mu.Unlock()
		return Stats{}, err
	}

	if err := os.RemoveAll(stagingDir); err != nil {
		t.mu.Lock()
		t.state = Open
		t.mu.Unlock()
		return Stats{}, coreerr.Wrap(coreerr.Io, err, "txn: remove staging directory")
	}

	for _, u := range queue {
		if err := t.refWriter.ApplyUpdate(u); err != nil {
			t.mu.Lock()
			t.state = Open
			t.mu.Unlock()
			return Stats{}, err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.stats
	t.refQueue = nil
	t.stagingDir = ""
	if t.lock != nil {
		t.lock.Unlock()
		t.lock = nil
	}
	t.state = Idle
	return stats, nil
}

// Abort drops the queued ref updates and releases the staging lock,
// leaving staged objects in place for a later resumed transaction or
// scheduled tmp pruning.
func (t *Transaction) Abort() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Idle {
		return nil
	}
	t.refQueue = nil
	if t.lock != nil {
		if err := t.lock.Unlock(); err != nil {
			return coreerr.Wrap(coreerr.Io, err, "txn: release staging lock")
		}
		t.lock = nil
	}
	t.state = Idle
	return nil
}

// Close is a defer-safe alias for Abort, so a panicking commit path still
// releases the staging lock.
func (t *Transaction) Close() error { return t.Abort() }

// syncDir fsyncs a directory's contents to disk (the closest portable
// approximation of syncfs for a single directory tree).
func syncDir(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return coreerr.Wrap(coreerr.Io, err, "txn: open %s for sync", path)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return coreerr.Wrap(coreerr.Io, err, "txn: fsync %s", path)
	}
	return nil
}

// boot-id helpers: a process-lifetime identifier distinguishing this run's
// staging directories from a previous run's, per §4.4's "not belonging to
// the current boot-id" sweep criterion.

// NewBootID returns a fresh random boot identifier suitable for passing to
// New.
func NewBootID() string { return uuid.NewString() }
