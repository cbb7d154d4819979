package objstore

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/objectrepo/corestore/internal/coreerr"
	"github.com/objectrepo/corestore/internal/hashid"
)

var kindByExtension = map[string]hashid.Kind{
	"file":             hashid.KindFileContent,
	"dirtree":          hashid.KindDirTree,
	"dirmeta":          hashid.KindDirMeta,
	"commit":           hashid.KindCommit,
	"commitmeta":       hashid.KindCommitMeta,
	"tombstone-commit": hashid.KindTombstoneCommit,
}

// ObjectRef names one object found during Enumerate. StorageKind is always
// "loose" in this core (the pack format is out of scope, per §4.1).
type ObjectRef struct {
	Kind        hashid.Kind
	Digest      hashid.Hash
	StorageKind string
}

// Enumerate walks objects/XX/... and invokes yield for every loose object
// found, in directory order. A bad entry (unreadable directory, malformed
// filename) is logged and skipped rather than aborting the walk, mirroring
// the teacher's loadPackIndices/loadLooseRefs directory-scan idiom.
func (s *ObjectStore) Enumerate(log *slog.Logger, yield func(ObjectRef) error) error {
	if log == nil {
		log = slog.Default()
	}
	objectsDir := filepath.Join(s.root, "objects")
	shards, err := os.ReadDir(objectsDir)
	if err != nil {
		return coreerr.Wrap(coreerr.Io, err, "objstore: read objects directory")
	}
	for _, shard := range shards {
		if !shard.IsDir() || len(shard.Name()) != 2 {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(objectsDir, shard.Name()))
		if err != nil {
			log.Warn("objstore: failed to read object shard", "shard", shard.Name(), "error", err)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ref, ok := parseLooseFilename(shard.Name(), entry.Name())
			if !ok {
				log.Warn("objstore: skipping unrecognised loose object filename", "shard", shard.Name(), "name", entry.Name())
				continue
			}
			if err := yield(ref); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseLooseFilename(shard, name string) (ObjectRef, bool) {
	dot := strings.IndexByte(name, '.')
	if dot < 0 {
		return ObjectRef{}, false
	}
	rest, ext := name[:dot], name[dot+1:]
	kind, ok := kindByExtension[ext]
	if !ok {
		return ObjectRef{}, false
	}
	h, err := hashid.Parse(shard + rest)
	if err != nil {
		return ObjectRef{}, false
	}
	return ObjectRef{Kind: kind, Digest: h, StorageKind: "loose"}, true
}
