package txn

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/objectrepo/corestore/internal/coreerr"
)

// DefaultTmpExpiry is the default age (§4.4: "tmp-expiry-seconds, default:
// one day") after which a stray tmp/ entry is eligible for removal.
const DefaultTmpExpiry = 24 * time.Hour

// PruneTmp sweeps the repository's tmp/ directory: staging directories not
// belonging to currentBootID are removed outright (a prior boot's
// transaction can never resume), and any other entry older than expiry is
// removed by age. The literal entry "cache" is always preserved.
func PruneTmp(repoRoot, currentBootID string, expiry time.Duration) error {
	tmpDir := filepath.Join(repoRoot, "tmp")
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return coreerr.Wrap(coreerr.Io, err, "txn: read tmp directory")
	}

	now := time.Now()
	for _, ent := range entries {
		name := ent.Name()
		if name == "cache" {
			continue
		}
		full := filepath.Join(tmpDir, name)

		if strings.HasPrefix(name, "staging-") && !strings.HasPrefix(name, "staging-"+currentBootID) {
			if err := os.RemoveAll(full); err != nil {
				return coreerr.Wrap(coreerr.Io, err, "txn: remove stale staging directory %s", name)
			}
			continue
		}
		if strings.HasPrefix(name, ".staging-lock-") && !strings.HasSuffix(name, currentBootID) {
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				return coreerr.Wrap(coreerr.Io, err, "txn: remove stale staging lock %s", name)
			}
			continue
		}

		info, err := ent.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > expiry {
			if err := os.RemoveAll(full); err != nil {
				return coreerr.Wrap(coreerr.Io, err, "txn: remove expired tmp entry %s", name)
			}
		}
	}
	return nil
}
