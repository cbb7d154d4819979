package repoconfig

import (
	"strconv"
	"strings"

	"github.com/objectrepo/corestore/internal/coreerr"
)

var sizeSuffixes = []struct {
	suffix string
	factor uint64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"G", 1 << 30},
	{"M", 1 << 20},
	{"K", 1 << 10},
}

// ParseSize parses a byte count with an optional KB/MB/GB suffix
// (core.min-free-space-size).
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	for _, suf := range sizeSuffixes {
		if rest, ok := strings.CutSuffix(s, suf.suffix); ok {
			n, err := strconv.ParseUint(strings.TrimSpace(rest), 10, 64)
			if err != nil {
				return 0, coreerr.Wrap(coreerr.InvalidArgument, err, "repoconfig: invalid size %q", s)
			}
			return n * suf.factor, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, coreerr.Wrap(coreerr.InvalidArgument, err, "repoconfig: invalid size %q", s)
	}
	return n, nil
}
