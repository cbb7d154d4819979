package repofinder

import (
	"sort"

	"github.com/objectrepo/corestore/internal/hashid"
)

// RemoteConfig is the minimal remote identity a finder result carries:
// enough to address and rank it without pulling in the full repo config
// parser.
type RemoteConfig struct {
	Name    string
	URL     string
	Keyring string
}

// CollectionRef identifies one requested (collection, ref) pair.
type CollectionRef struct {
	Collection string
	Ref        string
}

// Result is one finder's answer for a set of requested refs, per §4.7.
type Result struct {
	Remote        RemoteConfig
	FinderVariant string
	Priority      int
	RefToDigest   map[CollectionRef]*hashid.Hash
	SummaryMtime  int64
}

// nonNullCount returns how many entries in RefToDigest resolved to an
// actual digest (as opposed to a confirmed absence).
func (r Result) nonNullCount() int {
	n := 0
	for _, d := range r.RefToDigest {
		if d != nil {
			n++
		}
	}
	return n
}

// SortResults orders results per §4.7's strict total ranking: lower
// priority first, then (when both have a known summary_mtime) newer first,
// then more non-null ref_to_digest entries first, then remote name
// lexicographically.
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.SummaryMtime != 0 && b.SummaryMtime != 0 && a.SummaryMtime != b.SummaryMtime {
			return a.SummaryMtime > b.SummaryMtime
		}
		if ac, bc := a.nonNullCount(), b.nonNullCount(); ac != bc {
			return ac > bc
		}
		return a.Remote.Name < b.Remote.Name
	})
}
