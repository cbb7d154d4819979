// Package refstore implements the name-to-commit-digest mapping layer:
// flat refs under refs/heads, remote-scoped refs under refs/remotes/<r>,
// and collection-scoped refs under refs/mirrors/<collection>.
package refstore

import (
	"strings"

	"github.com/objectrepo/corestore/internal/coreerr"
)

// Refspec is a parsed "[remote:]ref-path" reference.
type Refspec struct {
	Remote string
	Path   string
}

// ParseRefspec splits and validates a refspec string per the grammar
//
//	refspec    := [remote ":"] ref-path
//	ref-path   := segment ("/" segment)*
//	segment    := [A-Za-z0-9._-]+        ; not "." or ".."
func ParseRefspec(s string) (Refspec, error) {
	remote, path := "", s
	if idx := strings.Index(s, ":"); idx >= 0 {
		remote, path = s[:idx], s[idx+1:]
	}
	if err := validatePath(path); err != nil {
		return Refspec{}, err
	}
	return Refspec{Remote: remote, Path: path}, nil
}

func validatePath(path string) error {
	if path == "" {
		return coreerr.New(coreerr.InvalidArgument, "refstore: empty ref path")
	}
	if strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return coreerr.New(coreerr.InvalidArgument, "refstore: ref path %q has a leading or trailing slash", path)
	}
	for _, seg := range strings.Split(path, "/") {
		if err := validateSegment(seg); err != nil {
			return err
		}
	}
	return nil
}

func validateSegment(seg string) error {
	if seg == "" {
		return coreerr.New(coreerr.InvalidArgument, "refstore: ref path contains an empty segment")
	}
	if seg == "." || seg == ".." {
		return coreerr.New(coreerr.InvalidArgument, "refstore: ref path segment %q is not allowed", seg)
	}
	for _, r := range seg {
		if r < 0x20 || r == 0x7f {
			return coreerr.New(coreerr.InvalidArgument, "refstore: ref path segment %q contains a control byte", seg)
		}
		if !isSegmentRune(r) {
			return coreerr.New(coreerr.InvalidArgument, "refstore: ref path segment %q contains an invalid character", seg)
		}
	}
	return nil
}

func isSegmentRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-':
		return true
	default:
		return false
	}
}

// ValidateCollectionID validates a reverse-DNS-like collection identifier
// (dotted segments of the same alphabet as a ref segment, at least two
// labels).
func ValidateCollectionID(id string) error {
	labels := strings.Split(id, ".")
	if len(labels) < 2 {
		return coreerr.New(coreerr.InvalidArgument, "refstore: collection id %q must have at least two dotted labels", id)
	}
	for _, label := range labels {
		if err := validateSegment(label); err != nil {
			return coreerr.New(coreerr.InvalidArgument, "refstore: collection id %q: %v", id, err)
		}
	}
	return nil
}
