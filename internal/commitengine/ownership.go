package commitengine

import (
	"io/fs"
	"syscall"
)

// realOwnership extracts (uid, gid) from a FileInfo's platform-specific
// Sys() value, when available.
func realOwnership(info fs.FileInfo) (Ownership, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return Ownership{}, false
	}
	return Ownership{UID: st.Uid, GID: st.Gid}, true
}
