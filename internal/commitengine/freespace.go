package commitengine

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/objectrepo/corestore/internal/coreerr"
)

// FreeSpacePolicy enforces §4.3's reserved-block gate for the lifetime of a
// single transaction: one statvfs at prepare() time, then a per-object
// block budget decremented under a mutex as objects are staged.
type FreeSpacePolicy struct {
	minFreeSpacePercent int
	minFreeSpaceSize    uint64

	mu              sync.Mutex
	blockSize       int64
	remainingBlocks uint64
	active          bool
}

// NewFreeSpacePolicy validates the modifier-level configuration. At most one
// of percent/sizeBytes may be nonzero (both zero means no reserved minimum);
// percent must be 0-99.
func NewFreeSpacePolicy(percent int, sizeBytes uint64) (*FreeSpacePolicy, error) {
	if percent != 0 && sizeBytes != 0 {
		return nil, coreerr.New(coreerr.InvalidArgument, "commitengine: min-free-space-percent and min-free-space-size cannot both be set")
	}
	if percent < 0 || percent > 99 {
		return nil, coreerr.New(coreerr.InvalidArgument, "commitengine: min-free-space-percent %d out of range 0-99", percent)
	}
	return &FreeSpacePolicy{minFreeSpacePercent: percent, minFreeSpaceSize: sizeBytes}, nil
}

// CheckAtStart runs statvfs against path (the repository root) and computes
// the reserved-block gate; it fails immediately if available space is
// already at or below the reserved amount.
func (p *FreeSpacePolicy) CheckAtStart(path string) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return coreerr.Wrap(coreerr.Io, err, "commitengine: statfs %s", path)
	}

	blockSize := int64(stat.Bsize)
	if blockSize <= 0 {
		blockSize = 4096
	}
	totalBlocks := stat.Blocks
	availBlocks := stat.Bavail

	var reserved uint64
	switch {
	case p.minFreeSpacePercent != 0:
		reserved = totalBlocks * uint64(p.minFreeSpacePercent) / 100
	case p.minFreeSpaceSize != 0:
		reserved = (p.minFreeSpaceSize + uint64(blockSize) - 1) / uint64(blockSize)
	}

	if reserved != 0 && availBlocks <= reserved {
		return coreerr.New(coreerr.PolicyDenied, "commitengine: available space (%d blocks) at or below reserved minimum (%d blocks)", availBlocks, reserved)
	}

	p.mu.Lock()
	p.blockSize = blockSize
	p.remainingBlocks = availBlocks - reserved
	p.active = true
	p.mu.Unlock()
	return nil
}

// Reserve atomically accounts for an object of size bytes, failing if doing
// so would exceed the remaining budget established by CheckAtStart.
func (p *FreeSpacePolicy) Reserve(size int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		// CheckAtStart was never run for this transaction; nothing to
		// enforce against.
		return nil
	}
	blockSize := p.blockSize
	if blockSize <= 0 {
		blockSize = 4096
	}
	need := uint64(size+blockSize-1) / uint64(blockSize)
	if need > p.remainingBlocks {
		return coreerr.New(coreerr.PolicyDenied, "commitengine: writing %d bytes would exceed the remaining free-space budget", size)
	}
	p.remainingBlocks -= need
	return nil
}
