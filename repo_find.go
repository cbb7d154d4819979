package corestore

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/objectrepo/corestore/internal/repofinder"
)

// procMountLister implements repofinder.MountLister by reading
// /proc/self/mounts, the same source the kernel keeps synchronised with
// the running mount namespace. No third-party library in the example
// corpus parses procfs mount tables, so this one function is stdlib.
type procMountLister struct{}

func (procMountLister) ListMounts() ([]string, error) {
	f, err := os.Open("/proc/self/mounts")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var mounts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		mounts = append(mounts, fields[1])
	}
	return mounts, scanner.Err()
}

// FindOptions configures Find. ConfigRemotes/OverrideRemotes are only
// probed when Reader is non-nil: no network summary-fetch transport ships
// with this core (see the module's Non-goals), so those finder variants
// stay inert until a caller injects a concrete repofinder.SummaryReader.
type FindOptions struct {
	Reader          repofinder.SummaryReader
	ConfigRemotes   []repofinder.RemoteConfig
	OverrideRemotes []repofinder.RemoteConfig
}

// Find resolves requests across every configured finder variant (mount,
// and config/override when a SummaryReader is supplied), returning results
// in §4.7's strict total order.
func (r *Repo) Find(ctx context.Context, requests []repofinder.CollectionRef, opts FindOptions) ([]repofinder.Result, error) {
	finders := []repofinder.Finder{
		&repofinder.MountFinder{Lister: procMountLister{}, ParentRoot: r.root},
	}
	if opts.Reader != nil {
		if len(opts.ConfigRemotes) > 0 {
			finders = append(finders, &repofinder.ConfigFinder{Remotes: opts.ConfigRemotes, Reader: opts.Reader})
		}
		if len(opts.OverrideRemotes) > 0 {
			finders = append(finders, &repofinder.OverrideFinder{Remotes: opts.OverrideRemotes, Reader: opts.Reader})
		}
	}

	agg := repofinder.NewAggregator(finders, r.logger)
	results, err := agg.ResolveAsync(ctx, requests)
	if err != nil {
		return nil, err
	}
	repofinder.SortResults(results)
	return results, nil
}
