package main

import (
	"fmt"
	"os"

	"github.com/objectrepo/corestore"
)

func runPrune(repo *corestore.Repo, args []string) int {
	opts := corestore.PruneOptions{}
	for _, a := range args {
		if a == "--dry-run" {
			opts.DryRun = true
			continue
		}
		fmt.Fprintf(os.Stderr, "error: unexpected argument %q\n", a)
		return 1
	}

	total, pruned, freed, err := repo.Prune(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	verb := "pruned"
	if opts.DryRun {
		verb = "would prune"
	}
	fmt.Printf("%s %d/%d reclaimable object(s), %d bytes\n", verb, pruned, total, freed)
	return 0
}
