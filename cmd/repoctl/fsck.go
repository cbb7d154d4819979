package main

import (
	"fmt"
	"os"

	"github.com/objectrepo/corestore"
	"github.com/pterm/pterm"
)

func runFsck(repo *corestore.Repo, args []string) int {
	failures, err := repo.Fsck()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	if len(failures) == 0 {
		fmt.Println("fsck: ok")
		return 0
	}

	table := [][]string{{"KIND", "DIGEST", "REASON"}}
	for _, f := range failures {
		table = append(table, []string{f.Kind.String(), f.Digest.Short(), f.Reason})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(table).WithWriter(os.Stderr).Render(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
	}
	fmt.Fprintf(os.Stderr, "fsck: %d corrupt object(s)\n", len(failures))
	return 1
}
