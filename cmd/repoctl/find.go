package main

import (
	"context"
	"fmt"
	"os"

	"github.com/objectrepo/corestore"
	"github.com/objectrepo/corestore/internal/repofinder"
)

func runFind(repo *corestore.Repo, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: repoctl find <collection> <ref>")
		return 1
	}
	want := repofinder.CollectionRef{Collection: args[0], Ref: args[1]}

	results, err := repo.Find(context.Background(), []repofinder.CollectionRef{want}, corestore.FindOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	if len(results) == 0 {
		fmt.Println("no copies found")
		return 0
	}
	for _, result := range results {
		digest := result.RefToDigest[want]
		switch {
		case digest == nil:
			fmt.Printf("%-10s %-20s (not present)\n", result.FinderVariant, result.Remote.Name)
		default:
			fmt.Printf("%-10s %-20s %s\n", result.FinderVariant, result.Remote.Name, digest)
		}
	}
	return 0
}
