package main

import (
	"fmt"
	"os"

	"github.com/objectrepo/corestore"
)

func runSign(repo *corestore.Repo, args []string) int {
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: repoctl sign <commit> <algorithm> <secret-key-file>")
		return 1
	}
	commitRef, algo, keyPath := args[0], args[1], args[2]

	digest, err := resolveDigest(repo, commitRef)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	secretKey, err := os.ReadFile(keyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	if _, err := repo.Algorithm(algo); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	if err := repo.SignCommit(digest, algo, secretKey); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	fmt.Printf("signed %s with %s\n", digest.Short(), algo)
	return 0
}
