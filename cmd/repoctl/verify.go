package main

import (
	"fmt"
	"os"

	"github.com/objectrepo/corestore"
	"github.com/objectrepo/corestore/internal/sign"
)

func runVerify(repo *corestore.Repo, args []string) int {
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: repoctl verify <commit> <algorithm> <trusted-key-file>")
		return 1
	}
	commitRef, algo, keyPath := args[0], args[1], args[2]

	digest, err := resolveDigest(repo, commitRef)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	trustedKey, err := os.ReadFile(keyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	if _, err := repo.Algorithm(algo); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	verifiers := []sign.VerifierConfig{{Algorithm: algo, Keys: sign.KeySet{Trusted: [][]byte{trustedKey}}}}
	result, err := repo.VerifyCommit(digest, verifiers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	if !result.AnyValid() {
		fmt.Printf("%s: no valid signature under %s\n", digest.Short(), algo)
		return 1
	}
	fmt.Printf("%s: valid signature under %s\n", digest.Short(), algo)
	return 0
}
