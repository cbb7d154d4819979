package main

import (
	"fmt"
	"os"

	"github.com/objectrepo/corestore"
)

func runCommit(repo *corestore.Repo, args []string) int {
	opts := corestore.CommitOptions{Branch: "main"}
	var dir string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--branch":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "error: --branch requires a value")
				return 1
			}
			opts.Branch = args[i+1]
			i++
		case "--subject":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "error: --subject requires a value")
				return 1
			}
			opts.Subject = args[i+1]
			i++
		case "--body":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "error: --body requires a value")
				return 1
			}
			opts.Body = args[i+1]
			i++
		default:
			if dir != "" {
				fmt.Fprintf(os.Stderr, "error: unexpected argument %q\n", args[i])
				return 1
			}
			dir = args[i]
		}
	}

	if dir == "" {
		fmt.Fprintln(os.Stderr, "usage: repoctl commit [--branch <ref>] [--subject <text>] [--body <text>] <dir>")
		return 1
	}
	opts.SourceDir = dir

	digest, stats, err := repo.Commit(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	fmt.Println(digest)
	fmt.Fprintf(os.Stderr, "metadata: %d/%d written, content: %d/%d written (%d bytes)\n",
		stats.MetadataObjectsWritten, stats.MetadataObjectsTotal,
		stats.ContentObjectsWritten, stats.ContentObjectsTotal, stats.ContentBytesWritten)
	return 0
}
