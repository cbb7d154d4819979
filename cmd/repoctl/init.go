package main

import (
	"fmt"
	"os"

	"github.com/objectrepo/corestore"
	"github.com/objectrepo/corestore/internal/objstore"
)

func runInit(args []string, fallbackRoot string) int {
	mode := objstore.ModeBare
	var dir string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--mode":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "error: --mode requires a value")
				return 1
			}
			m, err := objstore.ParseMode(args[i+1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				return 1
			}
			mode = m
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
		dir = fallbackRoot
	}
	if dir == "" {
		fmt.Fprintln(os.Stderr, "usage: repoctl init [--mode <mode>] <dir>")
		return 1
	}

	r, err := corestore.Init(dir, mode, corestore.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	fmt.Printf("Initialized repository in %s (mode %s)\n", r.Root(), r.Mode())
	return 0
}
