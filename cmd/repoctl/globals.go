package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/objectrepo/corestore/internal/termcolor"
)

// globalFlags holds the flags accepted before a subcommand name.
type globalFlags struct {
	colorMode termcolor.ColorMode
	repoRoot  string
}

// parseGlobalFlags splits leading --color/--no-color/--repo flags off
// args, returning the remainder for App.Run to dispatch.
func parseGlobalFlags(args []string) (globalFlags, []string) {
	gf := globalFlags{colorMode: termcolor.ColorAuto}
	var remaining []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--no-color" {
			gf.colorMode = termcolor.ColorNever
			continue
		}

		if arg == "--color" && i+1 < len(args) {
			mode, err := termcolor.ParseColorMode(args[i+1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "repoctl: %v\n", err)
				os.Exit(1)
			}
			gf.colorMode = mode
			i++
			continue
		}

		if val, ok := strings.CutPrefix(arg, "--color="); ok {
			mode, err := termcolor.ParseColorMode(val)
			if err != nil {
				fmt.Fprintf(os.Stderr, "repoctl: %v\n", err)
				os.Exit(1)
			}
			gf.colorMode = mode
			continue
		}

		if arg == "--repo" && i+1 < len(args) {
			gf.repoRoot = args[i+1]
			i++
			continue
		}

		if val, ok := strings.CutPrefix(arg, "--repo="); ok {
			gf.repoRoot = val
			continue
		}

		remaining = append(remaining, arg)
	}

	return gf, remaining
}
