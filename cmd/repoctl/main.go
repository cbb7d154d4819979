// Command repoctl is a minimal debug/ops entrypoint over a corestore
// repository: init, commit, inspect refs and objects, sign/verify, find
// peer copies, and reclaim unreachable objects.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/objectrepo/corestore"
	"github.com/objectrepo/corestore/internal/cli"
	"github.com/objectrepo/corestore/internal/termcolor"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	gf, args := parseGlobalFlags(os.Args[1:])

	for _, a := range args {
		if a == "--version" {
			printVersion()
			os.Exit(0)
		}
	}

	cw := termcolor.NewWriter(os.Stdout, gf.colorMode)

	app := cli.NewApp("repoctl", version)
	app.Stderr = os.Stderr

	// repo is populated after dispatch determines that the matched
	// command needs one (NeedsRepo); every Run closure captures the
	// pointer variable rather than a value.
	var repo *corestore.Repo

	app.Register(&cli.Command{
		Name:    "init",
		Summary: "Create a new repository",
		Usage:   "repoctl init [--mode <archive|bare|bare-user|bare-user-only>] <dir>",
		Examples: []string{
			"repoctl init ./repo",
			"repoctl init --mode bare-user ./repo",
		},
		Run: func(args []string) int { return runInit(args, gf.repoRoot) },
	})

	app.Register(&cli.Command{
		Name:      "commit",
		Summary:   "Commit a directory tree and update a ref",
		Usage:     "repoctl commit [--branch <ref>] [--subject <text>] <dir>",
		Examples:  []string{"repoctl commit ./src", "repoctl commit --branch stable --subject 'release' ./build"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runCommit(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "ls-refs",
		Summary:   "List refs and the commit digest each points at",
		Usage:     "repoctl ls-refs [prefix]",
		NeedsRepo: true,
		Run:       func(args []string) int { return runLsRefs(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "cat-object",
		Summary:   "Show a stored object's record",
		Usage:     "repoctl cat-object <digest-or-ref>",
		Examples:  []string{"repoctl cat-object 9f86d0818...", "repoctl cat-object main"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runCatObject(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "show",
		Summary:   "Render a commit's subject and body as a document",
		Usage:     "repoctl show <commit-or-ref>",
		NeedsRepo: true,
		Run:       func(args []string) int { return runShow(repo, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "sign",
		Summary:   "Sign a commit",
		Usage:     "repoctl sign <commit> <algorithm> <secret-key-file>",
		NeedsRepo: true,
		Run:       func(args []string) int { return runSign(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "verify",
		Summary:   "Verify a commit's signatures",
		Usage:     "repoctl verify <commit> <algorithm> <trusted-key-file>",
		NeedsRepo: true,
		Run:       func(args []string) int { return runVerify(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "find",
		Summary:   "Locate copies of a ref across mounted filesystems",
		Usage:     "repoctl find <collection> <ref>",
		NeedsRepo: true,
		Run:       func(args []string) int { return runFind(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "fsck",
		Summary:   "Verify every stored object's digest and record shape",
		Usage:     "repoctl fsck",
		NeedsRepo: true,
		Run:       func(args []string) int { return runFsck(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "prune",
		Summary:   "Delete objects unreachable from any ref",
		Usage:     "repoctl prune [--dry-run]",
		NeedsRepo: true,
		Run:       func(args []string) int { return runPrune(repo, args) },
	})

	app.Register(&cli.Command{
		Name:    "version",
		Summary: "Show version information",
		Usage:   "repoctl version",
		Run:     func([]string) int { printVersion(); return 0 },
	})

	if len(args) > 0 {
		cmd := app.Lookup(args[0])
		if cmd != nil && cmd.NeedsRepo {
			root := gf.repoRoot
			if root == "" {
				root = "."
			}
			var err error
			repo, err = corestore.Open(root, corestore.Options{})
			if err != nil {
				fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
				os.Exit(128)
			}
		}
	}

	os.Exit(app.Run(args, cw))
}

func printVersion() {
	fmt.Printf("repoctl %s\n", version)
	fmt.Printf("  commit:     %s\n", commit)
	fmt.Printf("  built:      %s\n", buildDate)
	fmt.Printf("  go version: %s\n", runtime.Version())
	fmt.Printf("  platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
