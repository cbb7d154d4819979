package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/objectrepo/corestore"
	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/hashid"
	"github.com/objectrepo/corestore/internal/termcolor"
	"github.com/yuin/goldmark"
)

// runShow prints a commit's subject as a bold heading and its body converted
// by goldmark's default renderer, so the body is printed as the HTML markup
// goldmark produces, not as styled terminal text.
func runShow(repo *corestore.Repo, args []string, cw *termcolor.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: repoctl show <commit-or-ref>")
		return 1
	}

	digest, err := resolveDigest(repo, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	if kind, ok := repo.DetectKind(digest); !ok || kind != hashid.KindCommit {
		fmt.Fprintf(os.Stderr, "fatal: %s is not a commit\n", digest)
		return 128
	}

	data, err := repo.ReadObject(hashid.KindCommit, digest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	var rec canon.CommitRecord
	if err := rec.UnmarshalCanonical(data); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	fmt.Fprintf(cw, "%s %s\n", cw.BoldCyan("commit"), digest)
	fmt.Fprintf(cw, "%s\n\n", cw.Bold(rec.Subject))

	if rec.Body != "" {
		var rendered bytes.Buffer
		if err := goldmark.Convert([]byte(rec.Body), &rendered); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		fmt.Fprintln(cw, rendered.String())
	}
	return 0
}
