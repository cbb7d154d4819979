package cli

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/objectrepo/corestore/internal/termcolor"
)

func TestFormatAppHelp(t *testing.T) {
	app := NewApp("repoctl", "2.0.0")
	var buf bytes.Buffer
	app.Stderr = &buf

	app.Register(&Command{Name: "commit", Summary: "Commit a directory tree", Run: func([]string) int { return 0 }})
	app.Register(&Command{Name: "fsck", Summary: "Check repository integrity", Run: func([]string) int { return 0 }})

	cw := termcolor.NewWriter(os.Stdout, termcolor.ColorNever)
	FormatAppHelp(app, cw)

	out := buf.String()

	checks := []string{
		"repoctl version 2.0.0",
		"Usage:",
		"Commands:",
		"commit",
		"Commit a directory tree",
		"fsck",
		"Check repository integrity",
		"Global flags:",
		"--color",
		"--no-color",
		"--version",
	}
	for _, s := range checks {
		if !strings.Contains(out, s) {
			t.Errorf("FormatAppHelp output missing %q", s)
		}
	}
}

func TestFormatCommandHelp(t *testing.T) {
	app := NewApp("repoctl", "2.0.0")
	var buf bytes.Buffer
	app.Stderr = &buf

	cmd := &Command{
		Name:     "commit",
		Summary:  "Commit a directory tree",
		Usage:    "repoctl commit [--branch <ref>] <dir>",
		Examples: []string{"repoctl commit ./src", "repoctl commit --branch stable ./build"},
		Run:      func([]string) int { return 0 },
	}

	cw := termcolor.NewWriter(os.Stdout, termcolor.ColorNever)
	FormatCommandHelp(app, cmd, cw)

	out := buf.String()

	checks := []string{
		"commit",
		"Commit a directory tree",
		"Usage:",
		"repoctl commit [--branch <ref>] <dir>",
		"Examples:",
		"repoctl commit --branch stable ./build",
	}
	for _, s := range checks {
		if !strings.Contains(out, s) {
			t.Errorf("FormatCommandHelp output missing %q", s)
		}
	}
}
