package main

import (
	"testing"

	"github.com/objectrepo/corestore/internal/termcolor"
)

func TestParseGlobalFlagsDefaults(t *testing.T) {
	gf, rest := parseGlobalFlags([]string{"commit", "./src"})
	if gf.colorMode != termcolor.ColorAuto {
		t.Fatalf("expected ColorAuto by default, got %v", gf.colorMode)
	}
	if gf.repoRoot != "" {
		t.Fatalf("expected empty repoRoot by default, got %q", gf.repoRoot)
	}
	if len(rest) != 2 || rest[0] != "commit" || rest[1] != "./src" {
		t.Fatalf("expected remaining args unchanged, got %v", rest)
	}
}

func TestParseGlobalFlagsNoColor(t *testing.T) {
	gf, rest := parseGlobalFlags([]string{"--no-color", "fsck"})
	if gf.colorMode != termcolor.ColorNever {
		t.Fatalf("expected ColorNever, got %v", gf.colorMode)
	}
	if len(rest) != 1 || rest[0] != "fsck" {
		t.Fatalf("expected [\"fsck\"], got %v", rest)
	}
}

func TestParseGlobalFlagsColorEquals(t *testing.T) {
	gf, rest := parseGlobalFlags([]string{"--color=always", "ls-refs"})
	if gf.colorMode != termcolor.ColorAlways {
		t.Fatalf("expected ColorAlways, got %v", gf.colorMode)
	}
	if len(rest) != 1 || rest[0] != "ls-refs" {
		t.Fatalf("expected [\"ls-refs\"], got %v", rest)
	}
}

func TestParseGlobalFlagsRepoSpaceAndEquals(t *testing.T) {
	gf, rest := parseGlobalFlags([]string{"--repo", "/tmp/repo", "ls-refs"})
	if gf.repoRoot != "/tmp/repo" {
		t.Fatalf("expected /tmp/repo, got %q", gf.repoRoot)
	}
	if len(rest) != 1 || rest[0] != "ls-refs" {
		t.Fatalf("expected [\"ls-refs\"], got %v", rest)
	}

	gf2, rest2 := parseGlobalFlags([]string{"--repo=/tmp/other", "fsck"})
	if gf2.repoRoot != "/tmp/other" {
		t.Fatalf("expected /tmp/other, got %q", gf2.repoRoot)
	}
	if len(rest2) != 1 || rest2[0] != "fsck" {
		t.Fatalf("expected [\"fsck\"], got %v", rest2)
	}
}
