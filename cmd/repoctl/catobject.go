package main

import (
	"fmt"
	"os"

	"github.com/objectrepo/corestore"
	"github.com/objectrepo/corestore/internal/canon"
	"github.com/objectrepo/corestore/internal/hashid"
)

func runCatObject(repo *corestore.Repo, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: repoctl cat-object <digest-or-ref>")
		return 1
	}

	digest, err := resolveDigest(repo, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	kind, ok := repo.DetectKind(digest)
	if !ok {
		fmt.Fprintf(os.Stderr, "fatal: no object found for %s\n", digest)
		return 128
	}

	switch kind {
	case hashid.KindCommit:
		return prettyPrintCommit(repo, digest)
	case hashid.KindDirTree:
		return prettyPrintDirTree(repo, digest)
	case hashid.KindDirMeta:
		return prettyPrintDirMeta(repo, digest)
	case hashid.KindCommitMeta:
		return prettyPrintCommitMeta(repo, digest)
	case hashid.KindTombstoneCommit:
		fmt.Println("tombstone-commit")
		return 0
	case hashid.KindFileContent:
		data, err := repo.ReadObject(kind, digest)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 128
		}
		_, _ = os.Stdout.Write(data)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "fatal: unknown object kind %s\n", kind)
		return 128
	}
}

// resolveDigest accepts either a bare hex digest or a refspec.
func resolveDigest(repo *corestore.Repo, s string) (hashid.Hash, error) {
	if digest, err := hashid.Parse(s); err == nil {
		return digest, nil
	}
	return repo.ResolveRef(s)
}

func prettyPrintCommit(repo *corestore.Repo, digest hashid.Hash) int {
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

	fmt.Printf("tree %s\n", rec.RootTreeDigest)
	fmt.Printf("tree-meta %s\n", rec.RootMetaDigest)
	if !rec.Parent.IsZero() {
		fmt.Printf("parent %s\n", rec.Parent)
	}
	for _, ref := range rec.RelatedRefs {
		fmt.Printf("related-ref %s\n", ref)
	}
	fmt.Printf("timestamp %d\n", rec.Timestamp)
	printVariantDict(rec.Metadata)
	fmt.Println()
	fmt.Println(rec.Subject)
	if rec.Body != "" {
		fmt.Println()
		fmt.Println(rec.Body)
	}

	if meta, err := repo.CommitMeta(digest); err == nil && len(meta) > 0 {
		fmt.Println()
		fmt.Println("detached metadata:")
		printVariantDict(meta)
	}
	return 0
}

func prettyPrintDirTree(repo *corestore.Repo, digest hashid.Hash) int {
	data, err := repo.ReadObject(hashid.KindDirTree, digest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	var rec canon.DirTreeRecord
	if err := rec.UnmarshalCanonical(data); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	for _, d := range rec.Dirs {
		fmt.Printf("dir  %s %s\t%s\n", d.TreeDigest, d.MetaDigest, d.Name)
	}
	for _, f := range rec.Files {
		fmt.Printf("file %s\t%s\n", f.Digest, f.Name)
	}
	return 0
}

func prettyPrintDirMeta(repo *corestore.Repo, digest hashid.Hash) int {
	data, err := repo.ReadObject(hashid.KindDirMeta, digest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	var rec canon.DirMetaRecord
	if err := rec.UnmarshalCanonical(data); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}

	fmt.Printf("uid %d\n", rec.UID)
	fmt.Printf("gid %d\n", rec.GID)
	fmt.Printf("mode %o\n", rec.Mode)
	for _, x := range rec.Xattrs {
		fmt.Printf("xattr %s %q\n", x.Name, x.Value)
	}
	return 0
}

func prettyPrintCommitMeta(repo *corestore.Repo, digest hashid.Hash) int {
	meta, err := repo.CommitMeta(digest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	printVariantDict(meta)
	return 0
}

func printVariantDict(dict map[string]canon.Variant) {
	for key, v := range dict {
		fmt.Printf("%s: %s\n", key, formatVariant(v))
	}
}

func formatVariant(v canon.Variant) string {
	if s, ok := v.AsString(); ok {
		return s
	}
	if b, ok := v.AsBytes(); ok {
		return fmt.Sprintf("<%d bytes>", len(b))
	}
	if i, ok := v.AsInt64(); ok {
		return fmt.Sprintf("%d", i)
	}
	if arr, ok := v.AsArray(); ok {
		out := "["
		for i, elem := range arr {
			if i > 0 {
				out += ", "
			}
			out += formatVariant(elem)
		}
		return out + "]"
	}
	if dict, ok := v.AsDict(); ok {
		out := "{"
		first := true
		for k, elem := range dict {
			if !first {
				out += ", "
			}
			first = false
			out += k + ": " + formatVariant(elem)
		}
		return out + "}"
	}
	return "<unknown>"
}
