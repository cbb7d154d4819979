package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/objectrepo/corestore"
	"github.com/pterm/pterm"
)

func runLsRefs(repo *corestore.Repo, args []string) int {
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}

	flat, err := repo.ListRefs(prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	names := make([]string, 0, len(flat))
	for name := range flat {
		names = append(names, name)
	}
	sort.Strings(names)

	collections, err := repo.ListCollectionRefs(prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	type row struct {
		label  string
		digest string
	}
	rows := make([]row, 0, len(collections))
	for ref, digest := range collections {
		rows = append(rows, row{label: ref.Collection + "/" + ref.Name, digest: digest.String()})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].label < rows[j].label })

	table := [][]string{{"REF", "DIGEST"}}
	for _, name := range names {
		table = append(table, []string{name, flat[name].String()})
	}
	for _, r := range rows {
		table = append(table, []string{r.label, r.digest})
	}
	if len(table) == 1 {
		fmt.Println("no refs")
		return 0
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(table).Render(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 128
	}
	return 0
}
