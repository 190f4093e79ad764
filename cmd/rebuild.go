package cmd

import (
	"context"
	"flag"
	"fmt"
	"sort"

	"github.com/google/subcommands"
)

type rebuildCmd struct{}

func (*rebuildCmd) Name() string     { return "rebuild" }
func (*rebuildCmd) Synopsis() string { return "rebuild the query cache from the event log" }
func (*rebuildCmd) Usage() string {
	return `folio rebuild

  Discards and rebuilds the derived query cache. The event log is the only
  source of truth, so this is always safe.
`
}

func (*rebuildCmd) SetFlags(*flag.FlagSet) {}

func (c *rebuildCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sys, err := openSystem()
	if err != nil {
		return fail(err)
	}
	if err := sys.RebuildCache(); err != nil {
		return fail(err)
	}
	summary, err := sys.Cache().Summary()
	if err != nil {
		return fail(err)
	}
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-15s %s\n", k, summary[k])
	}
	return subcommands.ExitSuccess
}
