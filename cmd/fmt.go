package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

type fmtCmd struct{}

func (*fmtCmd) Name() string     { return "fmt" }
func (*fmtCmd) Synopsis() string { return "rewrite the event log in canonical form" }
func (*fmtCmd) Usage() string {
	return `folio fmt

  Rewrites the event log sorted by (timestamp, id) with stable JSON key
  order on each line. The history itself is unchanged.
`
}

func (*fmtCmd) SetFlags(*flag.FlagSet) {}

func (c *fmtCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sys, err := openSystem()
	if err != nil {
		return fail(err)
	}
	if err := sys.Store().Canonicalize(); err != nil {
		return fail(err)
	}
	fmt.Println("Formatted event log.")
	return subcommands.ExitSuccess
}
