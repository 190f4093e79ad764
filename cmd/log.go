package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/mlaroche/foliolog"
)

type logCmd struct {
	kind   string
	ticker string
	from   string
	until  string
	path   string
	id     int64
}

func (*logCmd) Name() string     { return "log" }
func (*logCmd) Synopsis() string { return "list events from the history" }
func (*logCmd) Usage() string {
	return `folio log [-kind <kind>] [-ticker <ticker>] [-from <time>] [-until <time>] [-path <jsonpath>] [-id <id>]

  Lists events in replay order, filtered. The -path flag matches a JSONPath
  expression against each event payload, e.g. '$.side' or '$.prices.NVDA'.
`
}

func (c *logCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "kind", "", "Only events of this kind")
	f.StringVar(&c.ticker, "ticker", "", "Only events touching this security")
	f.StringVar(&c.from, "from", "", "Only events at or after this time")
	f.StringVar(&c.until, "until", "", "Only events at or before this time")
	f.StringVar(&c.path, "path", "", "JSONPath expression the payload must match")
	f.Int64Var(&c.id, "id", 0, "Only the event with this id")
}

func (c *logCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter := foliolog.Filter{Ticker: c.ticker, Path: c.path}
	if c.kind != "" {
		filter.Kinds = []foliolog.Kind{foliolog.Kind(c.kind)}
	}
	if c.id > 0 {
		filter.IDs = []int64{c.id}
	}
	if c.from != "" {
		t, err := parseWhen(c.from)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
		filter.From = t
	}
	if c.until != "" {
		t, err := parseWhen(c.until)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
		filter.Until = t
	}

	sys, err := openSystem()
	if err != nil {
		return fail(err)
	}
	events, err := sys.ReadEvents(filter)
	if err != nil {
		return fail(err)
	}
	for _, e := range events {
		fmt.Printf("%6d  %s  %-13s %s\n", e.ID, e.Timestamp.Format("2006-01-02 15:04"), e.Kind, describeEvent(e))
	}
	return subcommands.ExitSuccess
}

// describeEvent gives a one-line human summary of the event payload.
func describeEvent(e foliolog.Event) string {
	s := ""
	if t := e.Ticker(); t != "" {
		s = t + " "
	}
	if !e.CashImpact.IsZero() {
		s += "cash " + e.CashImpact.SignedString()
	}
	if e.Rationale != nil {
		s += fmt.Sprintf("  (%s)", e.Rationale.Primary)
	}
	return s
}
