package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/mlaroche/foliolog"
)

type noteCmd struct {
	when     string
	security string
	corrects int64
	rationaleFlags
}

func (*noteCmd) Name() string     { return "note" }
func (*noteCmd) Synopsis() string { return "record a free-form note, optionally about a security" }
func (*noteCmd) Usage() string {
	return `folio note [-s <security>] [-corrects <id>] [-t <time>] <text...>

  Records a journal note. With -s the note attaches to a security; with
  -corrects it annotates a prior event without altering it.
`
}

func (c *noteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.when, "t", "", "When the note was written (RFC3339 or YYYY-MM-DD, default now)")
	f.StringVar(&c.security, "s", "", "Security ticker the note is about")
	f.Int64Var(&c.corrects, "corrects", 0, "Id of the event this note corrects")
	c.rationaleFlags.setFlags(f)
}

func (c *noteCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	text := strings.Join(f.Args(), " ")
	if text == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	when, err := parseWhen(c.when)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	var e foliolog.Event
	if c.corrects > 0 {
		e = foliolog.NewCorrection(when, c.corrects, text)
	} else {
		e = foliolog.NewNote(when, c.security, text)
	}
	return record(c.apply(e))
}

type goalCmd struct {
	when string
	rationaleFlags
}

func (*goalCmd) Name() string     { return "goal" }
func (*goalCmd) Synopsis() string { return "set the portfolio goal" }
func (*goalCmd) Usage() string {
	return `folio goal [-t <time>] <text...>

  Sets the portfolio goal. The most recent goal in the history wins.
`
}

func (c *goalCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.when, "t", "", "When the goal was set (RFC3339 or YYYY-MM-DD, default now)")
	c.rationaleFlags.setFlags(f)
}

func (c *goalCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	text := strings.Join(f.Args(), " ")
	if text == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	when, err := parseWhen(c.when)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	return record(c.apply(foliolog.NewGoal(when, text)))
}

type strategyCmd struct {
	when string
	rationaleFlags
}

func (*strategyCmd) Name() string     { return "strategy" }
func (*strategyCmd) Synopsis() string { return "set the portfolio strategy" }
func (*strategyCmd) Usage() string {
	return `folio strategy [-t <time>] <text...>

  Sets the portfolio strategy. The most recent strategy in the history wins.
`
}

func (c *strategyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.when, "t", "", "When the strategy was set (RFC3339 or YYYY-MM-DD, default now)")
	c.rationaleFlags.setFlags(f)
}

func (c *strategyCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	text := strings.Join(f.Args(), " ")
	if text == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	when, err := parseWhen(c.when)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	return record(c.apply(foliolog.NewStrategy(when, text)))
}
