package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/mlaroche/foliolog"
)

type editCmd struct {
	id      int64
	kind    string
	payload string
	impact  string
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "replace an event's payload, keeping an audit trace" }
func (*editCmd) Usage() string {
	return `folio edit -id <id> -kind <kind> -payload <json> [-impact <amount>]

  Replaces the payload of an existing event. The event keeps its id and
  timestamp; the prior version is preserved in the audit log.

Example:
  $ folio edit -id 42 -kind trade -payload '{"security":"NVDA","side":"buy","quantity":10,"amount":{"currency":"USD","amount":1800}}' -impact -1800
`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Id of the event to edit")
	f.StringVar(&c.kind, "kind", "", "Kind of the replacement payload")
	f.StringVar(&c.payload, "payload", "", "Replacement payload as JSON")
	f.StringVar(&c.impact, "impact", "", "Signed cash impact of the corrected event")
}

func (c *editCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id <= 0 || c.kind == "" || c.payload == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	payload, err := foliolog.DecodePayload(foliolog.Kind(c.kind), []byte(c.payload))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	cfg, err := foliolog.LoadConfig()
	if err != nil {
		return fail(err)
	}
	var impact foliolog.Money
	if c.impact != "" {
		impact, err = parseMoney(c.impact, cfg.Currency)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
	}
	sys, err := openSystem()
	if err != nil {
		return fail(err)
	}
	ok, err := sys.UpdateEvent(c.id, payload, impact)
	if err != nil {
		return fail(err)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "no event %d\n", c.id)
		return subcommands.ExitFailure
	}
	fmt.Printf("Updated event %d\n", c.id)
	return subcommands.ExitSuccess
}

type deleteCmd struct {
	id int64
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "remove an event, keeping an audit trace" }
func (*deleteCmd) Usage() string {
	return `folio delete -id <id>

  Removes an event from the history. The prior version is preserved in the
  audit log and the id is never reused.
`
}

func (c *deleteCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Id of the event to delete")
}

func (c *deleteCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id <= 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	sys, err := openSystem()
	if err != nil {
		return fail(err)
	}
	ok, err := sys.DeleteEvent(c.id)
	if err != nil {
		return fail(err)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "no event %d\n", c.id)
		return subcommands.ExitFailure
	}
	fmt.Printf("Deleted event %d\n", c.id)
	return subcommands.ExitSuccess
}

type auditCmd struct{}

func (*auditCmd) Name() string     { return "audit" }
func (*auditCmd) Synopsis() string { return "list the prior versions of edited and deleted events" }
func (*auditCmd) Usage() string {
	return `folio audit

  Lists the audit log: one line per update or delete, with the event as it
  was before the operation.
`
}

func (*auditCmd) SetFlags(*flag.FlagSet) {}

func (c *auditCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sys, err := openSystem()
	if err != nil {
		return fail(err)
	}
	records, err := sys.Store().Audit()
	if err != nil {
		return fail(err)
	}
	for _, r := range records {
		fmt.Printf("%s  %-6s event %d (%s) %s\n",
			r.At.Format("2006-01-02 15:04"), r.Op, r.Prior.ID, r.Prior.Kind, describeEvent(r.Prior))
	}
	return subcommands.ExitSuccess
}
