package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/subcommands"
	"github.com/mlaroche/foliolog"
	"github.com/shopspring/decimal"
)

type whatifCmd struct {
	action string
	name   string
	id     string
	asOf   string

	remove string
	scale  string
	factor string
	inject string

	base string
}

func (*whatifCmd) Name() string     { return "whatif" }
func (*whatifCmd) Synopsis() string { return "create and compare counterfactual histories" }
func (*whatifCmd) Usage() string {
	return `folio whatif -action create -name <name> [-remove <ticker>] [-scale <ticker> -factor <f>] [-inject <event json>] [-asof <time>]
folio whatif -action list
folio whatif -action show -id <id>
folio whatif -action compare -id <id> [-base <id>]
folio whatif -action delete -id <id>

  Branches a copy of the history, edits it, and compares the outcome
  against reality. The real log is never touched. Modifications compose:
  pass several to apply them in order.
`
}

func (c *whatifCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.action, "action", "", "create, list, show, compare, or delete")
	f.StringVar(&c.name, "name", "", "Name of the alternate history")
	f.StringVar(&c.id, "id", "", "Id of the alternate history")
	f.StringVar(&c.asOf, "asof", "", "Horizon of the comparison (default now)")
	f.StringVar(&c.remove, "remove", "", "Remove every event touching this ticker")
	f.StringVar(&c.scale, "scale", "", "Scale this ticker's position")
	f.StringVar(&c.factor, "factor", "", "Scaling factor for -scale, e.g. 2 or 0.5")
	f.StringVar(&c.inject, "inject", "", "Inject this event, given as JSON")
	f.StringVar(&c.base, "base", "", "Compare against this history instead of reality")
}

func (c *whatifCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sys, err := openSystem()
	if err != nil {
		return fail(err)
	}

	switch c.action {
	case "create":
		return c.create(sys, f)
	case "list":
		return c.list(sys)
	case "show":
		return c.show(sys, f)
	case "compare":
		return c.compare(sys, f)
	case "delete":
		return c.delete(sys, f)
	default:
		f.Usage()
		return subcommands.ExitUsageError
	}
}

func (c *whatifCmd) create(sys *foliolog.System, f *flag.FlagSet) subcommands.ExitStatus {
	var mods []foliolog.Modification
	if c.remove != "" {
		mods = append(mods, foliolog.Modification{Type: foliolog.ModRemoveTicker, Ticker: c.remove})
	}
	if c.scale != "" {
		if c.factor == "" {
			fmt.Fprintln(os.Stderr, "-scale needs -factor")
			return subcommands.ExitUsageError
		}
		factor, err := decimal.NewFromString(c.factor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid factor %q: %v\n", c.factor, err)
			return subcommands.ExitUsageError
		}
		mods = append(mods, foliolog.Modification{Type: foliolog.ModScalePosition, Ticker: c.scale, Factor: factor})
	}
	if c.inject != "" {
		var e foliolog.Event
		if err := json.Unmarshal([]byte(c.inject), &e); err != nil {
			fmt.Fprintf(os.Stderr, "invalid event: %v\n", err)
			return subcommands.ExitUsageError
		}
		mods = append(mods, foliolog.Modification{Type: foliolog.ModInjectEvent, Event: &e})
	}
	if c.name == "" || len(mods) == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	asOf, err := parseWhen(c.asOf)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	h, err := sys.CreateAlternateHistory(c.name, asOf, mods)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Created %s (%s)\n", h.Name, h.ID)
	return subcommands.ExitSuccess
}

func (c *whatifCmd) list(sys *foliolog.System) subcommands.ExitStatus {
	histories, err := sys.Histories().List()
	if err != nil {
		return fail(err)
	}
	for _, h := range histories {
		mods := make([]string, len(h.Modifications))
		for i, m := range h.Modifications {
			mods[i] = m.String()
		}
		fmt.Printf("%s  %s  %-20s %s\n", h.ID, h.CreatedAt.Format("2006-01-02"), h.Name, strings.Join(mods, "; "))
	}
	return subcommands.ExitSuccess
}

func (c *whatifCmd) show(sys *foliolog.System, f *flag.FlagSet) subcommands.ExitStatus {
	if c.id == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	h, ok, err := sys.Histories().Get(c.id)
	if err != nil {
		return fail(err)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "no history %s\n", c.id)
		return subcommands.ExitFailure
	}
	fmt.Printf("%s (%s), created %s, as of %s\n", h.Name, h.ID,
		h.CreatedAt.Format("2006-01-02"), h.AsOf.Format("2006-01-02"))
	for _, m := range h.Modifications {
		fmt.Printf("  - %s\n", m)
	}
	return subcommands.ExitSuccess
}

func (c *whatifCmd) compare(sys *foliolog.System, f *flag.FlagSet) subcommands.ExitStatus {
	if c.id == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	var cmp *foliolog.Comparison
	var err error
	if c.base != "" {
		cmp, err = sys.Histories().CompareHistories(c.base, c.id)
	} else {
		cmp, err = sys.CompareHistory(c.id)
	}
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderComparison(cmp))
	return subcommands.ExitSuccess
}

func (c *whatifCmd) delete(sys *foliolog.System, f *flag.FlagSet) subcommands.ExitStatus {
	if c.id == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	ok, err := sys.Histories().Delete(c.id)
	if err != nil {
		return fail(err)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "no history %s\n", c.id)
		return subcommands.ExitFailure
	}
	fmt.Printf("Deleted %s\n", c.id)
	return subcommands.ExitSuccess
}

func renderComparison(cmp *foliolog.Comparison) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s vs %s, as of %s\n\n", cmp.AltID, cmp.BaseID, cmp.AsOf.Format("2006-01-02"))

	b.WriteString("| Metric | Base | Alternate | Delta |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, m := range cmp.Metrics {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", m.Name, m.Base, m.Alt, m.Delta.SignedString())
	}
	b.WriteString("\n")

	if len(cmp.Holdings) > 0 {
		b.WriteString("## Holdings delta\n\n")
		tickers := make([]string, 0, len(cmp.Holdings))
		for t := range cmp.Holdings {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)
		for _, t := range tickers {
			fmt.Fprintf(&b, "- %s: %s\n", t, cmp.Holdings[t].SignedString())
		}
		b.WriteString("\n")
	}

	if len(cmp.Divergences) > 0 {
		fmt.Fprintf(&b, "## Divergences (%d)\n\n", len(cmp.Divergences))
		for _, d := range cmp.Divergences {
			fmt.Fprintf(&b, "- %s %s event %d (%s): %s\n",
				d.Timestamp.Format("2006-01-02"), d.Class, d.ID, d.Kind, d.Description)
		}
	}
	return b.String()
}
