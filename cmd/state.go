package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/subcommands"
	"github.com/mlaroche/foliolog"
)

type stateCmd struct {
	at string
}

func (*stateCmd) Name() string     { return "state" }
func (*stateCmd) Synopsis() string { return "show the portfolio state, now or at any past instant" }
func (*stateCmd) Usage() string {
	return `folio state [-at <time>]

  Replays the event log up to the given instant and renders the resulting
  portfolio: cash, holdings, open options, income and journal.
`
}

func (c *stateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.at, "at", "", "Instant to reconstruct (RFC3339 or YYYY-MM-DD, default now)")
}

func (c *stateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	when, err := parseWhen(c.at)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	sys, err := openSystem()
	if err != nil {
		return fail(err)
	}
	state, err := sys.GetState(when)
	if err != nil {
		return fail(err)
	}
	printMarkdown(renderState(state))
	return subcommands.ExitSuccess
}

func renderState(s *foliolog.PortfolioState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Portfolio as of %s\n\n", s.AsOf.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Total value: **%s** (cash %s, market %s)\n\n",
		s.TotalValue(), s.TotalCash(), s.MarketValue())

	if len(s.Holdings) > 0 {
		b.WriteString("## Holdings\n\n")
		b.WriteString("| Ticker | Shares | Cost basis | Mark | Value | Unrealized |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		tickers := make([]string, 0, len(s.Holdings))
		for t := range s.Holdings {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)
		for _, t := range tickers {
			h := s.Holdings[t]
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				t, h.Shares, h.CostBasis, h.MarkPrice, h.MarketValue(), h.UnrealizedGain().SignedString())
		}
		b.WriteString("\n")
	}

	if len(s.OpenOptions) > 0 {
		b.WriteString("## Open options\n\n")
		b.WriteString("| Id | Underlying | Right | Strike | Contracts | Premium | Expiry |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		ids := make([]int64, 0, len(s.OpenOptions))
		for id := range s.OpenOptions {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			o := s.OpenOptions[id]
			right := o.Right
			if o.Short {
				right = "short " + right
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %s |\n",
				o.OpenID, o.Underlying, right, o.Strike, o.Contracts, o.Premium, o.Expiry.Format("2006-01-02"))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Income\n\n")
	fmt.Fprintf(&b, "- Realized gains: %s\n", s.RealizedGains.SignedString())
	fmt.Fprintf(&b, "- Dividends: %s\n", s.DividendIncome)
	fmt.Fprintf(&b, "- Option premium: %s\n", s.OptionIncome.SignedString())
	fmt.Fprintf(&b, "- External flow: %s\n", s.ExternalFlow.SignedString())
	b.WriteString("\n")

	if s.Goal != "" {
		fmt.Fprintf(&b, "Goal: %s\n\n", s.Goal)
	}
	if s.Strategy != "" {
		fmt.Fprintf(&b, "Strategy: %s\n\n", s.Strategy)
	}
	if len(s.Journal) > 0 {
		b.WriteString("## Journal\n\n")
		for _, n := range s.Journal {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}
	return b.String()
}
