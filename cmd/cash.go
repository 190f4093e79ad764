package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/mlaroche/foliolog"
)

// cashFlags are shared by deposit and withdraw.
type cashFlags struct {
	when     string
	amount   string
	currency string
	rationaleFlags
}

func (c *cashFlags) setFlags(f *flag.FlagSet) {
	f.StringVar(&c.when, "t", "", "When it happened (RFC3339 or YYYY-MM-DD, default now)")
	f.StringVar(&c.amount, "a", "", "Amount")
	f.StringVar(&c.currency, "c", "", "Currency (defaults to the configured one)")
	c.rationaleFlags.setFlags(f)
}

func (c *cashFlags) parse(f *flag.FlagSet) (foliolog.Money, subcommands.ExitStatus) {
	if c.amount == "" {
		f.Usage()
		return foliolog.Money{}, subcommands.ExitUsageError
	}
	cfg, err := foliolog.LoadConfig()
	if err != nil {
		return foliolog.Money{}, fail(err)
	}
	currency := c.currency
	if currency == "" {
		currency = cfg.Currency
	}
	amount, err := parseMoney(c.amount, currency)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return foliolog.Money{}, subcommands.ExitUsageError
	}
	return amount, subcommands.ExitSuccess
}

type depositCmd struct{ cashFlags }

func (*depositCmd) Name() string     { return "deposit" }
func (*depositCmd) Synopsis() string { return "record an external cash deposit" }
func (*depositCmd) Usage() string {
	return `folio deposit -a <amount> [-c <currency>] [-t <time>]

  Records cash added to the portfolio from outside. Tracked as external
  flow, never as income.
`
}
func (c *depositCmd) SetFlags(f *flag.FlagSet) { c.cashFlags.setFlags(f) }

func (c *depositCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, status := c.parse(f)
	if status != subcommands.ExitSuccess {
		return status
	}
	when, err := parseWhen(c.when)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	return record(c.apply(foliolog.NewDeposit(when, amount)))
}

type withdrawCmd struct{ cashFlags }

func (*withdrawCmd) Name() string     { return "withdraw" }
func (*withdrawCmd) Synopsis() string { return "record an external cash withdrawal" }
func (*withdrawCmd) Usage() string {
	return `folio withdraw -a <amount> [-c <currency>] [-t <time>]

  Records cash taken out of the portfolio.
`
}
func (c *withdrawCmd) SetFlags(f *flag.FlagSet) { c.cashFlags.setFlags(f) }

func (c *withdrawCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, status := c.parse(f)
	if status != subcommands.ExitSuccess {
		return status
	}
	when, err := parseWhen(c.when)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	return record(c.apply(foliolog.NewWithdraw(when, amount)))
}

type dividendCmd struct {
	security string
	cashFlags
}

func (*dividendCmd) Name() string     { return "dividend" }
func (*dividendCmd) Synopsis() string { return "record a cash dividend" }
func (*dividendCmd) Usage() string {
	return `folio dividend -s <security> -a <amount> [-t <time>]

  Records a dividend received from a security, counted as dividend income.
`
}

func (c *dividendCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.security, "s", "", "Security ticker")
	c.cashFlags.setFlags(f)
}

func (c *dividendCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.security == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	amount, status := c.parse(f)
	if status != subcommands.ExitSuccess {
		return status
	}
	when, err := parseWhen(c.when)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	return record(c.apply(foliolog.NewDividend(when, c.security, amount)))
}
