package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/mlaroche/foliolog"
)

type tradeCmd struct {
	when     string
	security string
	side     string
	quantity float64
	amount   string
	currency string
	rationaleFlags
}

func (*tradeCmd) Name() string     { return "trade" }
func (*tradeCmd) Synopsis() string { return "record a buy or sell of a security" }
func (*tradeCmd) Usage() string {
	return `folio trade -s <security> -side buy|sell -q <quantity> -a <amount> [-t <time>] [-why <rationale>]

  Records a trade. The amount is the total consideration; cash moves by the
  signed amount (out on a buy, in on a sell).
`
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.when, "t", "", "When the trade happened (RFC3339 or YYYY-MM-DD, default now)")
	f.StringVar(&c.security, "s", "", "Security ticker")
	f.StringVar(&c.side, "side", "", "buy or sell")
	f.Float64Var(&c.quantity, "q", 0, "Number of shares")
	f.StringVar(&c.amount, "a", "", "Total amount of the trade")
	f.StringVar(&c.currency, "c", "", "Currency (defaults to the configured one)")
	c.rationaleFlags.setFlags(f)
}

func (c *tradeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.security == "" || c.side == "" || c.quantity <= 0 || c.amount == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	cfg, err := foliolog.LoadConfig()
	if err != nil {
		return fail(err)
	}
	currency := c.currency
	if currency == "" {
		currency = cfg.Currency
	}
	when, err := parseWhen(c.when)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	amount, err := parseMoney(c.amount, currency)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	e := foliolog.NewTrade(when, c.security, c.side, foliolog.Q(c.quantity), amount)
	return record(c.apply(e))
}
