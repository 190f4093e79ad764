package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/mlaroche/foliolog"
	"github.com/shopspring/decimal"
)

type priceCmd struct {
	when     string
	currency string
	prices   string
	rationaleFlags
}

func (*priceCmd) Name() string     { return "price" }
func (*priceCmd) Synopsis() string { return "record a mark-to-market price update" }
func (*priceCmd) Usage() string {
	return `folio price -p <ticker=price,ticker=price,...> [-c <currency>] [-t <time>]

  Records observed market prices. Prices only mark holdings that exist at
  that point in the history; they never create positions.
`
}

func (c *priceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.when, "t", "", "When the prices were observed (RFC3339 or YYYY-MM-DD, default now)")
	f.StringVar(&c.currency, "c", "", "Currency of the prices (defaults to the configured one)")
	f.StringVar(&c.prices, "p", "", "Comma-separated ticker=price pairs")
	c.rationaleFlags.setFlags(f)
}

func (c *priceCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.prices == "" {
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

	prices := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(c.prices, ",") {
		ticker, value, ok := strings.Cut(pair, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "invalid price %q, want ticker=price\n", pair)
			return subcommands.ExitUsageError
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid price for %s: %v\n", ticker, err)
			return subcommands.ExitUsageError
		}
		prices[strings.TrimSpace(ticker)] = d
	}

	return record(c.apply(foliolog.NewPriceUpdate(when, currency, prices)))
}
