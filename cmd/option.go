package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/mlaroche/foliolog"
)

type optionCmd struct {
	action string
	when   string

	// open
	underlying string
	right      string
	short      bool
	strike     string
	contracts  float64
	premium    string
	expiry     string
	currency   string

	// close / expire
	openID   int64
	cost     string
	assigned bool
	assignQ  float64
	assignC  string

	rationaleFlags
}

func (*optionCmd) Name() string     { return "option" }
func (*optionCmd) Synopsis() string { return "record an option open, close, or expiry" }
func (*optionCmd) Usage() string {
	return `folio option -action open -u <underlying> -right call|put [-short] -strike <price> -n <contracts> -premium <amount> -expiry <day>
folio option -action close -open <id> -cost <amount>
folio option -action expire -open <id> [-assigned -q <quantity> -basis <amount>]

  Records one step of an option position's lifecycle. Positions are keyed by
  the id of their opening event.
`
}

func (c *optionCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.action, "action", "", "open, close, or expire")
	f.StringVar(&c.when, "t", "", "When it happened (RFC3339 or YYYY-MM-DD, default now)")
	f.StringVar(&c.underlying, "u", "", "Underlying security ticker")
	f.StringVar(&c.right, "right", "", "call or put")
	f.BoolVar(&c.short, "short", false, "Short position (premium received)")
	f.StringVar(&c.strike, "strike", "", "Strike price")
	f.Float64Var(&c.contracts, "n", 0, "Number of contracts")
	f.StringVar(&c.premium, "premium", "", "Total premium")
	f.StringVar(&c.expiry, "expiry", "", "Expiry day (YYYY-MM-DD)")
	f.StringVar(&c.currency, "c", "", "Currency (defaults to the configured one)")
	f.Int64Var(&c.openID, "open", 0, "Id of the opening event")
	f.StringVar(&c.cost, "cost", "", "Cost to close")
	f.BoolVar(&c.assigned, "assigned", false, "The expiry was assigned")
	f.Float64Var(&c.assignQ, "q", 0, "Assigned share quantity")
	f.StringVar(&c.assignC, "basis", "", "Assigned cost basis")
	c.rationaleFlags.setFlags(f)
}

func (c *optionCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	switch c.action {
	case "open":
		if c.underlying == "" || c.right == "" || c.strike == "" || c.contracts <= 0 || c.premium == "" || c.expiry == "" {
			f.Usage()
			return subcommands.ExitUsageError
		}
		strike, err := parseMoney(c.strike, currency)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
		premium, err := parseMoney(c.premium, currency)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
		expiry, err := time.Parse("2006-01-02", c.expiry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid expiry %q: %v\n", c.expiry, err)
			return subcommands.ExitUsageError
		}
		e := foliolog.NewOptionOpen(when, foliolog.OptionOpenPayload{
			Underlying: c.underlying,
			Right:      c.right,
			Short:      c.short,
			Strike:     strike,
			Contracts:  foliolog.Q(c.contracts),
			Premium:    premium,
			Expiry:     expiry,
		})
		return record(c.apply(e))

	case "close":
		if c.openID <= 0 || c.cost == "" {
			f.Usage()
			return subcommands.ExitUsageError
		}
		cost, err := parseMoney(c.cost, currency)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
		return record(c.apply(foliolog.NewOptionClose(when, c.openID, cost)))

	case "expire":
		if c.openID <= 0 {
			f.Usage()
			return subcommands.ExitUsageError
		}
		if !c.assigned {
			return record(c.apply(foliolog.NewOptionExpire(when, c.openID)))
		}
		if c.assignQ <= 0 || c.assignC == "" {
			f.Usage()
			return subcommands.ExitUsageError
		}
		basis, err := parseMoney(c.assignC, currency)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
		// The cash flow of a put assignment is the purchase at strike
		// (negative); for a call it is the sale at strike (positive).
		// The basis amount doubles as the absolute cash moved.
		impact := basis.Neg()
		if c.right == foliolog.RightCall {
			impact = basis
		}
		e := foliolog.NewOptionAssignment(when, c.openID, foliolog.Q(c.assignQ), basis, impact)
		return record(c.apply(e))

	default:
		f.Usage()
		return subcommands.ExitUsageError
	}
}
