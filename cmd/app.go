// Package cmd implements the `folio` CLI over an event-sourced portfolio.
package cmd

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/mlaroche/foliolog"
	"github.com/shopspring/decimal"
)

// Register registers all subcommands on the commander.
func Register(c *subcommands.Commander) {
	c.Register(&tradeCmd{}, "record")
	c.Register(&optionCmd{}, "record")
	c.Register(&depositCmd{}, "record")
	c.Register(&withdrawCmd{}, "record")
	c.Register(&dividendCmd{}, "record")
	c.Register(&priceCmd{}, "record")
	c.Register(&noteCmd{}, "record")
	c.Register(&goalCmd{}, "record")
	c.Register(&strategyCmd{}, "record")

	c.Register(&stateCmd{}, "inspect")
	c.Register(&logCmd{}, "inspect")

	c.Register(&editCmd{}, "maintain")
	c.Register(&deleteCmd{}, "maintain")
	c.Register(&auditCmd{}, "maintain")
	c.Register(&rebuildCmd{}, "maintain")
	c.Register(&fmtCmd{}, "maintain")

	c.Register(&whatifCmd{}, "analyze")
	c.Register(&projectCmd{}, "analyze")
	c.Register(&feedbackCmd{}, "analyze")
	c.Register(&accuracyCmd{}, "analyze")

	c.Register(&topicCmd{}, "help")
	c.Register(&assistCmd{}, "help")
}

// openSystem loads the configuration and opens the portfolio directory.
// As a CLI application the lifecycle is short-lived, so the system is
// opened fresh on every command.
func openSystem() (*foliolog.System, error) {
	cfg, err := foliolog.LoadConfig()
	if err != nil {
		return nil, err
	}
	return foliolog.NewSystem(cfg)
}

// fail prints the error to stderr and returns the failure status.
func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, "Error:", err)
	return subcommands.ExitFailure
}

// parseWhen accepts an RFC3339 instant or a plain day. Empty means now.
func parseWhen(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, want RFC3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

// parseMoney parses an amount in the configured currency, e.g. "1500.50".
func parseMoney(s, currency string) (foliolog.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return foliolog.Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return foliolog.M(d, currency), nil
}

// rationaleFlags are the shared -why/-confidence/-tags flags of every
// record command.
type rationaleFlags struct {
	why        string
	confidence float64
	tags       string
}

func (r *rationaleFlags) setFlags(f *flag.FlagSet) {
	f.StringVar(&r.why, "why", "", "The rationale behind the decision")
	f.Float64Var(&r.confidence, "confidence", 0.5, "Confidence in the decision, 0 to 1")
	f.StringVar(&r.tags, "tags", "", "Comma-separated tags, e.g. fomo,earnings-play")
}

func (r *rationaleFlags) apply(e foliolog.Event) foliolog.Event {
	if r.why != "" {
		e = e.WithRationale(foliolog.Rationale{Primary: r.why, Confidence: r.confidence})
	}
	if r.tags != "" {
		e = e.WithTags(strings.Split(r.tags, ",")...)
	}
	return e
}

// record appends the event and reports its id.
func record(e foliolog.Event) subcommands.ExitStatus {
	sys, err := openSystem()
	if err != nil {
		return fail(err)
	}
	id, err := sys.AppendEvent(e)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Recorded event %d\n", id)
	return subcommands.ExitSuccess
}
