package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/subcommands"
)

type feedbackCmd struct {
	id       string
	helpful  bool
	agree    string
	disagree string
}

func (*feedbackCmd) Name() string     { return "feedback" }
func (*feedbackCmd) Synopsis() string { return "attach feedback to a projection" }
func (*feedbackCmd) Usage() string {
	return `folio feedback -id <projection> [-helpful] [-agree <metrics>] [-disagree <metrics>] [<text...>]

  Records whether a projection turned out useful, overall and per metric
  (e.g. -agree income -disagree total). Feedback is stored with the
  projection and shown alongside it.
`
}

func (c *feedbackCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Id of the projection")
	f.BoolVar(&c.helpful, "helpful", false, "The projection was helpful")
	f.StringVar(&c.agree, "agree", "", "Comma-separated metrics whose path looks right")
	f.StringVar(&c.disagree, "disagree", "", "Comma-separated metrics whose path looks wrong")
}

func (c *feedbackCmd) metrics() map[string]bool {
	m := make(map[string]bool)
	for _, name := range strings.Split(c.agree, ",") {
		if name != "" {
			m[name] = true
		}
	}
	for _, name := range strings.Split(c.disagree, ",") {
		if name != "" {
			m[name] = false
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

func (c *feedbackCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	text := strings.Join(f.Args(), " ")
	metrics := c.metrics()
	if c.id == "" || (text == "" && len(metrics) == 0) {
		f.Usage()
		return subcommands.ExitUsageError
	}
	sys, err := openSystem()
	if err != nil {
		return fail(err)
	}
	ok, err := sys.SubmitFeedback(c.id, text, c.helpful, metrics)
	if err != nil {
		return fail(err)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "no projection %s\n", c.id)
		return subcommands.ExitFailure
	}
	fmt.Println("Feedback recorded.")
	return subcommands.ExitSuccess
}

type accuracyCmd struct {
	id string
}

func (*accuracyCmd) Name() string     { return "accuracy" }
func (*accuracyCmd) Synopsis() string { return "score a projection against what actually happened" }
func (*accuracyCmd) Usage() string {
	return `folio accuracy -id <projection>

  Compares each elapsed projected period with the actual history and
  reports the error. The score is saved on the projection and feeds
  calibration.
`
}

func (c *accuracyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Id of the projection")
}

func (c *accuracyCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	sys, err := openSystem()
	if err != nil {
		return fail(err)
	}
	acc, ok, err := sys.ComputeAccuracy(c.id)
	if err != nil {
		return fail(err)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "no projection %s\n", c.id)
		return subcommands.ExitFailure
	}
	if acc == nil {
		fmt.Println("No projected period has elapsed yet.")
		return subcommands.ExitSuccess
	}
	fmt.Printf("Over %d elapsed periods: mean abs error %.1f%%, mean signed %.1f%%\n",
		acc.Periods, acc.MeanAbsErrPct, acc.MeanErrPct)
	names := make([]string, 0, len(acc.Metrics))
	for name := range acc.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := acc.Metrics[name]
		fmt.Printf("  %s: mean abs %.1f%%, signed %+.1f%% over %d periods\n",
			name, m.MeanAbsErrPct, m.MeanErrPct, m.Periods)
	}
	for i, e := range acc.PerPeriod {
		fmt.Printf("  period %d: %+.1f%%\n", i+1, e)
	}
	return subcommands.ExitSuccess
}
