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

type projectCmd struct {
	action  string
	id      string
	source  string
	model   string
	horizon int

	eliminate  string
	incomeMult float64
	freqMult   float64
}

func (*projectCmd) Name() string     { return "project" }
func (*projectCmd) Synopsis() string { return "project income and total value forward" }
func (*projectCmd) Usage() string {
	return `folio project -action generate -model as-is|optimal|blended -horizon <months> [-source <history id>] [-eliminate <tags>] [-income-mult <f>] [-freq-mult <f>]
folio project -action list
folio project -action show -id <id>
folio project -action calibrate

  Generates forward projections from the recorded history, or from an
  alternate history when -source names one. The as-is model extends
  observed behavior; optimal assumes the adjustments are fully adopted;
  blended ramps from one to the other on an adoption curve seeded by
  recent discipline. Calibrate scores past projections against what
  actually happened and adjusts future ones.
`
}

func (c *projectCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.action, "action", "", "generate, list, show, or calibrate")
	f.StringVar(&c.id, "id", "", "Id of the projection")
	f.StringVar(&c.source, "source", foliolog.Reality, "Stream to project: reality or an alternate history id")
	f.StringVar(&c.model, "model", string(foliolog.ModelAsIs), "as-is, optimal, or blended")
	f.IntVar(&c.horizon, "horizon", 12, "Months to project")
	f.StringVar(&c.eliminate, "eliminate", "", "Comma-separated tags of behavior to eliminate, e.g. fomo")
	f.Float64Var(&c.incomeMult, "income-mult", 0, "Multiplier on projected income")
	f.Float64Var(&c.freqMult, "freq-mult", 0, "Multiplier on activity frequency")
}

func (c *projectCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	sys, err := openSystem()
	if err != nil {
		return fail(err)
	}

	switch c.action {
	case "generate":
		adj := foliolog.Adjustments{
			IncomeMultiplier:    c.incomeMult,
			FrequencyMultiplier: c.freqMult,
		}
		if c.eliminate != "" {
			adj.EliminateTags = strings.Split(c.eliminate, ",")
		}
		p, err := sys.GenerateProjection(c.source, foliolog.Model(c.model), c.horizon, adj)
		if err != nil {
			return fail(err)
		}
		printMarkdown(renderProjection(p))
		return subcommands.ExitSuccess

	case "list":
		projections, err := sys.Projections().List()
		if err != nil {
			return fail(err)
		}
		for _, p := range projections {
			accuracy := ""
			if p.Accuracy != nil {
				accuracy = fmt.Sprintf("  err %.1f%%", p.Accuracy.MeanAbsErrPct)
			}
			fmt.Printf("%s  %s  %-8s %2d months  p=%.2f%s\n",
				p.ID, p.CreatedAt.Format("2006-01-02"), p.Model, p.Horizon, p.Probability, accuracy)
		}
		return subcommands.ExitSuccess

	case "show":
		if c.id == "" {
			f.Usage()
			return subcommands.ExitUsageError
		}
		p, ok, err := sys.Projections().Get(c.id)
		if err != nil {
			return fail(err)
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "no projection %s\n", c.id)
			return subcommands.ExitFailure
		}
		printMarkdown(renderProjection(p))
		return subcommands.ExitSuccess

	case "calibrate":
		cal, err := sys.Projections().Calibrate()
		if err != nil {
			return fail(err)
		}
		fmt.Printf("Calibrated on %d projections, multiplier %.3f\n", cal.Projections, cal.Multiplier)
		return subcommands.ExitSuccess

	default:
		f.Usage()
		return subcommands.ExitUsageError
	}
}

func renderProjection(p *foliolog.Projection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Projection %s\n\n", p.ID)
	fmt.Fprintf(&b, "%s model over %d months, probability %.2f, starting from %s.\n\n",
		p.Model, p.Horizon, p.Probability, p.Start)

	if len(p.Assumptions) > 0 {
		b.WriteString("## Assumptions\n\n")
		keys := make([]string, 0, len(p.Assumptions))
		for k := range p.Assumptions {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, p.Assumptions[k])
		}
		b.WriteString("\n")
	}

	b.WriteString("| Period | Income | Total |")
	blended := p.Model == foliolog.ModelBlended
	if blended {
		b.WriteString(" Adoption |")
	}
	b.WriteString("\n|---|---|---|")
	if blended {
		b.WriteString("---|")
	}
	b.WriteString("\n")
	for _, pp := range p.Periods {
		fmt.Fprintf(&b, "| %s | %s | %s |", pp.Period, pp.Income, pp.Total)
		if blended {
			fmt.Fprintf(&b, " %.0f%% |", pp.AdoptionRate*100)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if p.Accuracy != nil {
		fmt.Fprintf(&b, "Accuracy over %d elapsed periods: mean abs error %.1f%%, mean signed %.1f%%.\n\n",
			p.Accuracy.Periods, p.Accuracy.MeanAbsErrPct, p.Accuracy.MeanErrPct)
		names := make([]string, 0, len(p.Accuracy.Metrics))
		for name := range p.Accuracy.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			m := p.Accuracy.Metrics[name]
			fmt.Fprintf(&b, "- %s: mean abs %.1f%%, signed %+.1f%% over %d periods\n",
				name, m.MeanAbsErrPct, m.MeanErrPct, m.Periods)
		}
		b.WriteString("\n")
	}
	for _, fb := range p.Feedback {
		marker := "-"
		if fb.Helpful {
			marker = "+"
		}
		fmt.Fprintf(&b, "%s %s%s (%s)\n", marker, fb.Text, metricNotes(fb.Metrics), fb.At.Format("2006-01-02"))
	}
	return b.String()
}

// metricNotes renders per-metric agreement as a compact suffix.
func metricNotes(metrics map[string]bool) string {
	if len(metrics) == 0 {
		return ""
	}
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		verdict := "disputed"
		if metrics[name] {
			verdict = "agreed"
		}
		parts = append(parts, name+" "+verdict)
	}
	return " [" + strings.Join(parts, ", ") + "]"
}
