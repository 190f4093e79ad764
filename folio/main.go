package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/mlaroche/foliolog/cmd"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// completion describes the CLI for shell completion. It answers and exits
// when invoked by the shell, and is a no-op otherwise.
func completion() {
	record := &complete.Command{Flags: map[string]complete.Predictor{
		"t":          predict.Nothing,
		"why":        predict.Nothing,
		"confidence": predict.Nothing,
		"tags":       predict.Nothing,
	}}
	byID := &complete.Command{Flags: map[string]complete.Predictor{
		"id": predict.Nothing,
	}}
	c := &complete.Command{
		Sub: map[string]*complete.Command{
			"trade":    record,
			"option":   record,
			"deposit":  record,
			"withdraw": record,
			"dividend": record,
			"price":    record,
			"note":     record,
			"goal":     record,
			"strategy": record,
			"state":    {Flags: map[string]complete.Predictor{"at": predict.Nothing}},
			"log": {Flags: map[string]complete.Predictor{
				"kind":   predict.Set{"trade", "option-open", "option-close", "option-expire", "dividend", "deposit", "withdraw", "update-price", "note", "goal", "strategy"},
				"ticker": predict.Nothing,
			}},
			"edit":     byID,
			"delete":   byID,
			"audit":    {},
			"rebuild":  {},
			"fmt":      {},
			"whatif": {Flags: map[string]complete.Predictor{"action": predict.Set{"create", "list", "show", "compare", "delete"}}},
			"project": {Flags: map[string]complete.Predictor{
				"action": predict.Set{"generate", "list", "show", "calibrate"},
				"model":  predict.Set{"as-is", "optimal", "blended"},
				"source": predict.Nothing,
			}},
			"feedback": {Flags: map[string]complete.Predictor{
				"id":       predict.Nothing,
				"agree":    predict.Set{"income", "total value"},
				"disagree": predict.Set{"income", "total value"},
			}},
			"accuracy": byID,
			"topic":    {Args: predict.Set{"readme", "events", "timetravel", "whatif", "projections"}},
			"assist":   {},
		},
	}
	c.Complete("folio")
}

func main() {
	completion()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "help")
	commander.Register(commander.FlagsCommand(), "help")
	cmd.Register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
