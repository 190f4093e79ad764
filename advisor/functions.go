package advisor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mlaroche/foliolog"
	"google.golang.org/genai"
)

// NewBookkeeper returns the expert in charge of the portfolio itself. Its
// tools read derived state and the event stream, and record proposed
// events through the system's validated append path.
func NewBookkeeper(sys *foliolog.System, model string) *Expert {
	lib := []Function{getState(sys), readEvents(sys), proposeEvent(sys)}

	return &Expert{
		Name: "Bookkeeper",
		Description: `This is the Bookkeeper. He is in charge of the user's portfolio event log.
		He can reconstruct the portfolio state as of any instant, list and filter the recorded
		events, and record a new decision when the user asks for it.`,
		ModelName: model,
		Config: &genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{FunctionDeclarations: NewDeclaration(lib)},
			},
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: `
				You are the bookkeeper of the user's portfolio: an append-only stream of
				timestamped decision events. Use get_state for holdings, cash and income;
				use read_events to look at what actually happened and when.

				When the user decides something (a trade, a cash movement, a note, a goal),
				record it with propose_event, always with the user's rationale and a
				confidence level. Never record anything the user did not explicitly decide.
			`}}},
		},
		Library: NewLibrary(lib),
	}
}

func errResponse(id, name string, err error) *genai.FunctionResponse {
	return &genai.FunctionResponse{
		ID:   id,
		Name: name,
		Response: map[string]any{
			"error": err.Error(),
		},
	}
}

func okResponse(id, name, output string) *genai.FunctionResponse {
	return &genai.FunctionResponse{
		ID:   id,
		Name: name,
		Response: map[string]any{
			"output": output,
		},
	}
}

func parseInstant(args map[string]any, key string) (time.Time, error) {
	v, ok := args[key]
	if !ok {
		return time.Time{}, nil
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("argument %q is not a string but %T", key, v)
	}
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("argument %q must be RFC3339 or YYYY-MM-DD, got %q", key, s)
	}
	return t, nil
}

func getState(sys *foliolog.System) Function {
	return &Func{
		Decl: &genai.FunctionDeclaration{
			Name: "get_state",
			Description: `get_state reconstructs the portfolio as of an instant: cash per currency,
			holdings with shares, cost basis and mark price, open option positions, realized gains,
			dividend and option income, the active goal and strategy. Defaults to now.`,
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"asOf": {
						Type:        genai.TypeString,
						Description: "Instant to reconstruct at, RFC3339 or YYYY-MM-DD. Now by default.",
					},
				},
			},
			Response: &genai.Schema{
				Type:        genai.TypeString,
				Description: "A markdown summary of the portfolio state.",
			},
		},
		Func: func(ctx context.Context, id string, args map[string]any) *genai.FunctionResponse {
			asOf, err := parseInstant(args, "asOf")
			if err != nil {
				return errResponse(id, "get_state", err)
			}
			state, err := sys.GetState(asOf)
			if err != nil {
				return errResponse(id, "get_state", err)
			}
			return okResponse(id, "get_state", stateMarkdown(state))
		},
	}
}

func stateMarkdown(s *foliolog.PortfolioState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Portfolio as of %s\n\n", s.AsOf.Format(time.RFC3339))
	fmt.Fprintf(&b, "- total value: %s\n", s.TotalValue())
	fmt.Fprintf(&b, "- cash: %s\n", s.TotalCash())
	fmt.Fprintf(&b, "- realized gains: %s, dividends: %s, option income: %s\n\n",
		s.RealizedGains, s.DividendIncome, s.OptionIncome)

	if len(s.Holdings) > 0 {
		b.WriteString("| ticker | shares | cost basis | mark |\n|---|---|---|---|\n")
		tickers := make([]string, 0, len(s.Holdings))
		for t := range s.Holdings {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)
		for _, t := range tickers {
			h := s.Holdings[t]
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", t, h.Shares, h.CostBasis, h.MarkPrice)
		}
	}
	if len(s.OpenOptions) > 0 {
		fmt.Fprintf(&b, "\n%d open option position(s)\n", len(s.OpenOptions))
	}
	if s.Goal != "" {
		fmt.Fprintf(&b, "\nGoal: %s\n", s.Goal)
	}
	if s.Strategy != "" {
		fmt.Fprintf(&b, "Strategy: %s\n", s.Strategy)
	}
	return b.String()
}

func readEvents(sys *foliolog.System) Function {
	return &Func{
		Decl: &genai.FunctionDeclaration{
			Name: "read_events",
			Description: `read_events lists recorded portfolio events in chronological order,
			optionally filtered by kind, ticker, and time range.`,
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"kind": {
						Type:        genai.TypeString,
						Description: "Event kind filter: trade, option-open, option-close, option-expire, dividend, deposit, withdraw, update-price, note, goal, strategy.",
					},
					"ticker": {
						Type:        genai.TypeString,
						Description: "Only events concerning this security.",
					},
					"from": {
						Type:        genai.TypeString,
						Description: "Lower timestamp bound, RFC3339 or YYYY-MM-DD.",
					},
					"until": {
						Type:        genai.TypeString,
						Description: "Upper timestamp bound, RFC3339 or YYYY-MM-DD.",
					},
				},
			},
			Response: &genai.Schema{
				Type:        genai.TypeString,
				Description: "The matching events, one JSON object per line.",
			},
		},
		Func: func(ctx context.Context, id string, args map[string]any) *genai.FunctionResponse {
			var f foliolog.Filter
			if kind, ok := args["kind"].(string); ok && kind != "" {
				f.Kinds = []foliolog.Kind{foliolog.Kind(kind)}
			}
			if ticker, ok := args["ticker"].(string); ok {
				f.Ticker = ticker
			}
			var err error
			if f.From, err = parseInstant(args, "from"); err != nil {
				return errResponse(id, "read_events", err)
			}
			if f.Until, err = parseInstant(args, "until"); err != nil {
				return errResponse(id, "read_events", err)
			}

			events, err := sys.ReadEvents(f)
			if err != nil {
				return errResponse(id, "read_events", err)
			}
			var b strings.Builder
			if err := foliolog.EncodeLog(&b, events); err != nil {
				return errResponse(id, "read_events", err)
			}
			return okResponse(id, "read_events", b.String())
		},
	}
}

func proposeEvent(sys *foliolog.System) Function {
	return &Func{
		Decl: &genai.FunctionDeclaration{
			Name: "propose_event",
			Description: `propose_event records a new decision in the portfolio log, with the
			user's rationale. The event is validated before being appended; an invalid payload
			is rejected and nothing is recorded.`,
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"kind": {
						Type:        genai.TypeString,
						Description: "The event kind, e.g. trade, dividend, deposit, note, goal.",
					},
					"payload": {
						Type:        genai.TypeString,
						Description: `The kind's payload as a JSON object, e.g. for a trade: {"security":"ACME","side":"buy","quantity":10,"amount":{"currency":"USD","amount":1500}}.`,
					},
					"timestamp": {
						Type:        genai.TypeString,
						Description: "When the decision happened, RFC3339 or YYYY-MM-DD. Now by default.",
					},
					"rationale": {
						Type:        genai.TypeString,
						Description: "The user's primary motive for the decision.",
					},
					"confidence": {
						Type:        genai.TypeNumber,
						Description: "The user's confidence in the decision, 0 to 1.",
					},
				},
				Required: []string{"kind", "payload", "rationale"},
			},
			Response: &genai.Schema{
				Type:        genai.TypeString,
				Description: "The id of the recorded event.",
			},
		},
		Func: func(ctx context.Context, id string, args map[string]any) *genai.FunctionResponse {
			kind, _ := args["kind"].(string)
			rawPayload, _ := args["payload"].(string)
			rationale, _ := args["rationale"].(string)
			confidence, _ := args["confidence"].(float64)

			payload, err := foliolog.DecodePayload(foliolog.Kind(kind), []byte(rawPayload))
			if err != nil {
				return errResponse(id, "propose_event", err)
			}
			ts, err := parseInstant(args, "timestamp")
			if err != nil {
				return errResponse(id, "propose_event", err)
			}
			if ts.IsZero() {
				ts = time.Now()
			}

			e := foliolog.Event{
				Timestamp: ts,
				Kind:      foliolog.Kind(kind),
				Payload:   payload,
			}
			e = e.WithRationale(foliolog.Rationale{Primary: rationale, Confidence: confidence})
			e.CashImpact = impliedCashImpact(e)

			eventID, err := sys.AppendEvent(e)
			if err != nil {
				return errResponse(id, "propose_event", err)
			}
			return okResponse(id, "propose_event", fmt.Sprintf("recorded event %d", eventID))
		},
	}
}

// impliedCashImpact rebuilds the conventional cash impact for payloads
// whose constructors define one, so the model does not have to reason
// about signs.
func impliedCashImpact(e foliolog.Event) foliolog.Money {
	switch p := e.Payload.(type) {
	case foliolog.TradePayload:
		return foliolog.NewTrade(e.Timestamp, p.Security, p.Side, p.Quantity, p.Amount).CashImpact
	case foliolog.OptionOpenPayload:
		return foliolog.NewOptionOpen(e.Timestamp, p).CashImpact
	case foliolog.OptionClosePayload:
		return foliolog.NewOptionClose(e.Timestamp, p.OpenID, p.Cost).CashImpact
	case foliolog.DividendPayload:
		return foliolog.NewDividend(e.Timestamp, p.Security, p.Amount).CashImpact
	case foliolog.DepositPayload:
		return foliolog.NewDeposit(e.Timestamp, p.Amount).CashImpact
	case foliolog.WithdrawPayload:
		return foliolog.NewWithdraw(e.Timestamp, p.Amount).CashImpact
	}
	return foliolog.Money{}
}
