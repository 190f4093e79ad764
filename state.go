package foliolog

import (
	"fmt"
	"time"
)

// Holding is one security position: shares held, their aggregate average
// cost, and the last marked price.
type Holding struct {
	Shares    Quantity
	CostBasis Money
	MarkPrice Money
}

// MarketValue returns the position's value at the last mark.
func (h Holding) MarketValue() Money { return h.MarkPrice.Mul(h.Shares) }

// UnrealizedGain returns mark value minus cost basis.
func (h Holding) UnrealizedGain() Money { return h.MarketValue().Sub(h.CostBasis) }

// OptionPosition is an open option, keyed by the id of the event that
// opened it.
type OptionPosition struct {
	OpenID     int64
	Underlying string
	Right      string
	Short      bool
	Strike     Money
	Contracts  Quantity
	Premium    Money
	Expiry     time.Time
	OpenedAt   time.Time
}

// PortfolioState is the portfolio as of an instant, derived purely from the
// event stream. It is a value: mutate a copy, never the log.
type PortfolioState struct {
	AsOf time.Time

	Cash        map[string]Money   // by currency
	Holdings    map[string]Holding // by ticker
	OpenOptions map[int64]OptionPosition

	RealizedGains  Money
	DividendIncome Money
	OptionIncome   Money
	ExternalFlow   Money

	Notes    map[string][]string // per-ticker thesis
	Journal  []string            // general notes
	Goal     string
	Strategy string
}

func newPortfolioState(asOf time.Time) *PortfolioState {
	return &PortfolioState{
		AsOf:        asOf,
		Cash:        make(map[string]Money),
		Holdings:    make(map[string]Holding),
		OpenOptions: make(map[int64]OptionPosition),
		Notes:       make(map[string][]string),
	}
}

// Reconstruct folds every event with Timestamp ≤ asOf, in (timestamp, id)
// order, into a fresh state. It is deterministic and all-or-nothing: any
// event the reducer cannot apply fails the whole reconstruction.
func Reconstruct(events []Event, asOf time.Time) (*PortfolioState, error) {
	sorted := make([]Event, 0, len(events))
	for _, e := range events {
		if !e.Timestamp.After(asOf) {
			sorted = append(sorted, e)
		}
	}
	sortEvents(sorted)

	state := newPortfolioState(asOf)
	for _, e := range sorted {
		if err := state.apply(e); err != nil {
			return nil, fmt.Errorf("replaying event %d (%s): %w", e.ID, e.Kind, err)
		}
	}
	return state, nil
}

// apply folds one event into the state. Cash moves by the event's recorded
// cash impact; everything else is per-kind.
func (s *PortfolioState) apply(e Event) error {
	if !e.CashImpact.IsZero() {
		c := e.CashImpact.Currency()
		s.Cash[c] = s.Cash[c].Add(e.CashImpact)
	}

	switch p := e.Payload.(type) {
	case TradePayload:
		return s.applyTrade(p)
	case OptionOpenPayload:
		s.OpenOptions[e.ID] = OptionPosition{
			OpenID:     e.ID,
			Underlying: p.Underlying,
			Right:      p.Right,
			Short:      p.Short,
			Strike:     p.Strike,
			Contracts:  p.Contracts,
			Premium:    p.Premium,
			Expiry:     p.Expiry,
			OpenedAt:   e.Timestamp,
		}
		s.OptionIncome = s.OptionIncome.Add(e.CashImpact)
	case OptionClosePayload:
		if _, ok := s.OpenOptions[p.OpenID]; !ok {
			return fmt.Errorf("no open option position for event %d", p.OpenID)
		}
		delete(s.OpenOptions, p.OpenID)
		s.OptionIncome = s.OptionIncome.Add(e.CashImpact)
	case OptionExpirePayload:
		return s.applyExpiry(e, p)
	case DividendPayload:
		s.DividendIncome = s.DividendIncome.Add(p.Amount)
	case DepositPayload:
		s.ExternalFlow = s.ExternalFlow.Add(p.Amount)
	case WithdrawPayload:
		s.ExternalFlow = s.ExternalFlow.Sub(p.Amount)
	case PriceUpdatePayload:
		for sec, price := range p.Prices {
			h, ok := s.Holdings[sec]
			if !ok {
				continue
			}
			h.MarkPrice = M(price, p.Currency)
			s.Holdings[sec] = h
		}
	case NotePayload:
		if p.Security != "" {
			s.Notes[p.Security] = append(s.Notes[p.Security], p.Text)
		} else {
			s.Journal = append(s.Journal, p.Text)
		}
	case GoalPayload:
		s.Goal = p.Text
	case StrategyPayload:
		s.Strategy = p.Text
	default:
		return &SchemaError{Kind: e.Kind, ID: e.ID}
	}
	return nil
}

func (s *PortfolioState) applyTrade(p TradePayload) error {
	h := s.Holdings[p.Security]
	switch p.Side {
	case SideBuy:
		h.Shares = h.Shares.Add(p.Quantity)
		h.CostBasis = h.CostBasis.Add(p.Amount)
	case SideSell:
		if p.Quantity.IsZero() {
			// Zeroed-out trades occur in scaled alternate streams.
			break
		}
		if h.Shares.LessThan(p.Quantity) {
			return fmt.Errorf("selling %s %s but only %s held", p.Quantity, p.Security, h.Shares)
		}
		costOfSale := h.CostBasis.Div(h.Shares).Mul(p.Quantity)
		s.RealizedGains = s.RealizedGains.Add(p.Amount.Sub(costOfSale))
		h.Shares = h.Shares.Sub(p.Quantity)
		h.CostBasis = h.CostBasis.Sub(costOfSale)
	default:
		return fmt.Errorf("unknown trade side %q", p.Side)
	}
	s.Holdings[p.Security] = h
	return nil
}

// applyExpiry removes the open position; on assignment it moves the
// underlying at the payload's quantity and cost: a put delivers shares in,
// a call delivers shares out at average-cost relief.
func (s *PortfolioState) applyExpiry(e Event, p OptionExpirePayload) error {
	pos, ok := s.OpenOptions[p.OpenID]
	if !ok {
		return fmt.Errorf("no open option position for event %d", p.OpenID)
	}
	delete(s.OpenOptions, p.OpenID)
	if !p.Assigned {
		return nil
	}

	h := s.Holdings[pos.Underlying]
	switch pos.Right {
	case RightPut:
		h.Shares = h.Shares.Add(p.AssignedQuantity)
		h.CostBasis = h.CostBasis.Add(p.AssignedCost)
	case RightCall:
		if p.AssignedQuantity.IsZero() {
			break
		}
		if h.Shares.LessThan(p.AssignedQuantity) {
			return fmt.Errorf("call assignment of %s %s but only %s held", p.AssignedQuantity, pos.Underlying, h.Shares)
		}
		costOfSale := h.CostBasis.Div(h.Shares).Mul(p.AssignedQuantity)
		s.RealizedGains = s.RealizedGains.Add(e.CashImpact.Sub(costOfSale))
		h.Shares = h.Shares.Sub(p.AssignedQuantity)
		h.CostBasis = h.CostBasis.Sub(costOfSale)
	}
	s.Holdings[pos.Underlying] = h
	return nil
}

// MarketValue returns the value of all marked holdings. Holdings never
// marked contribute nothing.
func (s *PortfolioState) MarketValue() Money {
	var total Money
	for _, h := range s.Holdings {
		if h.Shares.IsZero() || h.MarkPrice.IsZero() {
			continue
		}
		total = total.Add(h.MarketValue())
	}
	return total
}

// TotalCash returns cash across currencies. Mixing currencies without a
// common one panics, as Money addition does.
func (s *PortfolioState) TotalCash() Money {
	var total Money
	for _, c := range s.Cash {
		total = total.Add(c)
	}
	return total
}

// TotalValue is cash plus market value.
func (s *PortfolioState) TotalValue() Money {
	return s.TotalCash().Add(s.MarketValue())
}

// TotalIncome is realized gains plus dividend and option income.
func (s *PortfolioState) TotalIncome() Money {
	return s.RealizedGains.Add(s.DividendIncome).Add(s.OptionIncome)
}
