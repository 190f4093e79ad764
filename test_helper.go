package foliolog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// day builds a UTC instant at noon, so period boundaries are unambiguous.
func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func usd(v float64) Money { return M(v, "USD") }

// newTestStore opens a store in a temp dir.
func newTestStore(t *testing.T) *EventStore {
	t.Helper()
	s, err := OpenStore(t.TempDir(), DefaultLockTimeout)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	return s
}

// seedHistory appends the events in order and fails the test on any error.
func seedHistory(t *testing.T, s *EventStore, events ...Event) {
	t.Helper()
	for _, e := range events {
		if _, err := s.Append(e); err != nil {
			t.Fatalf("Append %s at %s: %v", e.Kind, e.Timestamp, err)
		}
	}
}

// wheelHistory is a small but realistic history: a deposit, a stock buy,
// a covered short put cycle, a dividend and price marks.
func wheelHistory() []Event {
	return []Event{
		NewDeposit(day(2025, 1, 2), usd(20000)),
		NewTrade(day(2025, 1, 10), "NVDA", SideBuy, Q(50), usd(6000)),
		NewOptionOpen(day(2025, 2, 3), OptionOpenPayload{
			Underlying: "NVDA",
			Right:      RightPut,
			Short:      true,
			Strike:     usd(110),
			Contracts:  Q(1),
			Premium:    usd(250),
			Expiry:     day(2025, 2, 21),
		}),
		NewDividend(day(2025, 2, 14), "NVDA", usd(40)),
		NewPriceUpdate(day(2025, 2, 20), "USD", map[string]decimal.Decimal{
			"NVDA": decimal.NewFromInt(130),
		}),
	}
}
