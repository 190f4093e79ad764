package foliolog

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestHistoryEngine(t *testing.T) (*EventStore, *AlternateHistoryEngine) {
	t.Helper()
	s := newTestStore(t)
	seedHistory(t, s, wheelHistory()...)
	return s, NewAlternateHistoryEngine(s)
}

func TestCreateRequiresNameAndModifications(t *testing.T) {
	_, g := newTestHistoryEngine(t)

	if _, err := g.Create("", day(2025, 12, 31), []Modification{{Type: ModRemoveTicker, Ticker: "NVDA"}}); err == nil {
		t.Error("Create accepted an empty name")
	}
	if _, err := g.Create("no nvidia", day(2025, 12, 31), nil); err == nil {
		t.Error("Create accepted an empty modification list")
	}
	if _, err := g.Create("bad", day(2025, 12, 31), []Modification{{Type: "time-machine"}}); err == nil {
		t.Error("Create accepted an unknown modification type")
	}
}

func TestCreateRejectsUnknownTicker(t *testing.T) {
	_, g := newTestHistoryEngine(t)

	var verr *ValidationError
	_, err := g.Create("ghost", day(2025, 12, 31), []Modification{{Type: ModRemoveTicker, Ticker: "ZZZZ"}})
	if !errors.As(err, &verr) {
		t.Errorf("Create remove-ticker for an unknown ticker = %v, want a ValidationError", err)
	}
	_, err = g.Create("ghost", day(2025, 12, 31), []Modification{
		{Type: ModScalePosition, Ticker: "ZZZZ", Factor: decimal.NewFromInt(2)},
	})
	if !errors.As(err, &verr) {
		t.Errorf("Create scale-position for an unknown ticker = %v, want a ValidationError", err)
	}

	// NVDA appears in history before the horizon but not on day one.
	if _, err := g.Create("early", day(2025, 1, 1), []Modification{{Type: ModRemoveTicker, Ticker: "NVDA"}}); err == nil {
		t.Error("Create accepted remove-ticker for a ticker with no events before asOf")
	}
	if _, err := g.Create("ok", day(2025, 12, 31), []Modification{{Type: ModRemoveTicker, Ticker: "NVDA"}}); err != nil {
		t.Errorf("Create rejected a ticker present in history: %v", err)
	}
}

func TestHistoryPersistence(t *testing.T) {
	_, g := newTestHistoryEngine(t)

	h, err := g.Create("no nvidia", day(2025, 12, 31), []Modification{{Type: ModRemoveTicker, Ticker: "NVDA"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if h.ID == "" {
		t.Fatal("Create did not assign an id")
	}

	got, ok, err := g.Get(h.ID)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.Name != "no nvidia" || len(got.Modifications) != 1 {
		t.Fatalf("Get = %+v", got)
	}

	list, err := g.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != h.ID {
		t.Fatalf("List = %+v", list)
	}

	ok, err = g.Delete(h.ID)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	if _, ok, _ := g.Get(h.ID); ok {
		t.Fatal("deleted history is still readable")
	}
}

func TestRemoveTickerComparison(t *testing.T) {
	_, g := newTestHistoryEngine(t)
	h, err := g.Create("no nvidia", day(2025, 12, 31), []Modification{{Type: ModRemoveTicker, Ticker: "NVDA"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cmp, err := g.Compare(h)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if cmp.BaseID != Reality || cmp.AltID != h.ID {
		t.Fatalf("comparison is %s vs %s", cmp.BaseID, cmp.AltID)
	}

	// Trade, option open, dividend and the NVDA-only price update all go.
	if len(cmp.Divergences) != 4 {
		t.Fatalf("got %d divergences, want 4: %+v", len(cmp.Divergences), cmp.Divergences)
	}
	for _, d := range cmp.Divergences {
		if d.Class != "removed" {
			t.Errorf("divergence %d classified %q, want removed", d.ID, d.Class)
		}
	}
	for i := 1; i < len(cmp.Divergences); i++ {
		if cmp.Divergences[i].Timestamp.Before(cmp.Divergences[i-1].Timestamp) {
			t.Fatal("divergences are not in timestamp order")
		}
	}

	var total *MetricDelta
	for i := range cmp.Metrics {
		if cmp.Metrics[i].Name == "total value" {
			total = &cmp.Metrics[i]
		}
	}
	if total == nil {
		t.Fatal("no total value metric")
	}
	// Base: 14290 cash + 6500 marked. Alt: the deposit alone.
	if want := usd(20790); !total.Base.Equal(want) {
		t.Errorf("base total = %s, want %s", total.Base, want)
	}
	if want := usd(20000); !total.Alt.Equal(want) {
		t.Errorf("alt total = %s, want %s", total.Alt, want)
	}
	if want := usd(-790); !total.Delta.Equal(want) {
		t.Errorf("delta = %s, want %s", total.Delta, want)
	}

	if d, ok := cmp.Holdings["NVDA"]; !ok || !d.Equal(usd(-6500)) {
		t.Errorf("NVDA holdings delta = %s, want -6500", d)
	}
}

func TestScalePositionComparison(t *testing.T) {
	_, g := newTestHistoryEngine(t)
	h, err := g.Create("double down", day(2025, 12, 31), []Modification{
		{Type: ModScalePosition, Ticker: "NVDA", Factor: decimal.NewFromInt(2)},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cmp, err := g.Compare(h)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	for _, d := range cmp.Divergences {
		if d.Class != "modified" {
			t.Errorf("divergence %d classified %q, want modified", d.ID, d.Class)
		}
	}

	alt, err := g.Materialize(h)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	state, err := Reconstruct(alt, day(2025, 12, 31))
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if !state.Holdings["NVDA"].Shares.Equal(Q(100)) {
		t.Errorf("scaled shares = %s, want 100", state.Holdings["NVDA"].Shares)
	}
	// Doubled buy and premium: 20000 - 12000 + 500 + 80 dividend.
	if want := usd(8580); !state.Cash["USD"].Equal(want) {
		t.Errorf("scaled cash = %s, want %s", state.Cash["USD"], want)
	}
}

func TestScaleToZeroKeepsEvents(t *testing.T) {
	_, g := newTestHistoryEngine(t)
	h, err := g.Create("never bought", day(2025, 12, 31), []Modification{
		{Type: ModScalePosition, Ticker: "NVDA", Factor: decimal.Zero},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	alt, err := g.Materialize(h)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(alt) != 5 {
		t.Fatalf("scale to zero dropped events: %d of 5 left", len(alt))
	}

	cmp, err := g.Compare(h)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	for _, d := range cmp.Divergences {
		if d.Class != "modified" {
			t.Errorf("divergence %d classified %q, want modified", d.ID, d.Class)
		}
	}
}

func TestInjectEventGetsSyntheticID(t *testing.T) {
	_, g := newTestHistoryEngine(t)
	injected := NewTrade(day(2025, 1, 15), "TSLA", SideBuy, Q(10), usd(4000))
	h, err := g.Create("also tesla", day(2025, 12, 31), []Modification{
		{Type: ModInjectEvent, Event: &injected},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	alt, err := g.Materialize(h)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(alt) != 6 {
		t.Fatalf("got %d events, want 6", len(alt))
	}
	var found bool
	for _, e := range alt {
		if e.Ticker() == "TSLA" {
			found = true
			if e.ID < SyntheticIDBase {
				t.Errorf("injected event id %d is below the synthetic range", e.ID)
			}
		}
	}
	if !found {
		t.Fatal("injected event is not in the materialized stream")
	}

	cmp, err := g.Compare(h)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(cmp.Divergences) != 1 || cmp.Divergences[0].Class != "added" {
		t.Fatalf("divergences = %+v, want one added", cmp.Divergences)
	}
}

func TestCompareHistoriesAgainstEachOther(t *testing.T) {
	_, g := newTestHistoryEngine(t)
	removed, err := g.Create("no nvidia", day(2025, 12, 31), []Modification{{Type: ModRemoveTicker, Ticker: "NVDA"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	doubled, err := g.Create("double down", day(2025, 12, 31), []Modification{
		{Type: ModScalePosition, Ticker: "NVDA", Factor: decimal.NewFromInt(2)},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cmp, err := g.CompareHistories(removed.ID, doubled.ID)
	if err != nil {
		t.Fatalf("CompareHistories: %v", err)
	}
	if cmp.BaseID != removed.ID || cmp.AltID != doubled.ID {
		t.Fatalf("comparison is %s vs %s", cmp.BaseID, cmp.AltID)
	}
	// Everything NVDA is absent from the base, so it all reads as added.
	for _, d := range cmp.Divergences {
		if d.Class != "added" {
			t.Errorf("divergence %d classified %q, want added", d.ID, d.Class)
		}
	}
}

func TestCompareHistoryWithItself(t *testing.T) {
	_, g := newTestHistoryEngine(t)
	h, err := g.Create("no nvidia", day(2025, 12, 31), []Modification{{Type: ModRemoveTicker, Ticker: "NVDA"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cmp, err := g.CompareHistories(h.ID, h.ID)
	if err != nil {
		t.Fatalf("CompareHistories: %v", err)
	}
	if len(cmp.Divergences) != 0 {
		t.Fatalf("self-comparison has %d divergences, want 0", len(cmp.Divergences))
	}
	for _, m := range cmp.Metrics {
		if !m.Delta.IsZero() {
			t.Errorf("self-comparison metric %q delta = %s, want zero", m.Name, m.Delta)
		}
	}
	if len(cmp.Holdings) != 0 {
		t.Errorf("self-comparison holdings deltas = %v, want none", cmp.Holdings)
	}
}

func TestRealLogUntouchedByAlternateHistories(t *testing.T) {
	s, g := newTestHistoryEngine(t)
	h, err := g.Create("no nvidia", day(2025, 12, 31), []Modification{{Type: ModRemoveTicker, Ticker: "NVDA"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := g.Compare(h); err != nil {
		t.Fatalf("Compare: %v", err)
	}

	events, err := s.Read(Filter{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("the real log has %d events after branching, want 5", len(events))
	}
}
