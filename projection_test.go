package foliolog

import (
	"math"
	"testing"
	"time"
)

// monthlyWheel is six months of disciplined premium selling plus one
// tagged, undisciplined losing trade in February.
func monthlyWheel() []Event {
	events := []Event{NewDeposit(day(2025, 1, 2), usd(10000))}
	for m := time.January; m <= time.June; m++ {
		open := NewOptionOpen(day(2025, m, 5), OptionOpenPayload{
			Underlying: "NVDA", Right: RightPut, Short: true,
			Strike: usd(110), Contracts: Q(1), Premium: usd(200),
			Expiry: day(2025, m, 25),
		}).WithRationale(Rationale{Primary: "wheel", Confidence: 0.8})
		events = append(events, open)
	}
	events = append(events,
		NewTrade(day(2025, 2, 10), "MEME", SideBuy, Q(100), usd(1000)).WithTags("fomo"),
		NewTrade(day(2025, 2, 20), "MEME", SideSell, Q(100), usd(800)).WithTags("fomo"),
	)
	return events
}

func newTestProjectionEngine(t *testing.T) (*EventStore, *ProjectionEngine) {
	t.Helper()
	s := newTestStore(t)
	seedHistory(t, s, monthlyWheel()...)
	return s, NewProjectionEngine(s, NewAlternateHistoryEngine(s))
}

func TestComputeStats(t *testing.T) {
	events := numbered(monthlyWheel()...)
	stats, err := ComputeStats(events)
	if err != nil {
		t.Fatalf("ComputeStats: %v", err)
	}
	if len(stats.Periods) != 6 {
		t.Fatalf("got %d periods, want 6", len(stats.Periods))
	}

	jan := stats.Periods[0]
	if want := usd(200); !jan.Income().Equal(want) {
		t.Errorf("january income = %s, want %s", jan.Income(), want)
	}
	feb := stats.Periods[1]
	// 200 premium minus the 200 trading loss.
	if !feb.Income().IsZero() {
		t.Errorf("february income = %s, want zero", feb.Income())
	}
	if feb.Sells != 1 || feb.Wins != 0 {
		t.Errorf("february sells/wins = %d/%d, want 1/0", feb.Sells, feb.Wins)
	}

	// (6*200 - 200) / 6.
	if want := usd(1000).Div(Q(6)); !stats.AvgIncome().Equal(want) {
		t.Errorf("avg income = %s, want %s", stats.AvgIncome(), want)
	}
	// 6 disciplined opens out of 8 decisions.
	if got, want := stats.DisciplineRatio, 6.0/8.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("discipline ratio = %v, want %v", got, want)
	}
	// The later half has no fomo trades.
	if stats.RecentDisciplineRatio != 1 {
		t.Errorf("recent discipline ratio = %v, want 1", stats.RecentDisciplineRatio)
	}
	if stats.WinRate != 0 {
		t.Errorf("win rate = %v, want 0", stats.WinRate)
	}
}

func TestEliminateDropsTaggedDecisions(t *testing.T) {
	events := numbered(monthlyWheel()...)
	kept := eliminate(events, []string{"fomo"})
	if len(kept) != len(events)-2 {
		t.Fatalf("eliminate kept %d of %d events", len(kept), len(events))
	}
	stats, err := ComputeStats(kept)
	if err != nil {
		t.Fatalf("ComputeStats: %v", err)
	}
	if want := usd(200); !stats.AvgIncome().Equal(want) {
		t.Errorf("optimal avg income = %s, want %s", stats.AvgIncome(), want)
	}
}

func TestGenerateValidation(t *testing.T) {
	_, g := newTestProjectionEngine(t)
	if _, err := g.Generate(Reality, ModelAsIs, 0, Adjustments{}); err == nil {
		t.Error("Generate accepted a zero horizon")
	}
	if _, err := g.Generate(Reality, "crystal-ball", 12, Adjustments{}); err == nil {
		t.Error("Generate accepted an unknown model")
	}
	if _, err := g.Generate("no-such-history", ModelAsIs, 12, Adjustments{}); err == nil {
		t.Error("Generate accepted an unknown source")
	}
}

func TestGenerateFromAlternateHistory(t *testing.T) {
	s, g := newTestProjectionEngine(t)
	histories := NewAlternateHistoryEngine(s)
	h, err := histories.Create("no meme", day(2025, 12, 31), []Modification{{Type: ModRemoveTicker, Ticker: "MEME"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	base, err := g.Generate(Reality, ModelAsIs, 3, Adjustments{})
	if err != nil {
		t.Fatalf("Generate from reality: %v", err)
	}
	alt, err := g.Generate(h.ID, ModelAsIs, 3, Adjustments{})
	if err != nil {
		t.Fatalf("Generate from history: %v", err)
	}

	if base.Source != Reality {
		t.Errorf("reality projection source = %q", base.Source)
	}
	if alt.Source != h.ID || alt.Assumptions["source"] != h.ID {
		t.Errorf("alternate projection source = %q, assumption %q, want %s", alt.Source, alt.Assumptions["source"], h.ID)
	}
	// Without the MEME round trip the timeline never books its 200 loss.
	if want := base.Start.Add(usd(200)); !alt.Start.Equal(want) {
		t.Errorf("alternate start = %s, want %s", alt.Start, want)
	}
}

func TestBlendedStaysBetween(t *testing.T) {
	_, g := newTestProjectionEngine(t)
	adj := Adjustments{EliminateTags: []string{"fomo"}}

	asIs, err := g.Generate(Reality, ModelAsIs, 6, adj)
	if err != nil {
		t.Fatalf("Generate as-is: %v", err)
	}
	optimal, err := g.Generate(Reality, ModelOptimal, 6, adj)
	if err != nil {
		t.Fatalf("Generate optimal: %v", err)
	}
	blended, err := g.Generate(Reality, ModelBlended, 6, adj)
	if err != nil {
		t.Fatalf("Generate blended: %v", err)
	}

	// Ramp speed follows the discipline trend: 0.85 - (1 - 6/8)/4.
	if got, want := blended.Assumptions["adoption decay"], "0.7875"; got != want {
		t.Errorf("adoption decay assumption = %q, want %q", got, want)
	}

	for i := range blended.Periods {
		lo, hi := asIs.Periods[i].Income, optimal.Periods[i].Income
		mid := blended.Periods[i].Income
		if !mid.GreaterThan(lo) || !mid.LessThan(hi) {
			t.Errorf("period %d: blended income %s is not strictly between %s and %s", i, mid, lo, hi)
		}
		rate := blended.Periods[i].AdoptionRate
		if rate <= 0 || rate >= 1 {
			t.Errorf("period %d: adoption rate %v out of (0,1)", i, rate)
		}
		if i > 0 && rate <= blended.Periods[i-1].AdoptionRate {
			t.Errorf("period %d: adoption rate %v did not increase", i, rate)
		}
	}

	if asIs.Probability <= optimal.Probability {
		t.Error("continuing as-is should be more probable than a full behavioral change")
	}
	if blended.Probability <= optimal.Probability || blended.Probability >= asIs.Probability {
		t.Error("blended probability should sit between the other models")
	}
}

func TestProjectionPersistence(t *testing.T) {
	_, g := newTestProjectionEngine(t)
	p, err := g.Generate(Reality, ModelAsIs, 3, Adjustments{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(p.Periods) != 3 {
		t.Fatalf("got %d periods, want 3", len(p.Periods))
	}

	got, ok, err := g.Get(p.ID)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.Model != ModelAsIs || got.Horizon != 3 {
		t.Fatalf("Get = %+v", got)
	}

	list, err := g.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("List = %d projections, want 1", len(list))
	}
}

func TestSubmitFeedback(t *testing.T) {
	_, g := newTestProjectionEngine(t)
	p, err := g.Generate(Reality, ModelAsIs, 3, Adjustments{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	ok, err := g.SubmitFeedback(p.ID, "underestimated dividends", true, nil)
	if err != nil || !ok {
		t.Fatalf("SubmitFeedback = %v, %v", ok, err)
	}
	ok, err = g.SubmitFeedback(p.ID, "", false, map[string]bool{"income": true, "total value": false})
	if err != nil || !ok {
		t.Fatalf("SubmitFeedback with metrics only = %v, %v", ok, err)
	}
	got, _, err := g.Get(p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Feedback) != 2 || !got.Feedback[0].Helpful {
		t.Fatalf("feedback = %+v", got.Feedback)
	}
	metrics := got.Feedback[1].Metrics
	if len(metrics) != 2 || !metrics["income"] || metrics["total value"] {
		t.Fatalf("per-metric feedback = %+v", metrics)
	}

	if ok, err := g.SubmitFeedback("nope", "text", false, nil); err != nil || ok {
		t.Fatalf("SubmitFeedback on missing projection = %v, %v", ok, err)
	}
	if _, err := g.SubmitFeedback(p.ID, "", false, nil); err == nil {
		t.Error("SubmitFeedback accepted empty feedback")
	}
}

func TestComputeAccuracyAndCalibrate(t *testing.T) {
	_, g := newTestProjectionEngine(t)

	// A hand-planted projection whose single period is long past: it
	// predicted 10300 where the history reached 10200 by end of January.
	p := &Projection{
		ID:        "planted",
		CreatedAt: day(2025, 1, 1),
		Model:     ModelAsIs,
		Horizon:   1,
		Periods: []ProjectedPeriod{
			{Period: PeriodOf(day(2025, 1, 15)), Income: usd(300), Total: usd(10300)},
		},
	}
	if err := g.save(p); err != nil {
		t.Fatalf("save: %v", err)
	}

	acc, ok, err := g.ComputeAccuracy("planted")
	if err != nil || !ok {
		t.Fatalf("ComputeAccuracy = %v, %v", ok, err)
	}
	if acc == nil || acc.Periods != 1 {
		t.Fatalf("accuracy = %+v", acc)
	}
	// Actual total at end of January: 10000 deposit + 200 premium.
	wantErr := 100 * (10300.0 - 10200.0) / 10200.0
	if math.Abs(acc.MeanErrPct-wantErr) > 1e-6 {
		t.Errorf("mean error = %v%%, want %v%%", acc.MeanErrPct, wantErr)
	}
	if math.Abs(acc.MeanAbsErrPct-wantErr) > 1e-6 {
		t.Errorf("mean abs error = %v%%, want %v%%", acc.MeanAbsErrPct, wantErr)
	}
	total, ok := acc.Metrics["total value"]
	if !ok || math.Abs(total.MeanErrPct-wantErr) > 1e-6 {
		t.Errorf("total value metric = %+v, want mean error %v%%", total, wantErr)
	}
	// January's actual income is the 200 premium; 300 was projected.
	income, ok := acc.Metrics["income"]
	if !ok || math.Abs(income.MeanErrPct-50) > 1e-6 {
		t.Errorf("income metric = %+v, want mean error 50%%", income)
	}

	cal, err := g.Calibrate()
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if cal.Projections != 1 {
		t.Fatalf("calibrated on %d projections, want 1", cal.Projections)
	}
	wantMult := 1 / (1 + wantErr/100)
	if math.Abs(cal.Multiplier-wantMult) > 1e-6 {
		t.Errorf("multiplier = %v, want %v", cal.Multiplier, wantMult)
	}

	loaded, err := g.LoadCalibration()
	if err != nil {
		t.Fatalf("LoadCalibration: %v", err)
	}
	if loaded == nil || math.Abs(loaded.Multiplier-cal.Multiplier) > 1e-9 {
		t.Fatalf("LoadCalibration = %+v", loaded)
	}

	// A fresh projection picks the multiplier up and records it.
	next, err := g.Generate(Reality, ModelAsIs, 1, Adjustments{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if next.Assumptions["calibration"] == "1.0000" {
		t.Error("generated projection did not record the calibration multiplier")
	}

	if _, ok, _ := g.ComputeAccuracy("nope"); ok {
		t.Error("ComputeAccuracy reported success for a missing projection")
	}
}
