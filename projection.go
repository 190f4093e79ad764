package foliolog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	projectionsDirname  = "projections"
	calibrationFilename = "calibration.json"

	// disciplineConfidence is the rationale confidence above which a
	// decision counts as disciplined.
	disciplineConfidence = 0.6

	// baseAdoptionDecay anchors the blended ramp; the realized discipline
	// trend speeds it up or slows it down around this anchor, clamped so
	// the gap to full adoption shrinks every period but never closes.
	baseAdoptionDecay = 0.85
	minAdoptionDecay  = 0.60
	maxAdoptionDecay  = 0.97
)

// Model names a projection behavioral model.
type Model string

const (
	ModelAsIs    Model = "as-is"
	ModelOptimal Model = "optimal"
	ModelBlended Model = "blended"
)

// Fixed confidence heuristic per model family: continuing as before is the
// most likely path, a full behavioral change the least.
var modelProbability = map[Model]float64{
	ModelAsIs:    0.65,
	ModelOptimal: 0.25,
	ModelBlended: 0.50,
}

// PeriodStats are the realized figures of one month of history.
type PeriodStats struct {
	Period         Period  `json:"period"`
	OptionIncome   Money   `json:"optionIncome"`
	DividendIncome Money   `json:"dividendIncome"`
	TradingGains   Money   `json:"tradingGains"`
	Growth         float64 `json:"growth"` // market appreciation net of income and flows
	Decisions      int     `json:"decisions"`
	Disciplined    int     `json:"disciplined"`
	Sells          int     `json:"sells"`
	Wins           int     `json:"wins"`
}

// Income is the period's total income from all sources.
func (p PeriodStats) Income() Money {
	return p.OptionIncome.Add(p.DividendIncome).Add(p.TradingGains)
}

// HistoricalStats summarize the full history at monthly granularity; they
// are the raw material of every projection model.
type HistoricalStats struct {
	Periods []PeriodStats `json:"periods"`

	AvgOptionIncome   Money   `json:"avgOptionIncome"`
	AvgDividendIncome Money   `json:"avgDividendIncome"`
	AvgTradingGains   Money   `json:"avgTradingGains"`
	GrowthRate        float64 `json:"growthRate"`
	WinRate           float64 `json:"winRate"`

	// DisciplineRatio is the share of decisions carrying a confident
	// rationale; Recent is the same ratio over the later half of history,
	// the trend the adoption curve starts from.
	DisciplineRatio       float64 `json:"disciplineRatio"`
	RecentDisciplineRatio float64 `json:"recentDisciplineRatio"`
}

// AvgIncome is the mean total income per period.
func (s HistoricalStats) AvgIncome() Money {
	return s.AvgOptionIncome.Add(s.AvgDividendIncome).Add(s.AvgTradingGains)
}

// ComputeStats folds the event stream month by month, measuring each
// period as the delta between the snapshot at its end and at its start.
func ComputeStats(events []Event) (*HistoricalStats, error) {
	if len(events) == 0 {
		return &HistoricalStats{}, nil
	}
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sortEvents(sorted)

	first, last := sorted[0].Timestamp, sorted[len(sorted)-1].Timestamp
	periods := periodsBetween(first, last)

	stats := &HistoricalStats{}
	prev, err := Reconstruct(sorted, periods[0].Start().Add(-time.Nanosecond))
	if err != nil {
		return nil, err
	}
	for _, p := range periods {
		state, err := Reconstruct(sorted, p.End().Add(-time.Nanosecond))
		if err != nil {
			return nil, err
		}
		ps := PeriodStats{
			Period:         p,
			OptionIncome:   state.OptionIncome.Sub(prev.OptionIncome),
			DividendIncome: state.DividendIncome.Sub(prev.DividendIncome),
			TradingGains:   state.RealizedGains.Sub(prev.RealizedGains),
		}
		flow := state.ExternalFlow.Sub(prev.ExternalFlow)
		income := ps.Income()
		if base := prev.TotalValue(); base.IsPositive() {
			appreciation := state.TotalValue().Sub(prev.TotalValue()).Sub(flow).Sub(income)
			ps.Growth = appreciation.AsFloat() / base.AsFloat()
		}
		stats.Periods = append(stats.Periods, ps)
		prev = state
	}

	tallyDecisions(sorted, stats.Periods)
	summarize(stats)
	return stats, nil
}

// tallyDecisions walks the sorted stream once, attributing decision events
// to their periods and scoring each sell against the average cost of the
// position at that moment.
func tallyDecisions(sorted []Event, periods []PeriodStats) {
	byPeriod := make(map[Period]*PeriodStats, len(periods))
	for i := range periods {
		byPeriod[periods[i].Period] = &periods[i]
	}
	positions := make(map[string]Holding)

	for _, e := range sorted {
		ps := byPeriod[PeriodOf(e.Timestamp)]
		switch p := e.Payload.(type) {
		case TradePayload:
			if ps != nil {
				ps.Decisions++
				if isDisciplined(e) {
					ps.Disciplined++
				}
			}
			h := positions[p.Security]
			switch p.Side {
			case SideBuy:
				h.Shares = h.Shares.Add(p.Quantity)
				h.CostBasis = h.CostBasis.Add(p.Amount)
			case SideSell:
				if p.Quantity.IsZero() || h.Shares.LessThan(p.Quantity) {
					break
				}
				costOfSale := h.CostBasis.Div(h.Shares).Mul(p.Quantity)
				if ps != nil {
					ps.Sells++
					if p.Amount.GreaterThan(costOfSale) {
						ps.Wins++
					}
				}
				h.Shares = h.Shares.Sub(p.Quantity)
				h.CostBasis = h.CostBasis.Sub(costOfSale)
			}
			positions[p.Security] = h
		case OptionOpenPayload:
			if ps != nil {
				ps.Decisions++
				if isDisciplined(e) {
					ps.Disciplined++
				}
			}
		}
	}
}

func isDisciplined(e Event) bool {
	return e.Rationale != nil && e.Rationale.Confidence >= disciplineConfidence
}

func hasTag(e Event, tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func summarize(stats *HistoricalStats) {
	n := len(stats.Periods)
	if n == 0 {
		return
	}
	var opt, div, trd Money
	var growth float64
	var decisions, disciplined, sells, wins int
	var recentDecisions, recentDisciplined int
	for i, p := range stats.Periods {
		opt = opt.Add(p.OptionIncome)
		div = div.Add(p.DividendIncome)
		trd = trd.Add(p.TradingGains)
		growth += p.Growth
		decisions += p.Decisions
		disciplined += p.Disciplined
		sells += p.Sells
		wins += p.Wins
		if i >= n/2 {
			recentDecisions += p.Decisions
			recentDisciplined += p.Disciplined
		}
	}
	count := Q(n)
	stats.AvgOptionIncome = opt.Div(count)
	stats.AvgDividendIncome = div.Div(count)
	stats.AvgTradingGains = trd.Div(count)
	stats.GrowthRate = growth / float64(n)
	if sells > 0 {
		stats.WinRate = float64(wins) / float64(sells)
	}
	if decisions > 0 {
		stats.DisciplineRatio = float64(disciplined) / float64(decisions)
	}
	if recentDecisions > 0 {
		stats.RecentDisciplineRatio = float64(recentDisciplined) / float64(recentDecisions)
	} else {
		stats.RecentDisciplineRatio = stats.DisciplineRatio
	}
}

// Adjustments shape the optimal model: which past decisions to eliminate
// and how to scale the remaining behavior.
type Adjustments struct {
	// EliminateTags drops every decision event carrying one of these tags
	// before the optimal baseline is measured.
	EliminateTags []string `json:"eliminateTags,omitempty"`
	// IncomeMultiplier scales the projected per-period income (1 = as
	// measured).
	IncomeMultiplier float64 `json:"incomeMultiplier,omitempty"`
	// FrequencyMultiplier scales activity-driven income (option and
	// trading income, not dividends).
	FrequencyMultiplier float64 `json:"frequencyMultiplier,omitempty"`
}

func (a Adjustments) normalized() Adjustments {
	if a.IncomeMultiplier == 0 {
		a.IncomeMultiplier = 1
	}
	if a.FrequencyMultiplier == 0 {
		a.FrequencyMultiplier = 1
	}
	return a
}

// ProjectedPeriod is one future month of a projection.
type ProjectedPeriod struct {
	Period       Period  `json:"period"`
	Income       Money   `json:"income"`
	Total        Money   `json:"total"`
	AdoptionRate float64 `json:"adoptionRate,omitempty"`
}

// Feedback is a reader's note attached to a stored projection. Metrics
// carries per-metric agreement: true means the reader found that metric's
// path plausible, false that they dispute it.
type Feedback struct {
	At      time.Time       `json:"at"`
	Text    string          `json:"text,omitempty"`
	Helpful bool            `json:"helpful"`
	Metrics map[string]bool `json:"metrics,omitempty"`
}

// MetricAccuracy is the error of one projected metric over the elapsed
// periods, as signed and absolute percentages of the actual value.
type MetricAccuracy struct {
	Periods       int       `json:"periods"`
	MeanAbsErrPct float64   `json:"meanAbsErrPct"`
	MeanErrPct    float64   `json:"meanErrPct"`
	PerPeriodPct  []float64 `json:"perPeriodPct"`
}

// Accuracy compares a projection's elapsed periods against what actually
// happened. The top-level figures score total value, the metric that feeds
// calibration; Metrics breaks the error down per projected metric.
type Accuracy struct {
	ComputedAt    time.Time `json:"computedAt"`
	Periods       int       `json:"periods"`
	MeanAbsErrPct float64   `json:"meanAbsErrPct"`
	// MeanErrPct keeps the sign: positive means the projection ran high.
	MeanErrPct float64                   `json:"meanErrPct"`
	PerPeriod  []float64                 `json:"perPeriod"`
	Metrics    map[string]MetricAccuracy `json:"metrics,omitempty"`
}

// Projection is a stored forward extrapolation. The projected path is
// immutable once generated; only Feedback and Accuracy are attached later.
type Projection struct {
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"createdAt"`
	Source      string            `json:"source"` // Reality or an alternate history id
	Model       Model             `json:"model"`
	Horizon     int               `json:"horizon"` // months
	Probability float64           `json:"probability"`
	Assumptions map[string]string `json:"assumptions"`
	Start       Money             `json:"start"` // total value at generation
	Periods     []ProjectedPeriod `json:"periods"`
	Feedback    []Feedback        `json:"feedback,omitempty"`
	Accuracy    *Accuracy         `json:"accuracy,omitempty"`
}

// Calibration is the explicit correction factor learned from past
// projection errors, applied to future income baselines. It is never
// silent: every projection it touched records it in its assumptions.
type Calibration struct {
	ComputedAt  time.Time `json:"computedAt"`
	Projections int       `json:"projections"`
	Multiplier  float64   `json:"multiplier"`
}

// ProjectionEngine generates, stores, and scores projections.
type ProjectionEngine struct {
	store     *EventStore
	histories *AlternateHistoryEngine
}

// NewProjectionEngine returns an engine over the store's directory.
// Projections from counterfactual timelines are materialized through the
// histories engine.
func NewProjectionEngine(store *EventStore, histories *AlternateHistoryEngine) *ProjectionEngine {
	return &ProjectionEngine{store: store, histories: histories}
}

func (g *ProjectionEngine) dir() string { return filepath.Join(g.store.Dir(), projectionsDirname) }

// sourceEvents resolves a projection source to its event stream: empty or
// Reality reads the real log, anything else materializes the named
// alternate history.
func (g *ProjectionEngine) sourceEvents(source string) (string, []Event, error) {
	if source == "" || source == Reality {
		events, err := g.store.Read(Filter{})
		return Reality, events, err
	}
	h, ok, err := g.histories.Get(source)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, &ValidationError{Reason: fmt.Sprintf("no alternate history %s", source)}
	}
	events, err := g.histories.Materialize(h)
	return source, events, err
}

// Generate builds and persists a projection of the given model over a
// horizon of months. The source is Reality (or empty) for the real stream,
// or an alternate history id to project a counterfactual timeline forward.
func (g *ProjectionEngine) Generate(source string, model Model, horizon int, adj Adjustments) (*Projection, error) {
	if horizon <= 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf("horizon must be positive, got %d", horizon)}
	}
	prob, ok := modelProbability[model]
	if !ok {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown model %q", model)}
	}
	adj = adj.normalized()

	source, events, err := g.sourceEvents(source)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	state, err := Reconstruct(events, now)
	if err != nil {
		return nil, err
	}
	asIs, err := ComputeStats(events)
	if err != nil {
		return nil, err
	}
	optimal, err := ComputeStats(eliminate(events, adj.EliminateTags))
	if err != nil {
		return nil, err
	}

	cal, err := g.LoadCalibration()
	if err != nil {
		return nil, err
	}
	multiplier := 1.0
	if cal != nil && cal.Multiplier > 0 {
		multiplier = cal.Multiplier
	}

	p := &Projection{
		ID:          uuid.NewString(),
		CreatedAt:   now.UTC(),
		Source:      source,
		Model:       model,
		Horizon:     horizon,
		Probability: prob,
		Start:       state.TotalValue(),
		Assumptions: map[string]string{
			"source":            source,
			"periods observed":  fmt.Sprint(len(asIs.Periods)),
			"avg income":        asIs.AvgIncome().String(),
			"growth rate":       fmt.Sprintf("%.4f", asIs.GrowthRate),
			"win rate":          fmt.Sprintf("%.2f", asIs.WinRate),
			"calibration":       fmt.Sprintf("%.4f", multiplier),
			"model probability": fmt.Sprintf("%.2f", prob),
		},
	}
	if model != ModelAsIs {
		p.Assumptions["optimal avg income"] = optimalIncome(optimal, adj).String()
		if len(adj.EliminateTags) > 0 {
			p.Assumptions["eliminated tags"] = strings.Join(adj.EliminateTags, ",")
		}
	}
	adoptionStart, adoptionDecay := adoptionRamp(asIs)
	if model == ModelBlended {
		p.Assumptions["adoption start"] = fmt.Sprintf("%.2f", adoptionStart)
		p.Assumptions["adoption decay"] = fmt.Sprintf("%.4f", adoptionDecay)
	}

	p.Periods = extrapolate(model, horizon, state.TotalValue(), asIs, optimal, adj, multiplier, adoptionStart, adoptionDecay)

	if err := g.save(p); err != nil {
		return nil, err
	}
	return p, nil
}

// eliminate drops decision events carrying any of the tags, along with
// their recorded cash impact, modeling a history where those decisions
// were never made.
func eliminate(events []Event, tags []string) []Event {
	if len(tags) == 0 {
		return events
	}
	var out []Event
	for _, e := range events {
		drop := false
		for _, tag := range tags {
			if hasTag(e, tag) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, e)
		}
	}
	return out
}

// optimalIncome is the optimal model's per-period income: the eliminated
// baseline with the caller's multipliers, activity scaled separately from
// dividends.
func optimalIncome(s *HistoricalStats, adj Adjustments) Money {
	activity := s.AvgOptionIncome.Add(s.AvgTradingGains).Scale(decimal.NewFromFloat(adj.FrequencyMultiplier))
	income := activity.Add(s.AvgDividendIncome)
	return income.Scale(decimal.NewFromFloat(adj.IncomeMultiplier))
}

// adoptionRamp derives the blended model's curve from the history itself:
// the starting rate is the recent discipline ratio, and the per-period
// decay of the remaining gap follows the discipline trend, so an improving
// history ramps faster than a declining one.
func adoptionRamp(s *HistoricalStats) (start, decay float64) {
	start = s.RecentDisciplineRatio
	if start >= 1 {
		start = 0.99
	}
	if start < 0 {
		start = 0
	}
	trend := s.RecentDisciplineRatio - s.DisciplineRatio
	decay = baseAdoptionDecay - trend/4
	if decay < minAdoptionDecay {
		decay = minAdoptionDecay
	}
	if decay > maxAdoptionDecay {
		decay = maxAdoptionDecay
	}
	return start, decay
}

// extrapolate rolls the recurrence forward: each period's total is the
// prior total plus income plus growth on the prior total.
func extrapolate(model Model, horizon int, start Money, asIs, optimal *HistoricalStats, adj Adjustments, multiplier, adoptionStart, adoptionDecay float64) []ProjectedPeriod {
	calibrate := decimal.NewFromFloat(multiplier)
	asIsIncome := asIs.AvgIncome().Scale(calibrate)
	optIncome := optimalIncome(optimal, adj).Scale(calibrate)
	asIsGrowth := asIs.GrowthRate
	optGrowth := optimal.GrowthRate

	out := make([]ProjectedPeriod, 0, horizon)
	period := PeriodOf(time.Now()).Next()
	total := start
	for i := 0; i < horizon; i++ {
		var income Money
		var growth, rate float64
		switch model {
		case ModelAsIs:
			income, growth = asIsIncome, asIsGrowth
		case ModelOptimal:
			income, growth = optIncome, optGrowth
		case ModelBlended:
			// The gap to full adoption decays but never closes, so the
			// blend stays strictly between the other two paths.
			rate = 1 - (1-adoptionStart)*math.Pow(adoptionDecay, float64(i))
			blend := decimal.NewFromFloat(rate)
			income = asIsIncome.Add(optIncome.Sub(asIsIncome).Scale(blend))
			growth = asIsGrowth + (optGrowth-asIsGrowth)*rate
		}
		total = total.Add(income).Add(total.Scale(decimal.NewFromFloat(growth)))
		out = append(out, ProjectedPeriod{Period: period, Income: income, Total: total, AdoptionRate: rate})
		period = period.Next()
	}
	return out
}

func (g *ProjectionEngine) save(p *Projection) error {
	if err := os.MkdirAll(g.dir(), 0755); err != nil {
		return &IOError{Op: "create", Path: g.dir(), Err: err}
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal projection %s: %w", p.ID, err)
	}
	path := filepath.Join(g.dir(), p.ID+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Get loads a projection by id, or returns false when it does not exist.
func (g *ProjectionEngine) Get(id string) (*Projection, bool, error) {
	path := filepath.Join(g.dir(), id+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &IOError{Op: "read", Path: path, Err: err}
	}
	var p Projection
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, fmt.Errorf("failed to decode projection %s: %w", id, err)
	}
	return &p, true, nil
}

// List returns all stored projections, newest first.
func (g *ProjectionEngine) List() ([]Projection, error) {
	entries, err := os.ReadDir(g.dir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &IOError{Op: "read", Path: g.dir(), Err: err}
	}
	var out []Projection
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == calibrationFilename || !strings.HasSuffix(name, ".json") {
			continue
		}
		p, ok, err := g.Get(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SubmitFeedback attaches a note to a stored projection; metrics carries
// per-metric agreement and may stand alone without text.
func (g *ProjectionEngine) SubmitFeedback(id, text string, helpful bool, metrics map[string]bool) (bool, error) {
	if text == "" && len(metrics) == 0 {
		return false, &ValidationError{Reason: "empty feedback"}
	}
	p, ok, err := g.Get(id)
	if err != nil || !ok {
		return ok, err
	}
	p.Feedback = append(p.Feedback, Feedback{At: time.Now().UTC(), Text: text, Helpful: helpful, Metrics: metrics})
	return true, g.save(p)
}

// ComputeAccuracy scores a projection's elapsed periods against the real
// stream and stores the result on the projection. It returns false when
// the projection does not exist, and a nil accuracy when no projected
// period has elapsed yet.
func (g *ProjectionEngine) ComputeAccuracy(id string) (*Accuracy, bool, error) {
	p, ok, err := g.Get(id)
	if err != nil || !ok {
		return nil, ok, err
	}
	events, err := g.store.Read(Filter{})
	if err != nil {
		return nil, true, err
	}

	now := time.Now()
	var totalErrs, incomeErrs []float64
	for _, pp := range p.Periods {
		if pp.Period.End().After(now) {
			break
		}
		before, err := Reconstruct(events, pp.Period.Start().Add(-time.Nanosecond))
		if err != nil {
			return nil, true, err
		}
		actual, err := Reconstruct(events, pp.Period.End().Add(-time.Nanosecond))
		if err != nil {
			return nil, true, err
		}
		if av := actual.TotalValue().AsFloat(); av != 0 {
			totalErrs = append(totalErrs, 100*(pp.Total.AsFloat()-av)/av)
		}
		income := actual.OptionIncome.Add(actual.DividendIncome).Add(actual.RealizedGains).
			Sub(before.OptionIncome).Sub(before.DividendIncome).Sub(before.RealizedGains)
		if ai := income.AsFloat(); ai != 0 {
			incomeErrs = append(incomeErrs, 100*(pp.Income.AsFloat()-ai)/ai)
		}
	}
	if len(totalErrs) == 0 {
		return nil, true, nil
	}

	total := metricAccuracy(totalErrs)
	acc := &Accuracy{
		ComputedAt:    now.UTC(),
		Periods:       total.Periods,
		MeanAbsErrPct: total.MeanAbsErrPct,
		MeanErrPct:    total.MeanErrPct,
		PerPeriod:     total.PerPeriodPct,
		Metrics:       map[string]MetricAccuracy{"total value": total},
	}
	if len(incomeErrs) > 0 {
		acc.Metrics["income"] = metricAccuracy(incomeErrs)
	}
	p.Accuracy = acc
	if err := g.save(p); err != nil {
		return nil, true, err
	}
	return acc, true, nil
}

func metricAccuracy(errsPct []float64) MetricAccuracy {
	var sumAbs, sum float64
	for _, e := range errsPct {
		sumAbs += math.Abs(e)
		sum += e
	}
	n := float64(len(errsPct))
	return MetricAccuracy{
		Periods:       len(errsPct),
		MeanAbsErrPct: sumAbs / n,
		MeanErrPct:    sum / n,
		PerPeriodPct:  errsPct,
	}
}

// Calibrate averages the signed errors of every scored projection into a
// single correction multiplier for future baselines, and persists it.
func (g *ProjectionEngine) Calibrate() (*Calibration, error) {
	projections, err := g.List()
	if err != nil {
		return nil, err
	}
	var sum float64
	var n int
	for _, p := range projections {
		if p.Accuracy == nil {
			continue
		}
		sum += p.Accuracy.MeanErrPct / 100
		n++
	}
	cal := &Calibration{ComputedAt: time.Now().UTC(), Projections: n, Multiplier: 1}
	if n > 0 {
		// Projections that ran high get damped, low ones boosted.
		cal.Multiplier = 1 / (1 + sum/float64(n))
	}

	if err := os.MkdirAll(g.dir(), 0755); err != nil {
		return nil, &IOError{Op: "create", Path: g.dir(), Err: err}
	}
	data, err := json.MarshalIndent(cal, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal calibration: %w", err)
	}
	path := filepath.Join(g.dir(), calibrationFilename)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return nil, &IOError{Op: "write", Path: path, Err: err}
	}
	return cal, nil
}

// LoadCalibration returns the stored calibration, or nil when none was
// ever computed.
func (g *ProjectionEngine) LoadCalibration() (*Calibration, error) {
	path := filepath.Join(g.dir(), calibrationFilename)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	var cal Calibration
	if err := json.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("failed to decode calibration: %w", err)
	}
	return &cal, nil
}
