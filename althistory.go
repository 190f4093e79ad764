package foliolog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const whatifDirname = "whatif"

// Reality names the real event stream in comparisons.
const Reality = "reality"

// ModificationType identifies how an alternate history edits the stream.
type ModificationType string

const (
	ModRemoveTicker  ModificationType = "remove-ticker"
	ModScalePosition ModificationType = "scale-position"
	ModInjectEvent   ModificationType = "inject-event"
)

// Modification is one edit applied to a copy of the real stream. Edits are
// applied in declaration order.
type Modification struct {
	Type   ModificationType `json:"type"`
	Ticker string           `json:"ticker,omitempty"` // remove-ticker, scale-position
	Factor decimal.Decimal  `json:"factor,omitempty"` // scale-position
	Event  *Event           `json:"event,omitempty"`  // inject-event
}

func (m Modification) validate() error {
	switch m.Type {
	case ModRemoveTicker:
		if m.Ticker == "" {
			return &ValidationError{Reason: "remove-ticker needs a ticker"}
		}
	case ModScalePosition:
		if m.Ticker == "" {
			return &ValidationError{Reason: "scale-position needs a ticker"}
		}
		if m.Factor.IsNegative() {
			return &ValidationError{Reason: fmt.Sprintf("scale-position factor cannot be negative, got %s", m.Factor)}
		}
	case ModInjectEvent:
		if m.Event == nil {
			return &ValidationError{Reason: "inject-event needs an event"}
		}
		if err := m.Event.Validate(); err != nil {
			return err
		}
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown modification type %q", m.Type)}
	}
	return nil
}

// String renders the modification for listings and diff descriptions.
func (m Modification) String() string {
	switch m.Type {
	case ModRemoveTicker:
		return fmt.Sprintf("remove %s", m.Ticker)
	case ModScalePosition:
		return fmt.Sprintf("scale %s by %s", m.Ticker, m.Factor)
	case ModInjectEvent:
		return fmt.Sprintf("inject %s at %s", m.Event.Kind, m.Event.Timestamp.Format(time.RFC3339))
	}
	return string(m.Type)
}

// AlternateHistory is a named, persisted edit-set over the real stream. The
// real log is never touched; the history is materialized on demand.
type AlternateHistory struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	CreatedAt     time.Time      `json:"createdAt"`
	AsOf          time.Time      `json:"asOf"`
	Modifications []Modification `json:"modifications"`
}

// AlternateHistoryEngine creates, stores, materializes, and compares
// alternate histories.
type AlternateHistoryEngine struct {
	store *EventStore
}

// NewAlternateHistoryEngine returns an engine over the store's directory.
func NewAlternateHistoryEngine(store *EventStore) *AlternateHistoryEngine {
	return &AlternateHistoryEngine{store: store}
}

func (g *AlternateHistoryEngine) dir() string { return filepath.Join(g.store.Dir(), whatifDirname) }

// Create validates the modifications and persists a new history. A zero
// asOf means now.
func (g *AlternateHistoryEngine) Create(name string, asOf time.Time, mods []Modification) (*AlternateHistory, error) {
	if name == "" {
		return nil, &ValidationError{Reason: "alternate history needs a name"}
	}
	if len(mods) == 0 {
		return nil, &ValidationError{Reason: "alternate history needs at least one modification"}
	}
	for _, m := range mods {
		if err := m.validate(); err != nil {
			return nil, err
		}
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}
	if err := g.checkTickers(mods, asOf); err != nil {
		return nil, err
	}
	h := &AlternateHistory{
		ID:            uuid.NewString(),
		Name:          name,
		CreatedAt:     time.Now().UTC(),
		AsOf:          asOf.UTC(),
		Modifications: mods,
	}
	if err := g.save(h); err != nil {
		return nil, err
	}
	return h, nil
}

// checkTickers rejects remove and scale modifications naming a ticker that
// no event up to asOf ever mentions: an edit against a ticker absent from
// history would silently change nothing.
func (g *AlternateHistoryEngine) checkTickers(mods []Modification, asOf time.Time) error {
	needed := make(map[string]bool)
	for _, m := range mods {
		if m.Type == ModRemoveTicker || m.Type == ModScalePosition {
			needed[m.Ticker] = true
		}
	}
	if len(needed) == 0 {
		return nil
	}
	events, err := g.store.Read(Filter{Until: asOf})
	if err != nil {
		return err
	}
	known := make(map[string]bool)
	for _, e := range events {
		if t := e.Ticker(); t != "" {
			known[t] = true
		}
		if p, ok := e.Payload.(PriceUpdatePayload); ok {
			for sec := range p.Prices {
				known[sec] = true
			}
		}
	}
	for _, m := range mods {
		if needed[m.Ticker] && !known[m.Ticker] {
			return &ValidationError{Reason: fmt.Sprintf("no events mention %s", m.Ticker)}
		}
	}
	return nil
}

func (g *AlternateHistoryEngine) save(h *AlternateHistory) error {
	if err := os.MkdirAll(g.dir(), 0755); err != nil {
		return &IOError{Op: "create", Path: g.dir(), Err: err}
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal alternate history %s: %w", h.ID, err)
	}
	path := filepath.Join(g.dir(), h.ID+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Get loads a history by id, or returns false when it does not exist.
func (g *AlternateHistoryEngine) Get(id string) (*AlternateHistory, bool, error) {
	path := filepath.Join(g.dir(), id+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &IOError{Op: "read", Path: path, Err: err}
	}
	var h AlternateHistory
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, false, fmt.Errorf("failed to decode alternate history %s: %w", id, err)
	}
	return &h, true, nil
}

// List returns all stored histories, newest first.
func (g *AlternateHistoryEngine) List() ([]AlternateHistory, error) {
	entries, err := os.ReadDir(g.dir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &IOError{Op: "read", Path: g.dir(), Err: err}
	}
	var out []AlternateHistory
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		h, ok, err := g.Get(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes a stored history. The real log is unaffected.
func (g *AlternateHistoryEngine) Delete(id string) (bool, error) {
	path := filepath.Join(g.dir(), id+".json")
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &IOError{Op: "remove", Path: path, Err: err}
	}
	return true, nil
}

// Materialize copies the real events up to the history's asOf and applies
// its modifications in order, returning the alternate stream in
// (timestamp, id) order. The real log is read, never written.
func (g *AlternateHistoryEngine) Materialize(h *AlternateHistory) ([]Event, error) {
	events, err := g.store.Read(Filter{Until: h.AsOf})
	if err != nil {
		return nil, err
	}
	return applyModifications(events, h.Modifications)
}

func applyModifications(events []Event, mods []Modification) ([]Event, error) {
	out := make([]Event, len(events))
	copy(out, events)

	syntheticID := SyntheticIDBase
	for _, m := range mods {
		if err := m.validate(); err != nil {
			return nil, err
		}
		switch m.Type {
		case ModRemoveTicker:
			out = removeTicker(out, m.Ticker)
		case ModScalePosition:
			out = scalePosition(out, m.Ticker, m.Factor)
		case ModInjectEvent:
			injected := *m.Event
			syntheticID++
			injected.ID = syntheticID
			injected.Timestamp = injected.Timestamp.UTC()
			out = append(out, injected)
		}
	}
	sortEvents(out)
	return out, nil
}

// removeTicker drops every event concerning the ticker, including option
// close and expiry events that reference a dropped open.
func removeTicker(events []Event, ticker string) []Event {
	removedOpens := make(map[int64]bool)
	var out []Event
	for _, e := range events {
		if e.Ticker() == ticker {
			if e.Kind == KindOptionOpen {
				removedOpens[e.ID] = true
			}
			continue
		}
		if id, ok := referencedOpen(e); ok && removedOpens[id] {
			continue
		}
		if p, ok := e.Payload.(PriceUpdatePayload); ok {
			if trimmed, keep := dropPrice(p, ticker); keep {
				e.Payload = trimmed
			} else {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// referencedOpen returns the open-event id an option close or expiry
// refers to.
func referencedOpen(e Event) (int64, bool) {
	switch p := e.Payload.(type) {
	case OptionClosePayload:
		return p.OpenID, true
	case OptionExpirePayload:
		return p.OpenID, true
	}
	return 0, false
}

func dropPrice(p PriceUpdatePayload, ticker string) (PriceUpdatePayload, bool) {
	if _, ok := p.Prices[ticker]; !ok {
		return p, true
	}
	prices := make(map[string]decimal.Decimal, len(p.Prices))
	for sec, price := range p.Prices {
		if sec != ticker {
			prices[sec] = price
		}
	}
	if len(prices) == 0 {
		return p, false
	}
	p.Prices = prices
	return p, true
}

// scalePosition multiplies the ticker's position flow by the factor:
// trade quantities and amounts, dividends, option contracts and premiums,
// and the cash impacts of all of those. A factor of zero keeps the events
// in the stream with zeroed flow, so the comparison classifies them as
// modified rather than removed.
func scalePosition(events []Event, ticker string, factor decimal.Decimal) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	scaledOpens := make(map[int64]bool)
	for i, e := range out {
		switch p := e.Payload.(type) {
		case TradePayload:
			if p.Security != ticker {
				continue
			}
			p.Quantity = p.Quantity.Scale(factor)
			p.Amount = p.Amount.Scale(factor)
			e.Payload = p
		case DividendPayload:
			if p.Security != ticker {
				continue
			}
			p.Amount = p.Amount.Scale(factor)
			e.Payload = p
		case OptionOpenPayload:
			if p.Underlying != ticker {
				continue
			}
			scaledOpens[e.ID] = true
			p.Contracts = p.Contracts.Scale(factor)
			p.Premium = p.Premium.Scale(factor)
			e.Payload = p
		case OptionClosePayload:
			if !scaledOpens[p.OpenID] {
				continue
			}
			p.Cost = p.Cost.Scale(factor)
			e.Payload = p
		case OptionExpirePayload:
			if !scaledOpens[p.OpenID] {
				continue
			}
			p.AssignedQuantity = p.AssignedQuantity.Scale(factor)
			p.AssignedCost = p.AssignedCost.Scale(factor)
			e.Payload = p
		default:
			continue
		}
		e.CashImpact = e.CashImpact.Scale(factor)
		out[i] = e
	}
	return out
}

// MetricDelta is one compared metric.
type MetricDelta struct {
	Name  string `json:"name"`
	Base  Money  `json:"base"`
	Alt   Money  `json:"alt"`
	Delta Money  `json:"delta"`
}

// Divergence is one event-level difference between two streams, classified
// relative to the base: an event only in the alternate stream was added,
// one only in the base was removed, and one present in both with different
// content was modified.
type Divergence struct {
	Timestamp   time.Time `json:"timestamp"`
	ID          int64     `json:"id"`
	Kind        Kind      `json:"kind"`
	Class       string    `json:"class"` // added, removed, modified
	Description string    `json:"description"`
}

// Comparison is the full diff of an alternate history against a base
// stream (usually reality).
type Comparison struct {
	BaseID      string           `json:"baseId"`
	AltID       string           `json:"altId"`
	AsOf        time.Time        `json:"asOf"`
	Metrics     []MetricDelta    `json:"metrics"`
	Holdings    map[string]Money `json:"holdings"` // per-ticker market value delta
	Divergences []Divergence     `json:"divergences"`
}

// Compare materializes the history, reduces both streams as of the
// history's horizon, and returns metric deltas plus the classified,
// timestamp-ordered divergence list.
func (g *AlternateHistoryEngine) Compare(h *AlternateHistory) (*Comparison, error) {
	base, err := g.store.Read(Filter{Until: h.AsOf})
	if err != nil {
		return nil, err
	}
	alt, err := applyModifications(base, h.Modifications)
	if err != nil {
		return nil, err
	}
	return compareStreams(Reality, h.ID, h.AsOf, base, alt)
}

// CompareHistories diffs two stored histories against each other, the
// first being the base.
func (g *AlternateHistoryEngine) CompareHistories(baseID, altID string) (*Comparison, error) {
	var base, alt []Event
	var asOf time.Time

	load := func(id string) (*AlternateHistory, []Event, error) {
		h, ok, err := g.Get(id)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, &ValidationError{Reason: fmt.Sprintf("no alternate history %s", id)}
		}
		events, err := g.Materialize(h)
		return h, events, err
	}

	if baseID == Reality {
		alt2, ok, err := g.Get(altID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &ValidationError{Reason: fmt.Sprintf("no alternate history %s", altID)}
		}
		return g.Compare(alt2)
	}

	baseH, baseEvents, err := load(baseID)
	if err != nil {
		return nil, err
	}
	base = baseEvents
	asOf = baseH.AsOf

	if altID == Reality {
		alt, err = g.store.Read(Filter{Until: asOf})
		if err != nil {
			return nil, err
		}
	} else {
		_, alt, err = load(altID)
		if err != nil {
			return nil, err
		}
	}
	return compareStreams(baseID, altID, asOf, base, alt)
}

func compareStreams(baseID, altID string, asOf time.Time, base, alt []Event) (*Comparison, error) {
	baseState, err := Reconstruct(base, asOf)
	if err != nil {
		return nil, fmt.Errorf("reducing base stream: %w", err)
	}
	altState, err := Reconstruct(alt, asOf)
	if err != nil {
		return nil, fmt.Errorf("reducing alternate stream: %w", err)
	}

	delta := func(name string, b, a Money) MetricDelta {
		return MetricDelta{Name: name, Base: b, Alt: a, Delta: a.Sub(b)}
	}
	metrics := []MetricDelta{
		delta("total value", baseState.TotalValue(), altState.TotalValue()),
		delta("cash", baseState.TotalCash(), altState.TotalCash()),
		delta("market value", baseState.MarketValue(), altState.MarketValue()),
		delta("realized gains", baseState.RealizedGains, altState.RealizedGains),
		delta("dividend income", baseState.DividendIncome, altState.DividendIncome),
		delta("option income", baseState.OptionIncome, altState.OptionIncome),
		delta("external flow", baseState.ExternalFlow, altState.ExternalFlow),
	}

	holdings := make(map[string]Money)
	for sec, h := range baseState.Holdings {
		ah := altState.Holdings[sec]
		d := ah.MarketValue().Sub(h.MarketValue())
		if !d.IsZero() {
			holdings[sec] = d
		}
	}
	for sec, h := range altState.Holdings {
		if _, seen := baseState.Holdings[sec]; seen {
			continue
		}
		if v := h.MarketValue(); !v.IsZero() {
			holdings[sec] = v
		}
	}

	return &Comparison{
		BaseID:      baseID,
		AltID:       altID,
		AsOf:        asOf,
		Metrics:     metrics,
		Holdings:    holdings,
		Divergences: divergences(base, alt),
	}, nil
}

// divergences walks both streams by event id and classifies every
// difference, ordered by timestamp then id.
func divergences(base, alt []Event) []Divergence {
	baseByID := make(map[int64]Event, len(base))
	for _, e := range base {
		baseByID[e.ID] = e
	}
	altByID := make(map[int64]Event, len(alt))
	for _, e := range alt {
		altByID[e.ID] = e
	}

	var out []Divergence
	for _, e := range base {
		a, ok := altByID[e.ID]
		if !ok {
			out = append(out, Divergence{
				Timestamp:   e.Timestamp,
				ID:          e.ID,
				Kind:        e.Kind,
				Class:       "removed",
				Description: fmt.Sprintf("%s removed from the stream", e.Kind),
			})
			continue
		}
		if !e.Equal(a) {
			out = append(out, Divergence{
				Timestamp:   e.Timestamp,
				ID:          e.ID,
				Kind:        e.Kind,
				Class:       "modified",
				Description: fmt.Sprintf("%s modified", e.Kind),
			})
		}
	}
	for _, a := range alt {
		if _, ok := baseByID[a.ID]; ok {
			continue
		}
		out = append(out, Divergence{
			Timestamp:   a.Timestamp,
			ID:          a.ID,
			Kind:        a.Kind,
			Class:       "added",
			Description: fmt.Sprintf("%s added to the stream", a.Kind),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
