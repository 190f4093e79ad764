package foliolog

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies an event's type and its payload schema.
type Kind string

const (
	KindTrade        Kind = "trade"
	KindOptionOpen   Kind = "option-open"
	KindOptionClose  Kind = "option-close"
	KindOptionExpire Kind = "option-expire"
	KindDividend     Kind = "dividend"
	KindDeposit      Kind = "deposit"
	KindWithdraw     Kind = "withdraw"
	KindUpdatePrice  Kind = "update-price"
	KindNote         Kind = "note"
	KindGoal         Kind = "goal"
	KindStrategy     Kind = "strategy"
)

// Trade sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Option rights.
const (
	RightCall = "call"
	RightPut  = "put"
)

// SyntheticIDBase is the start of the id namespace reserved for events
// injected into alternate histories. Real events never reach it.
const SyntheticIDBase int64 = 1_000_000_000

// Payload is the kind-specific body of an event.
type Payload interface {
	Kind() Kind
	// Ticker returns the security this payload concerns, or "" when it
	// concerns the whole portfolio (cash movements, goal, strategy).
	Ticker() string
	Validate() error
	Equal(Payload) bool
}

// Rationale records why a decision was made, for later review and for the
// discipline statistics that drive projections.
type Rationale struct {
	Primary    string  `json:"primary"`
	Secondary  string  `json:"secondary,omitempty"`
	Confidence float64 `json:"confidence"`
	Analysis   string  `json:"analysis,omitempty"`
}

func (r *Rationale) validate() error {
	if r == nil {
		return nil
	}
	if r.Primary == "" {
		return fmt.Errorf("rationale needs a primary motive")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("rationale confidence %v out of [0,1]", r.Confidence)
	}
	return nil
}

// Event is one immutable row of the log. ID is assigned by the store on
// append and is zero until then.
type Event struct {
	ID         int64
	Timestamp  time.Time
	Kind       Kind
	Payload    Payload
	Rationale  *Rationale
	Tags       []string
	CashImpact Money
}

// Validate checks the event is appendable: a known kind matching its
// payload, a timestamp, and a well-formed rationale.
func (e Event) Validate() error {
	if e.Payload == nil {
		return &ValidationError{Kind: e.Kind, Reason: "missing payload"}
	}
	if e.Kind != e.Payload.Kind() {
		return &ValidationError{Kind: e.Kind, Reason: fmt.Sprintf("payload is a %s", e.Payload.Kind())}
	}
	if e.Timestamp.IsZero() {
		return &ValidationError{Kind: e.Kind, Reason: "missing timestamp"}
	}
	if err := e.Payload.Validate(); err != nil {
		return &ValidationError{Kind: e.Kind, Reason: err.Error()}
	}
	if err := e.Rationale.validate(); err != nil {
		return &ValidationError{Kind: e.Kind, Reason: err.Error()}
	}
	return nil
}

// Equal reports whether two events are the same record with the same content.
func (e Event) Equal(o Event) bool {
	if e.ID != o.ID || !e.Timestamp.Equal(o.Timestamp) || e.Kind != o.Kind {
		return false
	}
	if !e.CashImpact.Equal(o.CashImpact) {
		return false
	}
	if (e.Rationale == nil) != (o.Rationale == nil) {
		return false
	}
	if e.Rationale != nil && *e.Rationale != *o.Rationale {
		return false
	}
	if len(e.Tags) != len(o.Tags) {
		return false
	}
	for i := range e.Tags {
		if e.Tags[i] != o.Tags[i] {
			return false
		}
	}
	if (e.Payload == nil) != (o.Payload == nil) {
		return false
	}
	return e.Payload == nil || e.Payload.Equal(o.Payload)
}

// Ticker returns the payload's ticker, or "".
func (e Event) Ticker() string {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Ticker()
}

// WithRationale returns a copy of the event carrying the given rationale.
func (e Event) WithRationale(r Rationale) Event {
	e.Rationale = &r
	return e
}

// WithTags returns a copy of the event carrying the given tags.
func (e Event) WithTags(tags ...string) Event {
	e.Tags = tags
	return e
}

// before orders events by (timestamp, id), the canonical replay order.
func (e Event) before(o Event) bool {
	if !e.Timestamp.Equal(o.Timestamp) {
		return e.Timestamp.Before(o.Timestamp)
	}
	return e.ID < o.ID
}

// MarshalJSON implements the json.Marshaler interface for Event.
func (e Event) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("id", e.ID)
	w.Append("timestamp", e.Timestamp.UTC().Format(time.RFC3339Nano))
	w.Append("kind", e.Kind)
	w.Append("payload", e.Payload)
	if e.Rationale != nil {
		w.Append("rationale", e.Rationale)
	}
	if len(e.Tags) > 0 {
		w.Append("tags", e.Tags)
	}
	if !e.CashImpact.IsZero() {
		w.Append("cashImpact", e.CashImpact)
	}
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface for Event. The
// payload is decoded according to the row's kind.
func (e *Event) UnmarshalJSON(data []byte) error {
	return decodeEvent(data, e)
}

// TradePayload is a buy or sell of a security for a total amount.
type TradePayload struct {
	Security string   `json:"security"`
	Side     string   `json:"side"`
	Quantity Quantity `json:"quantity"`
	Amount   Money    `json:"amount"`
}

func (p TradePayload) Kind() Kind     { return KindTrade }
func (p TradePayload) Ticker() string { return p.Security }

func (p TradePayload) Validate() error {
	if p.Security == "" {
		return fmt.Errorf("missing security")
	}
	if p.Side != SideBuy && p.Side != SideSell {
		return fmt.Errorf("side must be %q or %q, got %q", SideBuy, SideSell, p.Side)
	}
	if !p.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive, got %s", p.Quantity)
	}
	if p.Amount.IsNegative() || p.Amount.IsZero() {
		return fmt.Errorf("amount must be positive, got %s", p.Amount)
	}
	return nil
}

func (p TradePayload) Equal(o Payload) bool {
	q, ok := o.(TradePayload)
	return ok && p.Security == q.Security && p.Side == q.Side &&
		p.Quantity.Equal(q.Quantity) && p.Amount.Equal(q.Amount)
}

func (p TradePayload) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("security", p.Security)
	w.Append("side", p.Side)
	w.Append("quantity", p.Quantity)
	w.Append("amount", p.Amount)
	return w.MarshalJSON()
}

// NewTrade builds a trade event; the cash impact is the signed amount
// (negative for a buy, positive for a sell).
func NewTrade(ts time.Time, security, side string, quantity Quantity, amount Money) Event {
	impact := amount
	if side == SideBuy {
		impact = amount.Neg()
	}
	return Event{
		Timestamp:  ts,
		Kind:       KindTrade,
		Payload:    TradePayload{Security: security, Side: side, Quantity: quantity, Amount: amount},
		CashImpact: impact,
	}
}

// OptionOpenPayload opens an option position on an underlying.
type OptionOpenPayload struct {
	Underlying string    `json:"underlying"`
	Right      string    `json:"right"`
	Short      bool      `json:"short,omitempty"`
	Strike     Money     `json:"strike"`
	Contracts  Quantity  `json:"contracts"`
	Premium    Money     `json:"premium"`
	Expiry     time.Time `json:"expiry"`
}

func (p OptionOpenPayload) Kind() Kind     { return KindOptionOpen }
func (p OptionOpenPayload) Ticker() string { return p.Underlying }

func (p OptionOpenPayload) Validate() error {
	if p.Underlying == "" {
		return fmt.Errorf("missing underlying")
	}
	if p.Right != RightCall && p.Right != RightPut {
		return fmt.Errorf("right must be %q or %q, got %q", RightCall, RightPut, p.Right)
	}
	if !p.Contracts.IsPositive() {
		return fmt.Errorf("contracts must be positive, got %s", p.Contracts)
	}
	if p.Strike.IsNegative() || p.Strike.IsZero() {
		return fmt.Errorf("strike must be positive, got %s", p.Strike)
	}
	if p.Premium.IsNegative() {
		return fmt.Errorf("premium cannot be negative, got %s", p.Premium)
	}
	if p.Expiry.IsZero() {
		return fmt.Errorf("missing expiry")
	}
	return nil
}

func (p OptionOpenPayload) Equal(o Payload) bool {
	q, ok := o.(OptionOpenPayload)
	return ok && p.Underlying == q.Underlying && p.Right == q.Right && p.Short == q.Short &&
		p.Strike.Equal(q.Strike) && p.Contracts.Equal(q.Contracts) &&
		p.Premium.Equal(q.Premium) && p.Expiry.Equal(q.Expiry)
}

func (p OptionOpenPayload) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("underlying", p.Underlying)
	w.Append("right", p.Right)
	if p.Short {
		w.Append("short", true)
	}
	w.Append("strike", p.Strike)
	w.Append("contracts", p.Contracts)
	w.Append("premium", p.Premium)
	w.Append("expiry", p.Expiry.UTC().Format(time.RFC3339Nano))
	return w.MarshalJSON()
}

// NewOptionOpen builds an option-open event. Selling (short) receives the
// premium; buying (long) pays it.
func NewOptionOpen(ts time.Time, p OptionOpenPayload) Event {
	impact := p.Premium
	if !p.Short {
		impact = p.Premium.Neg()
	}
	return Event{Timestamp: ts, Kind: KindOptionOpen, Payload: p, CashImpact: impact}
}

// OptionClosePayload closes an open option position before expiry.
type OptionClosePayload struct {
	OpenID int64 `json:"openId"`
	Cost   Money `json:"cost"`
}

func (p OptionClosePayload) Kind() Kind     { return KindOptionClose }
func (p OptionClosePayload) Ticker() string { return "" }

func (p OptionClosePayload) Validate() error {
	if p.OpenID <= 0 {
		return fmt.Errorf("missing open event id")
	}
	if p.Cost.IsNegative() {
		return fmt.Errorf("cost cannot be negative, got %s", p.Cost)
	}
	return nil
}

func (p OptionClosePayload) Equal(o Payload) bool {
	q, ok := o.(OptionClosePayload)
	return ok && p.OpenID == q.OpenID && p.Cost.Equal(q.Cost)
}

func (p OptionClosePayload) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("openId", p.OpenID)
	w.Append("cost", p.Cost)
	return w.MarshalJSON()
}

// NewOptionClose builds an option-close event; closing pays the cost back
// (short) so the cash impact is the negated cost.
func NewOptionClose(ts time.Time, openID int64, cost Money) Event {
	return Event{
		Timestamp:  ts,
		Kind:       KindOptionClose,
		Payload:    OptionClosePayload{OpenID: openID, Cost: cost},
		CashImpact: cost.Neg(),
	}
}

// OptionExpirePayload expires an open option position, optionally with
// assignment of the underlying.
type OptionExpirePayload struct {
	OpenID           int64    `json:"openId"`
	Assigned         bool     `json:"assigned,omitempty"`
	AssignedQuantity Quantity `json:"assignedQuantity,omitempty"`
	AssignedCost     Money    `json:"assignedCost,omitempty"`
}

func (p OptionExpirePayload) Kind() Kind     { return KindOptionExpire }
func (p OptionExpirePayload) Ticker() string { return "" }

func (p OptionExpirePayload) Validate() error {
	if p.OpenID <= 0 {
		return fmt.Errorf("missing open event id")
	}
	if p.Assigned && !p.AssignedQuantity.IsPositive() {
		return fmt.Errorf("assignment needs a positive quantity, got %s", p.AssignedQuantity)
	}
	if !p.Assigned && (!p.AssignedQuantity.IsZero() || !p.AssignedCost.IsZero()) {
		return fmt.Errorf("assignment fields set on a worthless expiry")
	}
	return nil
}

func (p OptionExpirePayload) Equal(o Payload) bool {
	q, ok := o.(OptionExpirePayload)
	return ok && p.OpenID == q.OpenID && p.Assigned == q.Assigned &&
		p.AssignedQuantity.Equal(q.AssignedQuantity) && p.AssignedCost.Equal(q.AssignedCost)
}

func (p OptionExpirePayload) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("openId", p.OpenID)
	if p.Assigned {
		w.Append("assigned", true)
		w.Append("assignedQuantity", p.AssignedQuantity)
		w.Append("assignedCost", p.AssignedCost)
	}
	return w.MarshalJSON()
}

// NewOptionExpire builds a worthless-expiry event (no cash effect).
func NewOptionExpire(ts time.Time, openID int64) Event {
	return Event{Timestamp: ts, Kind: KindOptionExpire, Payload: OptionExpirePayload{OpenID: openID}}
}

// NewOptionAssignment builds an expiry-with-assignment event. The cash
// impact is the signed cash flow of the assignment (negative for a put
// assignment buying shares at strike).
func NewOptionAssignment(ts time.Time, openID int64, quantity Quantity, cost Money, cashImpact Money) Event {
	return Event{
		Timestamp: ts,
		Kind:      KindOptionExpire,
		Payload: OptionExpirePayload{
			OpenID:           openID,
			Assigned:         true,
			AssignedQuantity: quantity,
			AssignedCost:     cost,
		},
		CashImpact: cashImpact,
	}
}

// DividendPayload records a cash dividend from a security.
type DividendPayload struct {
	Security string `json:"security"`
	Amount   Money  `json:"amount"`
}

func (p DividendPayload) Kind() Kind     { return KindDividend }
func (p DividendPayload) Ticker() string { return p.Security }

func (p DividendPayload) Validate() error {
	if p.Security == "" {
		return fmt.Errorf("missing security")
	}
	if p.Amount.IsNegative() || p.Amount.IsZero() {
		return fmt.Errorf("amount must be positive, got %s", p.Amount)
	}
	return nil
}

func (p DividendPayload) Equal(o Payload) bool {
	q, ok := o.(DividendPayload)
	return ok && p.Security == q.Security && p.Amount.Equal(q.Amount)
}

func (p DividendPayload) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("security", p.Security)
	w.Append("amount", p.Amount)
	return w.MarshalJSON()
}

// NewDividend builds a dividend event; the amount is received as cash.
func NewDividend(ts time.Time, security string, amount Money) Event {
	return Event{
		Timestamp:  ts,
		Kind:       KindDividend,
		Payload:    DividendPayload{Security: security, Amount: amount},
		CashImpact: amount,
	}
}

// DepositPayload adds external cash to the portfolio.
type DepositPayload struct {
	Amount Money `json:"amount"`
}

func (p DepositPayload) Kind() Kind     { return KindDeposit }
func (p DepositPayload) Ticker() string { return "" }

func (p DepositPayload) Validate() error {
	if p.Amount.IsNegative() || p.Amount.IsZero() {
		return fmt.Errorf("amount must be positive, got %s", p.Amount)
	}
	return nil
}

func (p DepositPayload) Equal(o Payload) bool {
	q, ok := o.(DepositPayload)
	return ok && p.Amount.Equal(q.Amount)
}

func (p DepositPayload) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("amount", p.Amount)
	return w.MarshalJSON()
}

// NewDeposit builds a deposit event.
func NewDeposit(ts time.Time, amount Money) Event {
	return Event{Timestamp: ts, Kind: KindDeposit, Payload: DepositPayload{Amount: amount}, CashImpact: amount}
}

// WithdrawPayload removes external cash from the portfolio.
type WithdrawPayload struct {
	Amount Money `json:"amount"`
}

func (p WithdrawPayload) Kind() Kind     { return KindWithdraw }
func (p WithdrawPayload) Ticker() string { return "" }

func (p WithdrawPayload) Validate() error {
	if p.Amount.IsNegative() || p.Amount.IsZero() {
		return fmt.Errorf("amount must be positive, got %s", p.Amount)
	}
	return nil
}

func (p WithdrawPayload) Equal(o Payload) bool {
	q, ok := o.(WithdrawPayload)
	return ok && p.Amount.Equal(q.Amount)
}

func (p WithdrawPayload) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("amount", p.Amount)
	return w.MarshalJSON()
}

// NewWithdraw builds a withdraw event.
func NewWithdraw(ts time.Time, amount Money) Event {
	return Event{Timestamp: ts, Kind: KindWithdraw, Payload: WithdrawPayload{Amount: amount}, CashImpact: amount.Neg()}
}

// PriceUpdatePayload marks securities to the given prices. It never touches
// cost basis.
type PriceUpdatePayload struct {
	Currency string                     `json:"currency"`
	Prices   map[string]decimal.Decimal `json:"prices"`
}

func (p PriceUpdatePayload) Kind() Kind     { return KindUpdatePrice }
func (p PriceUpdatePayload) Ticker() string { return "" }

func (p PriceUpdatePayload) Validate() error {
	if len(p.Prices) == 0 {
		return fmt.Errorf("no prices")
	}
	for sec, price := range p.Prices {
		if sec == "" {
			return fmt.Errorf("empty security name")
		}
		if price.IsNegative() {
			return fmt.Errorf("negative price for %s: %s", sec, price)
		}
	}
	return nil
}

func (p PriceUpdatePayload) Equal(o Payload) bool {
	q, ok := o.(PriceUpdatePayload)
	if !ok || p.Currency != q.Currency || len(p.Prices) != len(q.Prices) {
		return false
	}
	for sec, price := range p.Prices {
		other, found := q.Prices[sec]
		if !found || !price.Equal(other) {
			return false
		}
	}
	return true
}

// NewPriceUpdate builds an update-price event.
func NewPriceUpdate(ts time.Time, currency string, prices map[string]decimal.Decimal) Event {
	return Event{Timestamp: ts, Kind: KindUpdatePrice, Payload: PriceUpdatePayload{Currency: currency, Prices: prices}}
}

// NotePayload attaches free-form text to a security's thesis (or the general
// journal when Security is empty). Corrects references an earlier event this
// note amends; the referenced event stays in the log untouched.
type NotePayload struct {
	Security string `json:"security,omitempty"`
	Text     string `json:"text"`
	Corrects int64  `json:"corrects,omitempty"`
}

func (p NotePayload) Kind() Kind     { return KindNote }
func (p NotePayload) Ticker() string { return p.Security }

func (p NotePayload) Validate() error {
	if p.Text == "" {
		return fmt.Errorf("empty note")
	}
	if p.Corrects < 0 {
		return fmt.Errorf("corrects must reference an event id")
	}
	return nil
}

func (p NotePayload) Equal(o Payload) bool {
	q, ok := o.(NotePayload)
	return ok && p == q
}

func (p NotePayload) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Optional("security", p.Security)
	w.Append("text", p.Text)
	w.Optional("corrects", p.Corrects)
	return w.MarshalJSON()
}

// NewNote builds a note event.
func NewNote(ts time.Time, security, text string) Event {
	return Event{Timestamp: ts, Kind: KindNote, Payload: NotePayload{Security: security, Text: text}}
}

// NewCorrection builds a note event that amends an earlier event.
func NewCorrection(ts time.Time, corrects int64, text string) Event {
	return Event{Timestamp: ts, Kind: KindNote, Payload: NotePayload{Text: text, Corrects: corrects}}
}

// GoalPayload replaces the active portfolio goal.
type GoalPayload struct {
	Text string `json:"text"`
}

func (p GoalPayload) Kind() Kind     { return KindGoal }
func (p GoalPayload) Ticker() string { return "" }

func (p GoalPayload) Validate() error {
	if p.Text == "" {
		return fmt.Errorf("empty goal")
	}
	return nil
}

func (p GoalPayload) Equal(o Payload) bool {
	q, ok := o.(GoalPayload)
	return ok && p == q
}

// NewGoal builds a goal event.
func NewGoal(ts time.Time, text string) Event {
	return Event{Timestamp: ts, Kind: KindGoal, Payload: GoalPayload{Text: text}}
}

// StrategyPayload replaces the active portfolio strategy.
type StrategyPayload struct {
	Text string `json:"text"`
}

func (p StrategyPayload) Kind() Kind     { return KindStrategy }
func (p StrategyPayload) Ticker() string { return "" }

func (p StrategyPayload) Validate() error {
	if p.Text == "" {
		return fmt.Errorf("empty strategy")
	}
	return nil
}

func (p StrategyPayload) Equal(o Payload) bool {
	q, ok := o.(StrategyPayload)
	return ok && p == q
}

// NewStrategy builds a strategy event.
func NewStrategy(ts time.Time, text string) Event {
	return Event{Timestamp: ts, Kind: KindStrategy, Payload: StrategyPayload{Text: text}}
}
