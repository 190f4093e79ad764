package foliolog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// eventRow is the wire shape of one log line; the payload is decoded in a
// second pass once the kind is known.
type eventRow struct {
	ID         int64           `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Rationale  *Rationale      `json:"rationale,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	CashImpact Money           `json:"cashImpact,omitempty"`
}

// decodeEvent decodes one JSON row into e, dispatching the payload on the
// row's kind.
func decodeEvent(data []byte, e *Event) error {
	var row eventRow
	if err := json.Unmarshal(data, &row); err != nil {
		return fmt.Errorf("could not decode event row: %w", err)
	}
	payload, err := decodePayload(row.Kind, row.Payload)
	if err != nil {
		return err
	}
	e.ID = row.ID
	e.Timestamp = row.Timestamp.UTC()
	e.Kind = row.Kind
	e.Payload = payload
	e.Rationale = row.Rationale
	e.Tags = row.Tags
	e.CashImpact = row.CashImpact
	return nil
}

// DecodePayload decodes a raw JSON payload according to its kind. An
// unknown kind is a SchemaError: skipping it would silently corrupt every
// replay.
func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	return decodePayload(kind, json.RawMessage(raw))
}

func decodePayload(kind Kind, raw json.RawMessage) (Payload, error) {
	var payload Payload
	var err error
	switch kind {
	case KindTrade:
		var p TradePayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case KindOptionOpen:
		var p OptionOpenPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case KindOptionClose:
		var p OptionClosePayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case KindOptionExpire:
		var p OptionExpirePayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case KindDividend:
		var p DividendPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case KindDeposit:
		var p DepositPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case KindWithdraw:
		var p WithdrawPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case KindUpdatePrice:
		var p PriceUpdatePayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case KindNote:
		var p NotePayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case KindGoal:
		var p GoalPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	case KindStrategy:
		var p StrategyPayload
		err = json.Unmarshal(raw, &p)
		payload = p
	default:
		return nil, &SchemaError{Kind: kind}
	}
	if err != nil {
		return nil, fmt.Errorf("could not decode %s payload: %w", kind, err)
	}
	return payload, nil
}

// DecodeLog decodes events from a stream of JSONL data and returns them
// sorted by (timestamp, id).
func DecodeLog(r io.Reader) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		lineBytes := scanner.Bytes()
		if len(lineBytes) == 0 {
			continue // Skip empty lines
		}
		var e Event
		if err := decodeEvent(lineBytes, &e); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading from input: %w", err)
	}

	sortEvents(events)
	return events, nil
}

// sortEvents puts events in canonical (timestamp, id) replay order.
func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].before(events[j]) })
}

// EncodeEvent marshals a single event to JSON and writes it to the writer,
// followed by a newline, in JSONL format.
func EncodeEvent(w io.Writer, e Event) error {
	decimal.MarshalJSONWithoutQuotes = true
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event %d: %w", e.ID, err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event %d: %w", e.ID, err)
	}
	return nil
}

// EncodeLog reorders events by (timestamp, id) and persists them to an
// io.Writer in JSONL format with canonical key order on each line.
func EncodeLog(w io.Writer, events []Event) error {
	decimal.MarshalJSONWithoutQuotes = true
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sortEvents(sorted)
	for _, e := range sorted {
		if err := EncodeEvent(w, e); err != nil {
			return err
		}
	}
	return nil
}
