package foliolog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/PaesslerAG/jsonpath"
)

// Filter selects events on read. The zero value selects everything.
// All set fields must match (conjunction).
type Filter struct {
	// IDs restricts to the given event ids.
	IDs []int64
	// Kinds restricts to the given kinds.
	Kinds []Kind
	// Ticker restricts to events whose payload concerns this security.
	Ticker string
	// From and Until bound the timestamp: From ≤ t ≤ Until. A zero bound
	// is open.
	From, Until time.Time
	// Path is a JSONPath expression evaluated against the payload; the
	// event matches when the expression yields a value.
	Path string
}

// ByID returns a filter selecting a single event.
func ByID(id int64) Filter { return Filter{IDs: []int64{id}} }

// Matches reports whether the event passes the filter.
func (f Filter) Matches(e Event) (bool, error) {
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if e.ID == id {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if e.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	if f.Ticker != "" && e.Ticker() != f.Ticker {
		return false, nil
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false, nil
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false, nil
	}
	if f.Path != "" {
		ok, err := pathMatches(f.Path, e.Payload)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// pathMatches evaluates a JSONPath expression against the payload's generic
// JSON form. A lookup miss is not an error, just a non-match.
func pathMatches(expr string, payload Payload) (bool, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("could not marshal payload for path match: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return false, fmt.Errorf("could not rebuild payload for path match: %w", err)
	}
	got, err := jsonpath.Get(expr, generic)
	if err != nil {
		// Payloads have different schemas; a key the expression names may
		// simply not exist on this kind. That is a miss, not a failure.
		return false, nil
	}
	if list, ok := got.([]any); ok {
		return len(list) > 0, nil
	}
	return got != nil, nil
}
