package foliolog

import (
	"fmt"
	"time"
)

// ValidationError reports a payload that does not match its kind's schema.
// A failed validation rejects the whole operation; nothing is appended.
type ValidationError struct {
	Kind   Kind
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Kind == "" {
		return "invalid: " + e.Reason
	}
	return fmt.Sprintf("invalid %s payload: %s", e.Kind, e.Reason)
}

// ConcurrencyError reports that the log's advisory lock could not be
// acquired within the bounded wait. The operation is retryable.
type ConcurrencyError struct {
	Path    string
	Timeout time.Duration
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("could not acquire lock on %s within %s", e.Path, e.Timeout)
}

// SchemaError reports an event kind the reducer cannot interpret. It is
// fatal to the reconstruction: skipping the event would silently drift the
// derived state away from the log.
type SchemaError struct {
	Kind Kind
	ID   int64
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("event %d has unknown kind %q", e.ID, e.Kind)
}

// IOError reports that the underlying medium is unreadable or unwritable.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
