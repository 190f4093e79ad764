package foliolog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	logFilename   = "events.jsonl"
	lockFilename  = "events.lock"
	auditFilename = "audit.jsonl"

	// DefaultLockTimeout bounds how long an operation waits for the log.
	DefaultLockTimeout = 5 * time.Second

	lockRetryDelay = 50 * time.Millisecond
)

// EventStore owns the canonical event log of one portfolio directory.
// Writers take an exclusive advisory lock, readers a shared one; every
// acquisition is bounded and failure to acquire is a ConcurrencyError.
type EventStore struct {
	dir         string
	lockTimeout time.Duration
	lock        *flock.Flock
}

// OpenStore opens (creating if needed) the portfolio directory and returns
// a store over its event log. A timeout of zero means DefaultLockTimeout.
func OpenStore(dir string, lockTimeout time.Duration) (*EventStore, error) {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &IOError{Op: "create", Path: dir, Err: err}
	}
	return &EventStore{
		dir:         dir,
		lockTimeout: lockTimeout,
		lock:        flock.New(filepath.Join(dir, lockFilename)),
	}, nil
}

// Dir returns the portfolio directory this store operates on.
func (s *EventStore) Dir() string { return s.dir }

func (s *EventStore) logPath() string   { return filepath.Join(s.dir, logFilename) }
func (s *EventStore) auditPath() string { return filepath.Join(s.dir, auditFilename) }

// withExclusive runs fn under the exclusive lock, released on return.
func (s *EventStore) withExclusive(fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.lockTimeout)
	defer cancel()
	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		return &ConcurrencyError{Path: s.lock.Path(), Timeout: s.lockTimeout}
	}
	defer s.lock.Unlock()
	return fn()
}

// withShared runs fn under the shared lock, released on return.
func (s *EventStore) withShared(fn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.lockTimeout)
	defer cancel()
	ok, err := s.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		return &ConcurrencyError{Path: s.lock.Path(), Timeout: s.lockTimeout}
	}
	defer s.lock.Unlock()
	return fn()
}

// loadLocked reads the full log. The caller holds a lock.
func (s *EventStore) loadLocked() ([]Event, error) {
	f, err := os.Open(s.logPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &IOError{Op: "open", Path: s.logPath(), Err: err}
	}
	defer f.Close()
	events, err := DecodeLog(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.logPath(), err)
	}
	return events, nil
}

// nextIDLocked returns the next event id: one past the highest id ever
// issued, counting deleted events recorded in the audit log. Ids are never
// reused. The caller holds the exclusive lock.
func (s *EventStore) nextIDLocked(events []Event) (int64, error) {
	var max int64
	for _, e := range events {
		if e.ID > max && e.ID < SyntheticIDBase {
			max = e.ID
		}
	}
	audits, err := s.readAuditLocked()
	if err != nil {
		return 0, err
	}
	for _, a := range audits {
		if a.Prior.ID > max && a.Prior.ID < SyntheticIDBase {
			max = a.Prior.ID
		}
	}
	return max + 1, nil
}

// Append validates the event, assigns it the next id, and writes it to the
// log as one complete line. The timestamp defaults to now when zero.
// It returns the assigned id.
func (s *EventStore) Append(e Event) (int64, error) {
	return s.AppendAt(e, time.Time{})
}

// AppendAt is Append with an explicit timestamp override; a zero at keeps
// the event's own timestamp, and a zero event timestamp means now. Events
// may be recorded out of order: replay order is (timestamp, id), not file
// order.
func (s *EventStore) AppendAt(e Event, at time.Time) (int64, error) {
	if !at.IsZero() {
		e.Timestamp = at
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Timestamp = e.Timestamp.UTC()
	if err := e.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := s.withExclusive(func() error {
		events, err := s.loadLocked()
		if err != nil {
			return err
		}
		id, err = s.nextIDLocked(events)
		if err != nil {
			return err
		}
		e.ID = id

		f, err := os.OpenFile(s.logPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return &IOError{Op: "append", Path: s.logPath(), Err: err}
		}
		defer f.Close()
		if err := EncodeEvent(f, e); err != nil {
			return &IOError{Op: "append", Path: s.logPath(), Err: err}
		}
		return f.Sync()
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Read returns the events passing the filter, sorted by (timestamp, id).
func (s *EventStore) Read(f Filter) ([]Event, error) {
	var out []Event
	err := s.withShared(func() error {
		events, err := s.loadLocked()
		if err != nil {
			return err
		}
		for _, e := range events {
			ok, err := f.Matches(e)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, e)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the event with the given id, or false when it does not exist.
func (s *EventStore) Get(id int64) (Event, bool, error) {
	events, err := s.Read(ByID(id))
	if err != nil {
		return Event{}, false, err
	}
	if len(events) == 0 {
		return Event{}, false, nil
	}
	return events[0], true, nil
}

// Update replaces the payload and cash impact of an existing event, keeping
// its id and timestamp, and records the prior row in the audit log. It
// returns false when no event has the given id. Updates are for fixing
// recording mistakes; disagreeing with a past decision is a correction note
// (NewCorrection), not an update.
func (s *EventStore) Update(id int64, payload Payload, cashImpact Money) (bool, error) {
	found := false
	err := s.withExclusive(func() error {
		events, err := s.loadLocked()
		if err != nil {
			return err
		}
		for i, e := range events {
			if e.ID != id {
				continue
			}
			updated := e
			updated.Kind = payload.Kind()
			updated.Payload = payload
			updated.CashImpact = cashImpact
			if err := updated.Validate(); err != nil {
				return err
			}
			if err := s.appendAuditLocked(AuditRecord{Op: "update", At: time.Now().UTC(), Prior: e}); err != nil {
				return err
			}
			events[i] = updated
			found = true
			return s.rewriteLocked(events)
		}
		return nil
	})
	return found, err
}

// Delete removes an event from the log, leaving a tombstone in the audit
// log so the id is never reused. It returns false when no event has the
// given id.
func (s *EventStore) Delete(id int64) (bool, error) {
	found := false
	err := s.withExclusive(func() error {
		events, err := s.loadLocked()
		if err != nil {
			return err
		}
		for i, e := range events {
			if e.ID != id {
				continue
			}
			if err := s.appendAuditLocked(AuditRecord{Op: "delete", At: time.Now().UTC(), Prior: e}); err != nil {
				return err
			}
			events = append(events[:i], events[i+1:]...)
			found = true
			return s.rewriteLocked(events)
		}
		return nil
	})
	return found, err
}

// Canonicalize rewrites the log in (timestamp, id) order with canonical
// key order on each line. The content is unchanged.
func (s *EventStore) Canonicalize() error {
	return s.withExclusive(func() error {
		events, err := s.loadLocked()
		if err != nil {
			return err
		}
		if events == nil {
			return nil
		}
		return s.rewriteLocked(events)
	})
}

// rewriteLocked writes the whole log to a temp file and renames it over the
// live one, so a failure mid-write never leaves a torn log. The caller
// holds the exclusive lock.
func (s *EventStore) rewriteLocked(events []Event) error {
	tmp, err := os.CreateTemp(s.dir, logFilename+".tmp-*")
	if err != nil {
		return &IOError{Op: "rewrite", Path: s.logPath(), Err: err}
	}
	defer os.Remove(tmp.Name())
	if err := EncodeLog(tmp, events); err != nil {
		tmp.Close()
		return &IOError{Op: "rewrite", Path: s.logPath(), Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &IOError{Op: "rewrite", Path: s.logPath(), Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &IOError{Op: "rewrite", Path: s.logPath(), Err: err}
	}
	if err := os.Rename(tmp.Name(), s.logPath()); err != nil {
		return &IOError{Op: "rewrite", Path: s.logPath(), Err: err}
	}
	return nil
}

// AuditRecord is one line of the audit log: the operation, when it
// happened, and the full prior row it displaced.
type AuditRecord struct {
	Op    string    `json:"op"`
	At    time.Time `json:"at"`
	Prior Event     `json:"prior"`
}

func (s *EventStore) appendAuditLocked(rec AuditRecord) error {
	f, err := os.OpenFile(s.auditPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &IOError{Op: "append", Path: s.auditPath(), Err: err}
	}
	defer f.Close()
	var w jsonObjectWriter
	w.Append("op", rec.Op)
	w.Append("at", rec.At.UTC().Format(time.RFC3339Nano))
	w.Append("prior", rec.Prior)
	data, err := w.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal audit record for event %d: %w", rec.Prior.ID, err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return &IOError{Op: "append", Path: s.auditPath(), Err: err}
	}
	return nil
}

// readAuditLocked returns the audit trail. The caller holds a lock.
func (s *EventStore) readAuditLocked() ([]AuditRecord, error) {
	f, err := os.Open(s.auditPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &IOError{Op: "open", Path: s.auditPath(), Err: err}
	}
	defer f.Close()
	return decodeAudit(f)
}

// Audit returns the audit trail in file (chronological) order.
func (s *EventStore) Audit() ([]AuditRecord, error) {
	var out []AuditRecord
	err := s.withShared(func() error {
		var err error
		out, err = s.readAuditLocked()
		return err
	})
	return out, err
}

func decodeAudit(r io.Reader) ([]AuditRecord, error) {
	var out []AuditRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec AuditRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("could not decode audit record: %w", err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading audit log: %w", err)
	}
	return out, nil
}
