package foliolog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
)

func TestAppendAssignsSequentialIDs(t *testing.T) {
	s := newTestStore(t)
	for i, e := range wheelHistory() {
		id, err := s.Append(e)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if want := int64(i + 1); id != want {
			t.Fatalf("Append assigned id %d, want %d", id, want)
		}
	}
}

func TestAppendRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Append(NewTrade(day(2025, 1, 10), "", SideBuy, Q(1), usd(100)))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Append error = %v, want a ValidationError", err)
	}
	events, err := s.Read(Filter{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("invalid append left %d events in the log", len(events))
	}
}

func TestGet(t *testing.T) {
	s := newTestStore(t)
	seedHistory(t, s, wheelHistory()...)

	e, ok, err := s.Get(2)
	if err != nil || !ok {
		t.Fatalf("Get(2) = %v, %v", ok, err)
	}
	if e.Kind != KindTrade || e.Ticker() != "NVDA" {
		t.Fatalf("Get(2) = %s %s, want the NVDA trade", e.Kind, e.Ticker())
	}

	_, ok, err = s.Get(99)
	if err != nil {
		t.Fatalf("Get(99): %v", err)
	}
	if ok {
		t.Fatal("Get(99) found a missing event")
	}
}

func TestUpdateKeepsIDAndTimestampAndAudits(t *testing.T) {
	s := newTestStore(t)
	seedHistory(t, s, wheelHistory()...)
	before, _, err := s.Get(2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	corrected := TradePayload{Security: "NVDA", Side: SideBuy, Quantity: Q(55), Amount: usd(6600)}
	ok, err := s.Update(2, corrected, usd(-6600))
	if err != nil || !ok {
		t.Fatalf("Update = %v, %v", ok, err)
	}

	after, _, err := s.Get(2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if after.ID != before.ID || !after.Timestamp.Equal(before.Timestamp) {
		t.Fatal("Update changed the event's id or timestamp")
	}
	if !after.Payload.Equal(corrected) {
		t.Fatalf("Update payload = %+v, want %+v", after.Payload, corrected)
	}

	audits, err := s.Audit()
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(audits) != 1 {
		t.Fatalf("got %d audit records, want 1", len(audits))
	}
	if audits[0].Op != "update" || !audits[0].Prior.Equal(before) {
		t.Fatalf("audit record = %+v, want prior version of event 2", audits[0])
	}

	ok, err = s.Update(99, corrected, usd(0))
	if err != nil {
		t.Fatalf("Update(99): %v", err)
	}
	if ok {
		t.Fatal("Update(99) reported success for a missing event")
	}
}

func TestDeleteTombstonesAndNeverReusesID(t *testing.T) {
	s := newTestStore(t)
	seedHistory(t, s, wheelHistory()...)

	ok, err := s.Delete(5)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	if _, ok, _ := s.Get(5); ok {
		t.Fatal("deleted event is still readable")
	}

	audits, err := s.Audit()
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(audits) != 1 || audits[0].Op != "delete" || audits[0].Prior.ID != 5 {
		t.Fatalf("audit after delete = %+v", audits)
	}

	// The freed id must not come back.
	id, err := s.Append(NewDeposit(day(2025, 3, 1), usd(100)))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if id != 6 {
		t.Fatalf("Append after delete assigned id %d, want 6", id)
	}

	ok, err = s.Delete(99)
	if err != nil {
		t.Fatalf("Delete(99): %v", err)
	}
	if ok {
		t.Fatal("Delete(99) reported success for a missing event")
	}
}

func TestReadFilters(t *testing.T) {
	s := newTestStore(t)
	seedHistory(t, s, wheelHistory()...)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 5},
		{"by kind", Filter{Kinds: []Kind{KindTrade}}, 1},
		{"by ticker", Filter{Ticker: "NVDA"}, 3},
		{"by id", ByID(3), 1},
		{"from", Filter{From: day(2025, 2, 1)}, 3},
		{"until", Filter{Until: day(2025, 1, 31)}, 2},
		{"window", Filter{From: day(2025, 2, 1), Until: day(2025, 2, 15)}, 2},
		{"path side", Filter{Path: `$.side`}, 1},
		{"path short options", Filter{Path: `$.short`}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := s.Read(tt.filter)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if len(events) != tt.want {
				t.Fatalf("Read returned %d events, want %d", len(events), tt.want)
			}
		})
	}
}

func TestLockTimeout(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenStore(dir, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}

	// Hold the exclusive lock from outside, as a concurrent process would.
	other := flock.New(filepath.Join(dir, lockFilename))
	if err := other.Lock(); err != nil {
		t.Fatalf("holding lock: %v", err)
	}
	defer other.Unlock()

	_, err = s.Append(NewDeposit(day(2025, 1, 2), usd(100)))
	var cerr *ConcurrencyError
	if !errors.As(err, &cerr) {
		t.Fatalf("Append under contention = %v, want a ConcurrencyError", err)
	}
}

func TestConcurrentReadersSeeWholeEvents(t *testing.T) {
	dir := t.TempDir()
	writer, err := OpenStore(dir, DefaultLockTimeout)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	if _, err := writer.Append(NewDeposit(day(2025, 1, 1), usd(1000))); err != nil {
		t.Fatalf("Append: %v", err)
	}

	stop := make(chan struct{})
	errs := make(chan error, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		// Each reader opens its own store, as a separate process would.
		reader, err := OpenStore(dir, DefaultLockTimeout)
		if err != nil {
			t.Fatalf("OpenStore: %v", err)
		}
		wg.Add(1)
		go func(s *EventStore) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				events, err := s.Read(Filter{})
				if err != nil {
					errs <- err
					return
				}
				for _, e := range events {
					if err := e.Validate(); err != nil {
						errs <- fmt.Errorf("read a torn event %d: %w", e.ID, err)
						return
					}
				}
			}
		}(reader)
	}

	for i := 0; i < 20; i++ {
		if _, err := writer.Append(NewDeposit(day(2025, 1, 2+i%27), usd(100))); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if ok, err := writer.Update(1, DepositPayload{Amount: usd(1500)}, usd(1500)); err != nil || !ok {
		t.Fatalf("Update = %v, %v", ok, err)
	}
	close(stop)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	events, err := writer.Read(Filter{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(events) != 21 {
		t.Fatalf("log holds %d events after concurrent writes, want 21", len(events))
	}
}

func TestCanonicalize(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenStore(dir, 0)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	// Write two events out of order, as a hand-edited log might be.
	e2 := NewDeposit(day(2025, 1, 5), usd(100))
	e2.ID = 2
	e1 := NewDeposit(day(2025, 1, 2), usd(200))
	e1.ID = 1
	f, err := os.Create(filepath.Join(dir, logFilename))
	if err != nil {
		t.Fatalf("create log: %v", err)
	}
	for _, e := range []Event{e2, e1} {
		if err := EncodeEvent(f, e); err != nil {
			t.Fatalf("EncodeEvent: %v", err)
		}
	}
	f.Close()

	if err := s.Canonicalize(); err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, logFilename))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := string(raw)
	idx1, idx2 := strings.Index(lines, `"id":1`), strings.Index(lines, `"id":2`)
	if idx1 < 0 || idx2 < 0 || idx1 > idx2 {
		t.Fatalf("canonical log is not in replay order:\n%s", lines)
	}
}
