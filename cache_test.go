package foliolog

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestCache(t *testing.T) (*EventStore, *CacheProjector) {
	t.Helper()
	s := newTestStore(t)
	seedHistory(t, s, wheelHistory()...)
	c := NewCacheProjector(s)
	if err := c.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return s, c
}

func TestCacheEventByID(t *testing.T) {
	_, c := newTestCache(t)

	e, ok, err := c.EventByID(2)
	if err != nil || !ok {
		t.Fatalf("EventByID = %v, %v", ok, err)
	}
	if e.Kind != KindTrade || e.Ticker() != "NVDA" {
		t.Fatalf("EventByID(2) = %s %s", e.Kind, e.Ticker())
	}

	if _, ok, err := c.EventByID(99); err != nil || ok {
		t.Fatalf("EventByID(99) = %v, %v", ok, err)
	}
}

func TestCacheEventsByTicker(t *testing.T) {
	_, c := newTestCache(t)

	events, err := c.EventsByTicker("NVDA")
	if err != nil {
		t.Fatalf("EventsByTicker: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d NVDA events, want 3", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Fatal("events are not in timestamp order")
		}
	}
}

func TestCacheEventsByDay(t *testing.T) {
	_, c := newTestCache(t)

	events, err := c.EventsByDay(day(2025, 2, 1), day(2025, 2, 28))
	if err != nil {
		t.Fatalf("EventsByDay: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d february events, want 3", len(events))
	}

	events, err = c.EventsByDay(day(2025, 1, 10), day(2025, 1, 10))
	if err != nil {
		t.Fatalf("EventsByDay: %v", err)
	}
	if len(events) != 1 || events[0].Kind != KindTrade {
		t.Fatalf("single day query = %+v", events)
	}
}

func TestCacheSummary(t *testing.T) {
	_, c := newTestCache(t)

	summary, err := c.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary["eventCount"] != "5" {
		t.Errorf("eventCount = %q, want 5", summary["eventCount"])
	}
	if summary["totalValue"] == "" || summary["rebuiltAt"] == "" {
		t.Errorf("summary is missing totals: %v", summary)
	}
}

func TestCacheIsDisposable(t *testing.T) {
	s, c := newTestCache(t)

	before, err := c.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	// Blow the index away; the log rebuilds it with the same content.
	if err := os.Remove(filepath.Join(s.Dir(), cacheFilename)); err != nil {
		t.Fatalf("remove cache: %v", err)
	}
	if _, err := c.Summary(); err == nil {
		t.Fatal("Summary succeeded without an index")
	}
	if err := c.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	after, err := c.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	for _, key := range []string{"eventCount", "totalCash", "marketValue", "totalValue", "realizedGains"} {
		if before[key] != after[key] {
			t.Errorf("summary %q changed across rebuilds: %q vs %q", key, before[key], after[key])
		}
	}
}

func TestCacheStaysFreshAfterMutations(t *testing.T) {
	s, c := newTestCache(t)

	if _, err := s.Append(NewDeposit(day(2025, 3, 1), usd(500))); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := c.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	summary, err := c.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary["eventCount"] != "6" {
		t.Errorf("eventCount = %q, want 6", summary["eventCount"])
	}
}
