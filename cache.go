package foliolog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	cacheFilename   = "cache.db"
	stagingFilename = "cache.db.staging"
)

const cacheSchema = `
CREATE TABLE events (
	id          INTEGER PRIMARY KEY,
	timestamp   TEXT NOT NULL,
	kind        TEXT NOT NULL,
	ticker      TEXT NOT NULL DEFAULT '',
	day         TEXT NOT NULL,
	cash_impact TEXT NOT NULL DEFAULT '',
	raw         TEXT NOT NULL
);
CREATE INDEX events_ticker ON events (ticker);
CREATE INDEX events_day ON events (day);
CREATE TABLE summary (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// CacheProjector maintains a disposable sqlite index over the event log for
// fast lookups. It is never a source of truth: deleting cache.db loses
// nothing, the next Rebuild reproduces it byte for byte from the log.
type CacheProjector struct {
	store *EventStore
}

// NewCacheProjector returns a projector over the store's directory.
func NewCacheProjector(store *EventStore) *CacheProjector {
	return &CacheProjector{store: store}
}

func (c *CacheProjector) path() string { return filepath.Join(c.store.Dir(), cacheFilename) }

// Rebuild reads the full event stream, reconstructs the current state, and
// writes a fresh index to a staging file before atomically renaming it over
// the live one. Readers never see a partial index.
func (c *CacheProjector) Rebuild() error {
	events, err := c.store.Read(Filter{})
	if err != nil {
		return err
	}
	state, err := Reconstruct(events, time.Now())
	if err != nil {
		return err
	}

	staging := filepath.Join(c.store.Dir(), stagingFilename)
	if err := os.Remove(staging); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &IOError{Op: "remove", Path: staging, Err: err}
	}

	if err := c.writeIndex(staging, events, state); err != nil {
		os.Remove(staging)
		return err
	}
	if err := os.Rename(staging, c.path()); err != nil {
		os.Remove(staging)
		return &IOError{Op: "rename", Path: c.path(), Err: err}
	}
	return nil
}

func (c *CacheProjector) writeIndex(path string, events []Event, state *PortfolioState) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return &IOError{Op: "open", Path: path, Err: err}
	}
	defer db.Close()

	if _, err := db.Exec(cacheSchema); err != nil {
		return fmt.Errorf("creating cache schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting cache transaction: %w", err)
	}
	defer tx.Rollback()

	insert, err := tx.Prepare(`INSERT INTO events (id, timestamp, kind, ticker, day, cash_impact, raw) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing cache insert: %w", err)
	}
	defer insert.Close()

	for _, e := range events {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshaling event %d for cache: %w", e.ID, err)
		}
		impact := ""
		if !e.CashImpact.IsZero() {
			impact = e.CashImpact.String()
		}
		ts := e.Timestamp.UTC()
		_, err = insert.Exec(e.ID, ts.Format(time.RFC3339Nano), string(e.Kind), e.Ticker(), ts.Format("2006-01-02"), impact, string(raw))
		if err != nil {
			return fmt.Errorf("indexing event %d: %w", e.ID, err)
		}
	}

	summary := map[string]string{
		"rebuiltAt":      time.Now().UTC().Format(time.RFC3339Nano),
		"eventCount":     fmt.Sprint(len(events)),
		"totalCash":      state.TotalCash().String(),
		"marketValue":    state.MarketValue().String(),
		"totalValue":     state.TotalValue().String(),
		"realizedGains":  state.RealizedGains.String(),
		"dividendIncome": state.DividendIncome.String(),
		"optionIncome":   state.OptionIncome.String(),
	}
	for key, value := range summary {
		if _, err := tx.Exec(`INSERT INTO summary (key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("writing cache summary %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// open opens the live index read-only.
func (c *CacheProjector) open() (*sql.DB, error) {
	if _, err := os.Stat(c.path()); err != nil {
		return nil, &IOError{Op: "open", Path: c.path(), Err: err}
	}
	db, err := sql.Open("sqlite", c.path()+"?mode=ro")
	if err != nil {
		return nil, &IOError{Op: "open", Path: c.path(), Err: err}
	}
	return db, nil
}

// EventByID looks one event up in the index.
func (c *CacheProjector) EventByID(id int64) (Event, bool, error) {
	db, err := c.open()
	if err != nil {
		return Event{}, false, err
	}
	defer db.Close()

	var raw string
	err = db.QueryRow(`SELECT raw FROM events WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, fmt.Errorf("querying cache for event %d: %w", id, err)
	}
	var e Event
	if err := decodeEvent([]byte(raw), &e); err != nil {
		return Event{}, false, err
	}
	return e, true, nil
}

// EventsByTicker returns the indexed events concerning one security, in
// (timestamp, id) order.
func (c *CacheProjector) EventsByTicker(ticker string) ([]Event, error) {
	return c.query(`SELECT raw FROM events WHERE ticker = ? ORDER BY timestamp, id`, ticker)
}

// EventsByDay returns the indexed events of the days in [from, until],
// inclusive, in (timestamp, id) order.
func (c *CacheProjector) EventsByDay(from, until time.Time) ([]Event, error) {
	return c.query(`SELECT raw FROM events WHERE day >= ? AND day <= ? ORDER BY timestamp, id`,
		from.UTC().Format("2006-01-02"), until.UTC().Format("2006-01-02"))
}

func (c *CacheProjector) query(q string, args ...any) ([]Event, error) {
	db, err := c.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying cache: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning cache row: %w", err)
		}
		var e Event
		if err := decodeEvent([]byte(raw), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Summary returns the precomputed totals written at the last rebuild.
func (c *CacheProjector) Summary() (map[string]string, error) {
	db, err := c.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT key, value FROM summary`)
	if err != nil {
		return nil, fmt.Errorf("querying cache summary: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning cache summary: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}
