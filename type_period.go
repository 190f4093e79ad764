package foliolog

import (
	"fmt"
	"time"
)

// Period is a calendar month bucket, the granularity used by historical
// statistics and forward projections. The zero value is the zero month.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// PeriodOf returns the period containing the given instant (in UTC).
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) String() string { return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month)) }

// Start returns the first instant of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the next period. The period covers
// [Start, End).
func (p Period) End() time.Time { return p.Next().Start() }

// Next returns the following period.
func (p Period) Next() Period {
	return PeriodOf(p.Start().AddDate(0, 1, 0))
}

// Add returns the period n months later (n may be negative).
func (p Period) Add(n int) Period {
	return PeriodOf(p.Start().AddDate(0, n, 0))
}

// Before reports whether p is strictly earlier than q.
func (p Period) Before(q Period) bool {
	return p.Year < q.Year || (p.Year == q.Year && p.Month < q.Month)
}

// Contains reports whether the instant falls inside the period.
func (p Period) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(p.Start()) && t.Before(p.End())
}

// periodsBetween returns all periods from the one containing from to the one
// containing until, inclusive, in order.
func periodsBetween(from, until time.Time) []Period {
	first, last := PeriodOf(from), PeriodOf(until)
	if last.Before(first) {
		return nil
	}
	var out []Period
	for p := first; !last.Before(p); p = p.Next() {
		out = append(out, p)
	}
	return out
}
