// Package foliolog tracks a financial portfolio as an append-only stream of
// immutable, timestamped events. It is designed to be local-first, auditable,
// and deterministic: the event log is the single source of truth, and every
// view of the portfolio is derived from it by replay.
//
// The core functionalities include:
//   - Event Store: Recording every state-changing action (trades, option
//     events, cash movements, price marks, notes, goal and strategy changes)
//     as an immutable row in a lock-protected JSONL log, with an audit trail
//     for the rare update or delete.
//   - State Reconstruction: A pure reducer that folds events in (timestamp,
//     id) order into a portfolio state as of any instant, making "current",
//     "historical", and counterfactual views the same computation.
//   - Query Cache: A disposable, fully reproducible sqlite index over the
//     log for fast lookups by id, ticker, and day.
//   - Alternate Histories: Named, non-destructive edit-sets (remove a ticker,
//     scale a position, inject a synthetic event) applied to a copy of the
//     stream and diffed against reality.
//   - Projections: Forward extrapolation of portfolio state under as-is,
//     optimal, and adoption-blended behavioral models, with feedback,
//     accuracy tracking, and explicit calibration factors.
//
// This package serves as the foundational logic for the `folio` command-line
// tool; the rendering and advisory layers only ever consume snapshots and
// append events through the store.
package foliolog
