package foliolog

import (
	"log"
	"time"
)

// System composes the store and every derived engine behind one command
// surface: the API the CLI and the advisory layer both talk to. All
// mutations go through the store; after each one the query cache is
// rebuilt, and a rebuild failure is only a warning since the cache is
// disposable.
type System struct {
	config      Config
	store       *EventStore
	cache       *CacheProjector
	histories   *AlternateHistoryEngine
	projections *ProjectionEngine
}

// NewSystem opens (creating if needed) the configured portfolio directory.
func NewSystem(cfg Config) (*System, error) {
	store, err := OpenStore(cfg.Dir, cfg.LockTimeout)
	if err != nil {
		return nil, err
	}
	histories := NewAlternateHistoryEngine(store)
	return &System{
		config:      cfg,
		store:       store,
		cache:       NewCacheProjector(store),
		histories:   histories,
		projections: NewProjectionEngine(store, histories),
	}, nil
}

// Config returns the system's configuration.
func (s *System) Config() Config { return s.config }

// Store exposes the underlying event store.
func (s *System) Store() *EventStore { return s.store }

// Cache exposes the query cache.
func (s *System) Cache() *CacheProjector { return s.cache }

// Histories exposes the alternate history engine.
func (s *System) Histories() *AlternateHistoryEngine { return s.histories }

// Projections exposes the projection engine.
func (s *System) Projections() *ProjectionEngine { return s.projections }

// refreshCache rebuilds the query cache after a mutation. Failure is not
// fatal: the cache catches up on the next successful rebuild.
func (s *System) refreshCache() {
	if err := s.cache.Rebuild(); err != nil {
		log.Printf("warning: cache rebuild failed: %v", err)
	}
}

// AppendEvent validates and appends an event, returning its assigned id.
func (s *System) AppendEvent(e Event) (int64, error) {
	id, err := s.store.Append(e)
	if err != nil {
		return 0, err
	}
	s.refreshCache()
	return id, nil
}

// GetState reconstructs the portfolio as of the given instant; zero means
// now.
func (s *System) GetState(asOf time.Time) (*PortfolioState, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	events, err := s.store.Read(Filter{Until: asOf})
	if err != nil {
		return nil, err
	}
	return Reconstruct(events, asOf)
}

// ReadEvents returns the events passing the filter in replay order.
func (s *System) ReadEvents(f Filter) ([]Event, error) {
	return s.store.Read(f)
}

// UpdateEvent replaces an event's payload and cash impact, leaving an
// audit record. It returns false when no event has the id.
func (s *System) UpdateEvent(id int64, payload Payload, cashImpact Money) (bool, error) {
	ok, err := s.store.Update(id, payload, cashImpact)
	if err != nil || !ok {
		return ok, err
	}
	s.refreshCache()
	return true, nil
}

// DeleteEvent removes an event, leaving a tombstone. It returns false
// when no event has the id.
func (s *System) DeleteEvent(id int64) (bool, error) {
	ok, err := s.store.Delete(id)
	if err != nil || !ok {
		return ok, err
	}
	s.refreshCache()
	return true, nil
}

// CreateAlternateHistory persists a named edit-set over the real stream.
func (s *System) CreateAlternateHistory(name string, asOf time.Time, mods []Modification) (*AlternateHistory, error) {
	return s.histories.Create(name, asOf, mods)
}

// CompareHistory diffs a stored history against reality.
func (s *System) CompareHistory(id string) (*Comparison, error) {
	h, ok, err := s.histories.Get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ValidationError{Reason: "no alternate history " + id}
	}
	return s.histories.Compare(h)
}

// GenerateProjection builds and persists a projection of the source
// stream: Reality (or empty) for the real log, or an alternate history id.
func (s *System) GenerateProjection(source string, model Model, horizon int, adj Adjustments) (*Projection, error) {
	return s.projections.Generate(source, model, horizon, adj)
}

// SubmitFeedback attaches a note to a stored projection.
func (s *System) SubmitFeedback(id, text string, helpful bool, metrics map[string]bool) (bool, error) {
	return s.projections.SubmitFeedback(id, text, helpful, metrics)
}

// ComputeAccuracy scores a projection's elapsed periods against reality.
func (s *System) ComputeAccuracy(id string) (*Accuracy, bool, error) {
	return s.projections.ComputeAccuracy(id)
}

// RebuildCache forces a full cache rebuild.
func (s *System) RebuildCache() error {
	return s.cache.Rebuild()
}
