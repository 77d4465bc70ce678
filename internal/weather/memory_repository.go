package weather

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing and local runs. Production should use the PostgreSQL implementation.
type InMemoryRepository struct {
	mu           sync.RWMutex
	observations map[string]map[int64]*Observation // mac -> dateutc -> observation
}

// NewInMemoryRepository creates a new in-memory observation repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		observations: make(map[string]map[int64]*Observation),
	}
}

// Save stores observations, skipping ones already archived.
func (r *InMemoryRepository) Save(_ context.Context, mac string, observations []*Observation) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byDate, ok := r.observations[mac]
	if !ok {
		byDate = make(map[int64]*Observation)
		r.observations[mac] = byDate
	}

	stored := 0
	for _, obs := range observations {
		if obs == nil {
			continue
		}
		if _, exists := byDate[obs.DateUTC]; exists {
			continue
		}
		byDate[obs.DateUTC] = copyObservation(obs)
		stored++
	}
	return stored, nil
}

// List returns archived observations newest first.
func (r *InMemoryRepository) List(_ context.Context, mac string, q HistoryQuery) ([]*Observation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []*Observation
	for _, obs := range r.observations[mac] {
		if !q.From.IsZero() && obs.Date.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && obs.Date.After(q.To) {
			continue
		}
		items = append(items, copyObservation(obs))
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].DateUTC > items[j].DateUTC
	})

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if len(items) > limit {
		items = items[:limit]
	}

	return items, nil
}

// Latest returns the most recent archived observation.
func (r *InMemoryRepository) Latest(ctx context.Context, mac string) (*Observation, error) {
	items, err := r.List(ctx, mac, HistoryQuery{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNoObservations
	}
	return items[0], nil
}

// copyObservation creates a deep copy of an observation.
func copyObservation(o *Observation) *Observation {
	if o == nil {
		return nil
	}

	obsCopy := &Observation{
		Date:       o.Date,
		DateUTC:    o.DateUTC,
		Quantities: make(map[string]Quantity, len(o.Quantities)),
		Extra:      make(map[string]any, len(o.Extra)),
	}
	for k, v := range o.Quantities {
		obsCopy.Quantities[k] = v
	}
	for k, v := range o.Extra {
		obsCopy.Extra[k] = v
	}

	return obsCopy
}
