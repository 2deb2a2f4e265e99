package lights

import (
	"math"
	"sync"
	"time"

	"github.com/SJang1/traffic-light-websocket/internal/domain"
)

// Store owns the current value of every light in the fixed set. All writes go
// through Apply; no other component mutates light fields. A RWMutex guards
// the map, but batch-level serialization lives in the ingest service so that
// apply and broadcast happen under one critical section.
type Store struct {
	mu     sync.RWMutex
	lights map[domain.LightID]domain.Light
}

// NewStore creates a store with every light at its default value.
func NewStore() *Store {
	lights := make(map[domain.LightID]domain.Light, len(domain.LightIDs))
	for _, id := range domain.LightIDs {
		lights[id] = domain.NewDefaultLight(id)
	}
	return &Store{lights: lights}
}

// Snapshot returns a deep copy of the current state. The subscriber count is
// zero; the caller stamps it before serialization.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Snapshot{Lights: s.lights}.Clone()
}

// Seed overwrites lights from rehydrated persistence state. Unknown IDs are
// ignored; lights absent from state keep their defaults.
func (s *Store) Seed(state map[domain.LightID]domain.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, light := range state {
		if _, ok := s.lights[id]; !ok {
			continue
		}
		light.ID = id
		s.lights[id] = light
	}
}

// Apply overwrites one light's status and distance and stamps LastUpdated
// with now. It re-checks the per-light constraints so the store stays valid
// even if a caller bypasses batch validation. LastUpdated is monotonic
// non-decreasing per light: a clock that jumps backwards keeps the previous
// timestamp.
func (s *Store) Apply(m domain.Mutation, now time.Time) (domain.Light, error) {
	if !m.Status.Valid() {
		return domain.Light{}, domain.ErrInvalidStatus
	}
	if err := checkDistance(m.Distance); err != nil {
		return domain.Light{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.lights[m.ID]
	if !ok {
		return domain.Light{}, domain.ErrUnknownLight
	}

	if now.Before(prev.LastUpdated) {
		now = prev.LastUpdated
	}
	next := domain.Light{ID: m.ID, Status: m.Status, Distance: m.Distance, LastUpdated: now}
	s.lights[m.ID] = next
	return next, nil
}

func checkDistance(d float64) error {
	if d == domain.DistanceUnknown {
		return nil
	}
	if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return domain.ErrInvalidDistance
	}
	return nil
}
