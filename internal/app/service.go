package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/SJang1/traffic-light-websocket/internal/domain"
	"github.com/SJang1/traffic-light-websocket/internal/lights"
	"github.com/SJang1/traffic-light-websocket/internal/metrics"
	"github.com/SJang1/traffic-light-websocket/internal/retry"
)

const persistTimeout = 2 * time.Second

// ErrMalformedBatch marks a mutation payload that could not be parsed at
// all. No state changed and nothing was broadcast.
var ErrMalformedBatch = errors.New("malformed mutation batch")

// Service orchestrates ingestion: validate the batch, apply accepted entries
// to the store, broadcast the resulting snapshot, and persist accepted
// values in the background.
//
// The mutex serializes apply+broadcast per instance: no two batches
// interleave their writes, and every accepted mutation is pushed to all
// current subscribers before the next batch is considered.
type Service struct {
	mu     sync.Mutex
	store  *lights.Store
	pusher domain.Pusher
	repo   domain.StateRepository
	clock  clockwork.Clock
}

// NewService creates the ingest service. repo may be nil when persistence is
// not configured.
func NewService(store *lights.Store, pusher domain.Pusher, repo domain.StateRepository, clock clockwork.Clock) *Service {
	return &Service{store: store, pusher: pusher, repo: repo, clock: clock}
}

// Ingest applies one raw mutation batch. Entries are independent; a rejected
// entry never rolls back an accepted one. The returned result carries both
// sides; result.Ok() tells the transport layer whether to report success.
// ErrMalformedBatch is returned only when the payload could not be parsed.
func (s *Service) Ingest(ctx context.Context, body []byte) (domain.BatchResult, error) {
	batch, err := lights.ParseBatch(body)
	if err != nil {
		return domain.BatchResult{}, ErrMalformedBatch
	}

	accepted, rejected := lights.ValidateBatch(batch)
	result := domain.BatchResult{Rejected: rejected}

	s.mu.Lock()
	applied := make([]domain.Light, 0, len(accepted))
	for _, m := range accepted {
		light, err := s.store.Apply(m, s.clock.Now())
		if err != nil {
			// Validation already ran, so this only fires on constraint drift.
			result.Rejected = append(result.Rejected, rejectionFor(m.ID, err))
			metrics.MutationsTotal.WithLabelValues("rejected").Inc()
			continue
		}
		applied = append(applied, light)
		result.Applied = append(result.Applied, m.ID)
		metrics.MutationsTotal.WithLabelValues("applied").Inc()
	}

	// A mutation caller expects acknowledgment-equivalent visibility, so the
	// push happens even when the batch produced no observable change, and
	// completes before Ingest returns.
	if len(applied) > 0 {
		s.pusher.Push(s.store.Snapshot())
	}
	s.mu.Unlock()

	for range rejected {
		metrics.MutationsTotal.WithLabelValues("rejected").Inc()
	}
	s.persistAsync(applied)
	return result, nil
}

// persistAsync writes accepted values to the state repository without
// blocking the mutation response or the broadcast path.
func (s *Service) persistAsync(applied []domain.Light) {
	if s.repo == nil || len(applied) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		for _, light := range applied {
			if err := s.repo.Save(ctx, light); err != nil {
				metrics.PersistenceFailures.Inc()
				slog.Warn("Best-effort state write failed", "light_id", int(light.ID), "error", err)
			}
		}
	}()
}

// Rehydrate loads last-known light state from the repository into the store,
// retrying transient failures. Called once at startup before the server
// accepts traffic.
func (s *Service) Rehydrate(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	policy := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: 200 * time.Millisecond,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Rehydration attempt failed", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}

	state, err := retry.Do(ctx, policy, func() (map[domain.LightID]domain.Light, error) {
		return s.repo.Load(ctx)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.store.Seed(state)
	s.mu.Unlock()

	slog.Info("State rehydrated", "lights", len(state))
	return nil
}

func rejectionFor(id domain.LightID, err error) domain.Rejection {
	key := lights.KeyFor(id)
	switch {
	case errors.Is(err, domain.ErrUnknownLight):
		return domain.Rejection{Key: key, Reason: domain.ReasonUnknownLight}
	case errors.Is(err, domain.ErrInvalidDistance):
		return domain.Rejection{Key: key, Reason: domain.ReasonInvalidDistance}
	default:
		return domain.Rejection{Key: key, Reason: domain.ReasonInvalidStatus}
	}
}
