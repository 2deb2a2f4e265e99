package domain

import "context"

// Mutation is one validated change for a single light. Status is always set;
// a producer that omits distance gets the sentinel.
type Mutation struct {
	ID       LightID
	Status   Status
	Distance float64
}

// BatchResult is the outcome of ingesting one mutation batch. Accepted
// entries were applied and are visible to subscribers even when Rejected is
// non-empty; the caller decides how to report that (see the ingest service).
type BatchResult struct {
	Applied  []LightID   `json:"applied"`
	Rejected []Rejection `json:"rejected"`
}

// Ok reports whether every entry of the batch was accepted.
func (r BatchResult) Ok() bool { return len(r.Rejected) == 0 }

// SnapshotSource is a read-only view of the current light state.
type SnapshotSource interface {
	Snapshot() Snapshot
}

// StateRepository persists the last-known value of each light in an external
// key-value collaborator. Writes are best-effort: the broadcast path never
// waits on them.
type StateRepository interface {
	Save(ctx context.Context, light Light) error
	Load(ctx context.Context) (map[LightID]Light, error)
}

// Pusher delivers a snapshot to every connected subscriber.
type Pusher interface {
	Push(snapshot Snapshot)
}
