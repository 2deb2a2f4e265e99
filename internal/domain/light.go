package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// LightID identifies one monitored traffic light. The set of valid IDs is
// fixed at compile time; lights are never added or removed at runtime.
type LightID int

// LightIDs is the closed set of monitored lights.
var LightIDs = []LightID{1, 2}

// Status is the reported state of a light.
type Status string

const (
	StatusRed    Status = "red"
	StatusYellow Status = "yellow"
	StatusGreen  Status = "green"
	StatusOff    Status = "off"
)

// DefaultStatus is the state a light holds before any producer reported it.
const DefaultStatus = StatusOff

// DistanceUnknown is the sentinel for "no distance reported".
const DistanceUnknown float64 = -1

// Valid reports whether s is one of the fixed status labels.
func (s Status) Valid() bool {
	switch s {
	case StatusRed, StatusYellow, StatusGreen, StatusOff:
		return true
	}
	return false
}

// Light is the current value of one monitored light.
type Light struct {
	ID          LightID   `json:"id"`
	Status      Status    `json:"status"`
	Distance    float64   `json:"distance"`
	LastUpdated time.Time `json:"last_updated"`
}

// NewDefaultLight returns the well-defined boot value for id: default status,
// sentinel distance, epoch timestamp.
func NewDefaultLight(id LightID) Light {
	return Light{
		ID:          id,
		Status:      DefaultStatus,
		Distance:    DistanceUnknown,
		LastUpdated: time.Unix(0, 0).UTC(),
	}
}

// KnownLight reports whether id belongs to the fixed set.
func KnownLight(id LightID) bool {
	for _, known := range LightIDs {
		if id == known {
			return true
		}
	}
	return false
}

// Snapshot is an immutable point-in-time view of all lights plus the number
// of currently connected subscribers. Producing a new snapshot never mutates
// a prior one.
type Snapshot struct {
	ConnectedUsers int
	Lights         map[LightID]Light
}

// Clone returns a deep copy so callers can hold a snapshot across later
// mutations of the source.
func (s Snapshot) Clone() Snapshot {
	lights := make(map[LightID]Light, len(s.Lights))
	for id, l := range s.Lights {
		lights[id] = l
	}
	return Snapshot{ConnectedUsers: s.ConnectedUsers, Lights: lights}
}

// MarshalJSON produces the wire shape pushed to subscribers and returned by
// the query endpoint:
//
//	{"connectedusers": 3, "1": {"id":1,"status":"red",...}, "2": {...}}
//
// Light IDs are emitted in ascending order so repeated marshals of the same
// snapshot are byte-identical.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	ids := make([]LightID, 0, len(s.Lights))
	for id := range s.Lights {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	buf := []byte(`{"connectedusers":`)
	buf = strconv.AppendInt(buf, int64(s.ConnectedUsers), 10)
	for _, id := range ids {
		entry, err := json.Marshal(s.Lights[id])
		if err != nil {
			return nil, fmt.Errorf("marshal light %d: %w", id, err)
		}
		buf = append(buf, ',', '"')
		buf = strconv.AppendInt(buf, int64(id), 10)
		buf = append(buf, '"', ':')
		buf = append(buf, entry...)
	}
	buf = append(buf, '}')
	return buf, nil
}
