package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultLight(t *testing.T) {
	light := NewDefaultLight(1)

	assert.Equal(t, LightID(1), light.ID)
	assert.Equal(t, DefaultStatus, light.Status)
	assert.Equal(t, DistanceUnknown, light.Distance)
	assert.Equal(t, time.Unix(0, 0).UTC(), light.LastUpdated)
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusRed, StatusYellow, StatusGreen, StatusOff} {
		assert.True(t, s.Valid(), "status %q should be valid", s)
	}
	assert.False(t, Status("blue").Valid())
	assert.False(t, Status("").Valid())
	assert.False(t, Status("RED").Valid())
}

func TestKnownLight(t *testing.T) {
	assert.True(t, KnownLight(1))
	assert.True(t, KnownLight(2))
	assert.False(t, KnownLight(0))
	assert.False(t, KnownLight(99))
}

func TestSnapshotMarshalJSON(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	snapshot := Snapshot{
		ConnectedUsers: 3,
		Lights: map[LightID]Light{
			2: {ID: 2, Status: StatusGreen, Distance: 12.5, LastUpdated: ts},
			1: {ID: 1, Status: StatusRed, Distance: DistanceUnknown, LastUpdated: ts},
		},
	}

	data, err := json.Marshal(snapshot)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Contains(t, decoded, "connectedusers")
	require.Contains(t, decoded, "1")
	require.Contains(t, decoded, "2")

	var light1 Light
	require.NoError(t, json.Unmarshal(decoded["1"], &light1))
	assert.Equal(t, LightID(1), light1.ID)
	assert.Equal(t, StatusRed, light1.Status)
	assert.Equal(t, DistanceUnknown, light1.Distance)
}

func TestSnapshotMarshalJSON_Deterministic(t *testing.T) {
	snapshot := Snapshot{
		ConnectedUsers: 1,
		Lights: map[LightID]Light{
			1: NewDefaultLight(1),
			2: NewDefaultLight(2),
		},
	}

	first, err := json.Marshal(snapshot)
	require.NoError(t, err)

	// Map iteration order must not leak into the payload.
	for range 20 {
		next, err := json.Marshal(snapshot)
		require.NoError(t, err)
		assert.Equal(t, first, next)
	}
}

func TestSnapshotClone(t *testing.T) {
	original := Snapshot{
		ConnectedUsers: 2,
		Lights:         map[LightID]Light{1: NewDefaultLight(1)},
	}

	clone := original.Clone()
	clone.Lights[1] = Light{ID: 1, Status: StatusGreen, Distance: 5}

	assert.Equal(t, DefaultStatus, original.Lights[1].Status)
	assert.Equal(t, 2, clone.ConnectedUsers)
}
