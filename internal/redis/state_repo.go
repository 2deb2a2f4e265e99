package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/SJang1/traffic-light-websocket/internal/domain"
)

const (
	fieldStatus      = "status"
	fieldDistance    = "distance"
	fieldLastUpdated = "last_updated_ms"
)

// StateRepo stores the last-known value of each light as one hash per light
// (`light:<id>`). It is the durable collaborator the core is rehydrated from
// at startup; writes are issued fire-and-forget by the ingest service.
type StateRepo struct {
	rdb *goredis.Client
}

func NewStateRepo(rdb *goredis.Client) *StateRepo {
	return &StateRepo{rdb: rdb}
}

// Save overwrites the persisted record for one light.
func (r *StateRepo) Save(ctx context.Context, light domain.Light) error {
	key := lightKey(light.ID)
	err := r.rdb.HSet(ctx, key,
		fieldStatus, string(light.Status),
		fieldDistance, strconv.FormatFloat(light.Distance, 'f', -1, 64),
		fieldLastUpdated, strconv.FormatInt(light.LastUpdated.UnixMilli(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("save light %d: %w", light.ID, err)
	}
	return nil
}

// Load reads every persisted light record. Lights with no record (or with
// corrupt fields) are returned at their defaults so a partial rehydration
// never fails startup.
func (r *StateRepo) Load(ctx context.Context) (map[domain.LightID]domain.Light, error) {
	state := make(map[domain.LightID]domain.Light, len(domain.LightIDs))
	for _, id := range domain.LightIDs {
		fields, err := r.rdb.HGetAll(ctx, lightKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("load light %d: %w", id, err)
		}
		state[id] = lightFromFields(id, fields)
	}
	return state, nil
}

func lightFromFields(id domain.LightID, fields map[string]string) domain.Light {
	light := domain.NewDefaultLight(id)

	if status := domain.Status(fields[fieldStatus]); status.Valid() {
		light.Status = status
	}
	if raw, ok := fields[fieldDistance]; ok {
		if distance, err := strconv.ParseFloat(raw, 64); err == nil &&
			(distance == domain.DistanceUnknown || distance >= 0) {
			light.Distance = distance
		}
	}
	if raw, ok := fields[fieldLastUpdated]; ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
			light.LastUpdated = time.UnixMilli(ms).UTC()
		}
	}
	return light
}

func lightKey(id domain.LightID) string {
	return "light:" + strconv.Itoa(int(id))
}
