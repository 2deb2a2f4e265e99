package lights

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/SJang1/traffic-light-websocket/internal/domain"
)

// RawBatch maps the raw light ID key to its undecoded record. Records are
// decoded field by field during validation so a type mismatch inside one
// record rejects that entry only, never the whole batch.
type RawBatch map[string]json.RawMessage

// rawRecord defers field decoding: a non-string status or non-numeric
// distance must classify as a per-key rejection, not a parse failure.
type rawRecord struct {
	Status   json.RawMessage `json:"status"`
	Distance json.RawMessage `json:"distance"`
}

// ParseBatch decodes the top-level payload. A decode failure here means the
// payload is not a JSON object at all; that is the caller's MalformedRequest,
// nothing was validated and no state changed.
func ParseBatch(body []byte) (RawBatch, error) {
	var batch RawBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// KeyFor renders a light ID the way batch keys are spelled on the wire.
func KeyFor(id domain.LightID) string {
	return strconv.Itoa(int(id))
}

// ValidateBatch checks every record against the per-light constraints and
// splits the batch into accepted mutations and per-key rejections. Entries
// are independent: one bad record never blocks the rest. Updates are
// per-light all-or-nothing, not per-field merges, so an absent status
// rejects the record while an absent distance means the sentinel.
func ValidateBatch(batch RawBatch) (accepted []domain.Mutation, rejected []domain.Rejection) {
	for key, raw := range batch {
		id, err := strconv.Atoi(key)
		if err != nil || !domain.KnownLight(domain.LightID(id)) {
			rejected = append(rejected, domain.Rejection{Key: key, Reason: domain.ReasonUnknownLight})
			continue
		}

		record, ok := decodeRecord(raw)
		if !ok {
			rejected = append(rejected, domain.Rejection{Key: key, Reason: domain.ReasonMissingRecord})
			continue
		}

		status, ok := decodeStatus(record.Status)
		if !ok {
			rejected = append(rejected, domain.Rejection{Key: key, Reason: domain.ReasonInvalidStatus})
			continue
		}

		distance, ok := decodeDistance(record.Distance)
		if !ok {
			rejected = append(rejected, domain.Rejection{Key: key, Reason: domain.ReasonInvalidDistance})
			continue
		}

		accepted = append(accepted, domain.Mutation{
			ID:       domain.LightID(id),
			Status:   status,
			Distance: distance,
		})
	}
	return accepted, rejected
}

// decodeRecord reports false for a JSON null or a value that is not an
// object; both count as a missing record.
func decodeRecord(raw json.RawMessage) (rawRecord, bool) {
	if isNull(raw) {
		return rawRecord{}, false
	}
	var record rawRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return rawRecord{}, false
	}
	return record, true
}

// decodeStatus reports false for an absent or null status, a non-string
// value, or a label outside the fixed set.
func decodeStatus(raw json.RawMessage) (domain.Status, bool) {
	if len(raw) == 0 || isNull(raw) {
		return "", false
	}
	var label string
	if err := json.Unmarshal(raw, &label); err != nil {
		return "", false
	}
	status := domain.Status(label)
	return status, status.Valid()
}

// decodeDistance maps an absent or null distance to the sentinel and reports
// false for non-numeric values and numbers outside the valid range.
func decodeDistance(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || isNull(raw) {
		return domain.DistanceUnknown, true
	}
	var distance float64
	if err := json.Unmarshal(raw, &distance); err != nil {
		return 0, false
	}
	if distance != domain.DistanceUnknown &&
		(distance < 0 || math.IsNaN(distance) || math.IsInf(distance, 0)) {
		return 0, false
	}
	return distance, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
