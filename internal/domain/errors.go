package domain

import "errors"

// RejectionReason classifies why one entry of a mutation batch was refused.
type RejectionReason string

const (
	ReasonUnknownLight    RejectionReason = "unknown_light"
	ReasonInvalidStatus   RejectionReason = "invalid_status"
	ReasonInvalidDistance RejectionReason = "invalid_distance"
	ReasonMissingRecord   RejectionReason = "missing_record"
)

// Rejection reports one refused batch entry. Key is the raw map key from the
// request so unparseable IDs can still be echoed back.
type Rejection struct {
	Key    string          `json:"key"`
	Reason RejectionReason `json:"reason"`
}

var (
	// ErrUnknownLight is returned when a mutation targets an ID outside the
	// fixed set.
	ErrUnknownLight = errors.New("unknown light id")
	// ErrInvalidStatus is returned for a status outside the fixed label set.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidDistance is returned for a negative, NaN or infinite distance
	// other than the sentinel.
	ErrInvalidDistance = errors.New("invalid distance")
)
