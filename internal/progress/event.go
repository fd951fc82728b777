package progress

import (
	"encoding/json"
	"time"
)

// Event is one progress message for a run. Optional fields are omitted
// when unset so messages broadcast verbatim stay small.
type Event struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"ts"`
	RunID     string            `json:"run_id"`
	State     string            `json:"state,omitempty"`
	Progress  *float64          `json:"progress,omitempty"`
	Log       string            `json:"log,omitempty"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

// Encode serializes the event for transport.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Fraction wraps a progress value for the optional Progress field.
func Fraction(value float64) *float64 {
	return &value
}
