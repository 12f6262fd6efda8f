package model

import (
	"encoding/json"
	"time"
)

// Event is a persisted event record, mirroring what is published to the bus.
type Event struct {
	ID              int64           `json:"id"`
	Topic           string          `json:"topic"`
	ConfigurationID string          `json:"configuration_id"`
	Actor           string          `json:"actor,omitempty"`
	CorrelationID   string          `json:"correlation_id,omitempty"`
	Payload         json.RawMessage `json:"payload"`
	CreatedAt       time.Time       `json:"created_at"`
}
