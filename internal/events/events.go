package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/confengine/internal/model"
)

// Event topic constants
const (
	TopicConfigurationCreated = "configuration.created"
	TopicConfigurationUpdated = "configuration.updated"
	TopicConfigurationDeleted = "configuration.deleted"

	// Process lifecycle, emitted by `confctl serve`.
	TopicSystemStarted = "system.started"
	TopicSystemStopped = "system.stopped"
)

// Source identifies this service in outgoing event metadata.
const Source = "configuration-engine"

// Event types

type ConfigurationCreated struct {
	ConfigurationID string               `json:"configuration_id"`
	Key             string               `json:"key"`
	Label           string               `json:"label"`
	DataType        model.DataType       `json:"data_type"`
	CreatedAt       time.Time            `json:"created_at"`
	CorrelationID   string               `json:"correlation_id,omitempty"`
	Configuration   *model.Configuration `json:"configuration"`
}

type ConfigurationUpdated struct {
	ConfigurationID string               `json:"configuration_id"`
	Key             string               `json:"key"`
	Label           string               `json:"label"`
	DataType        model.DataType       `json:"data_type"`
	UpdatedAt       time.Time            `json:"updated_at"`
	Changes         map[string]any       `json:"changes"` // field name -> new value
	CorrelationID   string               `json:"correlation_id,omitempty"`
	Configuration   *model.Configuration `json:"configuration"`
}

type ConfigurationDeleted struct {
	ConfigurationID string               `json:"configuration_id"`
	Key             string               `json:"key"`
	Label           string               `json:"label"`
	DataType        model.DataType       `json:"data_type"`
	DeletedAt       time.Time            `json:"deleted_at"`
	CorrelationID   string               `json:"correlation_id,omitempty"`
	Configuration   *model.Configuration `json:"configuration"`
}

type SystemStarted struct {
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
}

type SystemStopped struct {
	StoppedAt time.Time `json:"stopped_at"`
}

// NewCreated builds the created event for c.
func NewCreated(c *model.Configuration, correlationID string) ConfigurationCreated {
	return ConfigurationCreated{
		ConfigurationID: c.ID,
		Key:             c.Key,
		Label:           c.Label,
		DataType:        c.DataType,
		CreatedAt:       c.CreatedAt,
		CorrelationID:   correlationID,
		Configuration:   c,
	}
}

// NewUpdated builds the updated event for c.
func NewUpdated(c *model.Configuration, changes map[string]any, correlationID string) ConfigurationUpdated {
	return ConfigurationUpdated{
		ConfigurationID: c.ID,
		Key:             c.Key,
		Label:           c.Label,
		DataType:        c.DataType,
		UpdatedAt:       c.UpdatedAt,
		Changes:         changes,
		CorrelationID:   correlationID,
		Configuration:   c,
	}
}

// NewDeleted builds the deleted event for c.
func NewDeleted(c *model.Configuration, deletedAt time.Time, correlationID string) ConfigurationDeleted {
	return ConfigurationDeleted{
		ConfigurationID: c.ID,
		Key:             c.Key,
		Label:           c.Label,
		DataType:        c.DataType,
		DeletedAt:       deletedAt,
		CorrelationID:   correlationID,
		Configuration:   c,
	}
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
