// Package client provides a transport-agnostic interface for the
// configuration service and an HTTP/JSON implementation that talks to its
// REST API.
package client

import (
	"context"
	"encoding/json"

	"github.com/alfredjeanlab/confengine/internal/model"
)

// ConfigClient is the interface that all confctl commands use to communicate
// with the configuration server. It is implemented by HTTPClient.
type ConfigClient interface {
	// Configuration CRUD
	ListConfigurations(ctx context.Context, q ListQuery) (*ListResponse, error)
	ListAllConfigurations(ctx context.Context, q ListQuery) ([]*model.Configuration, error)
	GetConfiguration(ctx context.Context, id string) (*model.Configuration, error)
	ResolveConfiguration(ctx context.Context, idOrKey string) (*model.Configuration, error)
	CreateConfiguration(ctx context.Context, req *CreateRequest) (*model.Configuration, error)
	UpdateConfiguration(ctx context.Context, id string, req *UpdateRequest) (*model.Configuration, error)
	DeleteConfiguration(ctx context.Context, id string) error

	// ParentOptions lists the records id may be moved under. An empty id
	// lists every candidate.
	ParentOptions(ctx context.Context, id string) ([]*model.Configuration, error)

	// Events
	GetEvents(ctx context.Context, id string) ([]*model.Event, error)
	StreamEvents(ctx context.Context, req StreamRequest, fn func(StreamEvent) error) error

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// CreateRequest holds parameters for creating a configuration.
type CreateRequest struct {
	Key              string                  `json:"key"`
	Label            string                  `json:"label"`
	Description      string                  `json:"description,omitempty"`
	DataType         model.DataType          `json:"data_type"`
	DefaultValue     string                  `json:"default_value,omitempty"`
	Active           *bool                   `json:"active,omitempty"`
	ParentConfigID   string                  `json:"parent_config_id,omitempty"`
	ValidationRules  []model.ValidationRule  `json:"validation_rules,omitempty"`
	ParentConditions []model.ParentCondition `json:"parent_conditions,omitempty"`
	Translations     []model.Translation     `json:"translations,omitempty"`
}

// UpdateRequest holds optional parameters for updating a configuration.
// Nil fields mean "don't change". A ParentConfigID pointing at "" detaches
// the record.
type UpdateRequest struct {
	Label            *string                  `json:"label,omitempty"`
	Description      *string                  `json:"description,omitempty"`
	DataType         *model.DataType          `json:"data_type,omitempty"`
	DefaultValue     *string                  `json:"default_value,omitempty"`
	Active           *bool                    `json:"active,omitempty"`
	ParentConfigID   *string                  `json:"parent_config_id,omitempty"`
	ValidationRules  *[]model.ValidationRule  `json:"validation_rules,omitempty"`
	ParentConditions *[]model.ParentCondition `json:"parent_conditions,omitempty"`
	Translations     *[]model.Translation     `json:"translations,omitempty"`
}

// IsEmpty reports whether the request changes nothing.
func (r *UpdateRequest) IsEmpty() bool {
	return r.Label == nil && r.Description == nil && r.DataType == nil &&
		r.DefaultValue == nil && r.Active == nil && r.ParentConfigID == nil &&
		r.ValidationRules == nil && r.ParentConditions == nil && r.Translations == nil
}

// ListQuery selects configurations. Zero fields leave the server defaults.
type ListQuery struct {
	Limit  int
	Offset int
	Search string // substring of key or label
	Active *bool
}

// ListResponse is one page of configurations.
type ListResponse struct {
	Items  []*model.Configuration `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// StreamRequest selects which events StreamEvents delivers.
type StreamRequest struct {
	// Topics are NATS-style patterns ("configuration.*", ">"). Empty means
	// every topic.
	Topics []string
	// LastEventID resumes after the given event id.
	LastEventID string
}

// StreamEvent is one server-sent event.
type StreamEvent struct {
	ID    string
	Topic string
	Data  json.RawMessage
}
