package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/confengine/internal/model"
)

// ErrDuplicateKey is returned by CreateConfiguration when the key is taken.
var ErrDuplicateKey = errors.New("duplicate configuration key")

// ErrParentNotFound is returned when parent_config_id names no record.
var ErrParentNotFound = errors.New("parent configuration not found")

// Store defines the persistence interface for configurations.
// Lookups that find nothing return sql.ErrNoRows.
type Store interface {
	// Configuration CRUD
	CreateConfiguration(ctx context.Context, c *model.Configuration) error
	GetConfiguration(ctx context.Context, id string) (*model.Configuration, error)
	GetConfigurationByKey(ctx context.Context, key string) (*model.Configuration, error)
	ListConfigurations(ctx context.Context, filter model.ConfigurationFilter) ([]*model.Configuration, int, error) // returns records, total count, error
	UpdateConfiguration(ctx context.Context, c *model.Configuration) error
	DeleteConfiguration(ctx context.Context, id string) error

	// AncestorIDs returns the ids on id's parent chain, nearest first.
	// Traversal stops at a repeated id.
	AncestorIDs(ctx context.Context, id string) ([]string, error)

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, configurationID string) ([]*model.Event, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
