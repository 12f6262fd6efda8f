// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/confengine/internal/model"
	"github.com/alfredjeanlab/confengine/internal/store"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New connects to databaseURL, sizes the pool and applies the embedded
// migrations before returning.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// NewWithDB wraps an open database without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateConfiguration(ctx context.Context, c *model.Configuration) error {
	return queryCreateConfiguration(ctx, s.db, c)
}

func (s *PostgresStore) GetConfiguration(ctx context.Context, id string) (*model.Configuration, error) {
	return queryGetConfiguration(ctx, s.db, id)
}

func (s *PostgresStore) GetConfigurationByKey(ctx context.Context, key string) (*model.Configuration, error) {
	return queryGetConfigurationByKey(ctx, s.db, key)
}

func (s *PostgresStore) ListConfigurations(ctx context.Context, filter model.ConfigurationFilter) ([]*model.Configuration, int, error) {
	return queryListConfigurations(ctx, s.db, filter)
}

func (s *PostgresStore) UpdateConfiguration(ctx context.Context, c *model.Configuration) error {
	return queryUpdateConfiguration(ctx, s.db, c)
}

func (s *PostgresStore) DeleteConfiguration(ctx context.Context, id string) error {
	return queryDeleteConfiguration(ctx, s.db, id)
}

func (s *PostgresStore) AncestorIDs(ctx context.Context, id string) ([]string, error) {
	return queryAncestorIDs(ctx, s.db, id)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEvents(ctx context.Context, configurationID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.db, configurationID)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateConfiguration(ctx context.Context, c *model.Configuration) error {
	return queryCreateConfiguration(ctx, s.tx, c)
}

func (s *txStore) GetConfiguration(ctx context.Context, id string) (*model.Configuration, error) {
	return queryGetConfiguration(ctx, s.tx, id)
}

func (s *txStore) GetConfigurationByKey(ctx context.Context, key string) (*model.Configuration, error) {
	return queryGetConfigurationByKey(ctx, s.tx, key)
}

func (s *txStore) ListConfigurations(ctx context.Context, filter model.ConfigurationFilter) ([]*model.Configuration, int, error) {
	return queryListConfigurations(ctx, s.tx, filter)
}

func (s *txStore) UpdateConfiguration(ctx context.Context, c *model.Configuration) error {
	return queryUpdateConfiguration(ctx, s.tx, c)
}

func (s *txStore) DeleteConfiguration(ctx context.Context, id string) error {
	return queryDeleteConfiguration(ctx, s.tx, id)
}

func (s *txStore) AncestorIDs(ctx context.Context, id string) ([]string, error) {
	return queryAncestorIDs(ctx, s.tx, id)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) GetEvents(ctx context.Context, configurationID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.tx, configurationID)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Ping is a no-op inside a transaction.
func (s *txStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
