package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/confengine/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// configurationRow holds the nullable and JSONB columns of a configurations
// row until they are decoded into a model.Configuration.
type configurationRow struct {
	c            model.Configuration
	description  sql.NullString
	defaultValue sql.NullString
	parentID     sql.NullString
	rules        []byte
	conditions   []byte
	translations []byte
}

// dest returns scan targets in the order defined by configurationColumns.
func (r *configurationRow) dest() []any {
	return []any{
		&r.c.ID,
		&r.c.Key,
		&r.c.Label,
		&r.description,
		&r.c.DataType,
		&r.defaultValue,
		&r.c.Active,
		&r.parentID,
		&r.rules,
		&r.conditions,
		&r.translations,
		&r.c.CreatedAt,
		&r.c.UpdatedAt,
	}
}

func (r *configurationRow) decode() (*model.Configuration, error) {
	c := r.c
	c.Description = r.description.String
	c.DefaultValue = r.defaultValue.String
	if r.parentID.Valid {
		p := r.parentID.String
		c.ParentConfigID = &p
	}
	if err := decodeJSONB(r.rules, &c.ValidationRules); err != nil {
		return nil, fmt.Errorf("decode validation_rules of %s: %w", c.ID, err)
	}
	if err := decodeJSONB(r.conditions, &c.ParentConditions); err != nil {
		return nil, fmt.Errorf("decode parent_conditions of %s: %w", c.ID, err)
	}
	if err := decodeJSONB(r.translations, &c.Translations); err != nil {
		return nil, fmt.Errorf("decode translations of %s: %w", c.ID, err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// scanConfiguration scans a single row into a model.Configuration.
func scanConfiguration(row scannable) (*model.Configuration, error) {
	var r configurationRow
	if err := row.Scan(r.dest()...); err != nil {
		return nil, err
	}
	return r.decode()
}

// scanConfigurationWithTotal scans a row that has a leading total_count
// column followed by the standard configuration columns.
func scanConfigurationWithTotal(row scannable) (*model.Configuration, int, error) {
	var (
		total int
		r     configurationRow
	)
	if err := row.Scan(append([]any{&total}, r.dest()...)...); err != nil {
		return nil, 0, err
	}
	c, err := r.decode()
	if err != nil {
		return nil, 0, err
	}
	return c, total, nil
}

// scanEvent scans a single row into a model.Event.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		actor         sql.NullString
		correlationID sql.NullString
		payload       []byte
	)
	err := row.Scan(&e.ID, &e.Topic, &e.ConfigurationID, &actor, &correlationID, &payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Actor = actor.String
	e.CorrelationID = correlationID.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringPtr converts an optional id to sql.NullString.
func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullString(*s)
}

// jsonbList encodes a collection for a JSONB column. Nil encodes as [].
func jsonbList[T any](items []T) ([]byte, error) {
	if items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(items)
}

func decodeJSONB(data []byte, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
