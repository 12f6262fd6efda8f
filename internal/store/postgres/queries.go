package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/confengine/internal/model"
	"github.com/alfredjeanlab/confengine/internal/store"
)

// configurationColumns is the column list used for SELECT statements on the
// configurations table.
const configurationColumns = `id, key, label, description, data_type, default_value,
	active, parent_config_id, validation_rules, parent_conditions, translations,
	created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres error codes mapped to store sentinels.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// mapWriteError turns constraint violations into store sentinels.
func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return store.ErrDuplicateKey
		case pqForeignKeyViolation:
			return store.ErrParentNotFound
		}
	}
	return err
}

type jsonbColumns struct {
	rules, conditions, translations []byte
}

func encodeJSONB(c *model.Configuration) (jsonbColumns, error) {
	var (
		cols jsonbColumns
		err  error
	)
	if cols.rules, err = jsonbList(c.ValidationRules); err != nil {
		return cols, fmt.Errorf("encode validation_rules: %w", err)
	}
	if cols.conditions, err = jsonbList(c.ParentConditions); err != nil {
		return cols, fmt.Errorf("encode parent_conditions: %w", err)
	}
	if cols.translations, err = jsonbList(c.Translations); err != nil {
		return cols, fmt.Errorf("encode translations: %w", err)
	}
	return cols, nil
}

func queryCreateConfiguration(ctx context.Context, db executor, c *model.Configuration) error {
	cols, err := encodeJSONB(c)
	if err != nil {
		return err
	}
	err = db.QueryRowContext(ctx, `
		INSERT INTO configurations (
			id, key, label, description, data_type, default_value, active,
			parent_config_id, validation_rules, parent_conditions, translations
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11
		)
		RETURNING created_at, updated_at`,
		c.ID,
		c.Key,
		c.Label,
		nullString(c.Description),
		string(c.DataType),
		nullString(c.DefaultValue),
		c.Active,
		nullStringPtr(c.ParentConfigID),
		cols.rules,
		cols.conditions,
		cols.translations,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return nil
}

func queryGetConfiguration(ctx context.Context, db executor, id string) (*model.Configuration, error) {
	row := db.QueryRowContext(ctx, `SELECT `+configurationColumns+` FROM configurations WHERE id = $1`, id)
	return scanConfiguration(row)
}

func queryGetConfigurationByKey(ctx context.Context, db executor, key string) (*model.Configuration, error) {
	row := db.QueryRowContext(ctx, `SELECT `+configurationColumns+` FROM configurations WHERE key = $1`, key)
	return scanConfiguration(row)
}

func queryListConfigurations(ctx context.Context, db executor, filter model.ConfigurationFilter) ([]*model.Configuration, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.Active != nil {
		whereClauses = append(whereClauses, "active = "+nextArg())
		args = append(args, *filter.Active)
	}

	if filter.Search != "" {
		p := nextArg()
		whereClauses = append(whereClauses,
			fmt.Sprintf("(key ILIKE '%%' || %s || '%%' OR label ILIKE '%%' || %s || '%%')", p, p))
		args = append(args, filter.Search)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}
	filterArgs := len(args)

	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + configurationColumns +
		" FROM configurations" + whereSQL + " ORDER BY created_at ASC, id ASC"

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list configurations: %w", err)
	}
	defer rows.Close()

	var configs []*model.Configuration
	var total int
	for rows.Next() {
		c, t, err := scanConfigurationWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan configurations: %w", err)
		}
		total = t
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan configurations: %w", err)
	}

	// A page past the end has no rows to carry the window count.
	if len(configs) == 0 && filter.Offset > 0 {
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM configurations"+whereSQL, args[:filterArgs]...).Scan(&total)
		if err != nil {
			return nil, 0, fmt.Errorf("count configurations: %w", err)
		}
	}

	return configs, total, nil
}

func queryUpdateConfiguration(ctx context.Context, db executor, c *model.Configuration) error {
	cols, err := encodeJSONB(c)
	if err != nil {
		return err
	}
	err = db.QueryRowContext(ctx, `
		UPDATE configurations SET
			label = $2,
			description = $3,
			data_type = $4,
			default_value = $5,
			active = $6,
			parent_config_id = $7,
			validation_rules = $8,
			parent_conditions = $9,
			translations = $10,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID,
		c.Label,
		nullString(c.Description),
		string(c.DataType),
		nullString(c.DefaultValue),
		c.Active,
		nullStringPtr(c.ParentConfigID),
		cols.rules,
		cols.conditions,
		cols.translations,
	).Scan(&c.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	c.UpdatedAt = c.UpdatedAt.UTC()
	return nil
}

func queryDeleteConfiguration(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM configurations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// queryAncestorIDs walks parent_config_id upwards. The depth cap bounds a
// cyclic chain in SQL; the first repeated id ends the scan.
func queryAncestorIDs(ctx context.Context, db executor, id string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		WITH RECURSIVE chain(id, parent_config_id, depth) AS (
			SELECT id, parent_config_id, 0 FROM configurations WHERE id = $1
			UNION
			SELECT c.id, c.parent_config_id, chain.depth + 1
			FROM configurations c
			JOIN chain ON c.id = chain.parent_config_id
			WHERE chain.depth < 1000
		)
		SELECT id FROM chain WHERE depth > 0 ORDER BY depth ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("ancestors of %s: %w", id, err)
	}
	defer rows.Close()

	var ids []string
	seen := make(map[string]bool)
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		if seen[a] {
			break
		}
		seen[a] = true
		ids = append(ids, a)
	}
	return ids, rows.Err()
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, configuration_id, actor, correlation_id, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		e.Topic, e.ConfigurationID, nullString(e.Actor), nullString(e.CorrelationID), []byte(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEvents(ctx context.Context, db executor, configurationID string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, configuration_id, actor, correlation_id, payload, created_at
		FROM events
		WHERE configuration_id = $1
		ORDER BY created_at ASC, id ASC`,
		configurationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}
