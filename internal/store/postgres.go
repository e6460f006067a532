package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Postgres stores tables in a single relation keyed by (tab, pos), with each
// row's cells JSON-encoded. Requires the lib/pq driver to be registered.
type Postgres struct {
	db *sql.DB
}

// NewPostgres initializes the backing relation and returns the store.
func NewPostgres(db *sql.DB) (*Postgres, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS table_rows (
			tab   TEXT    NOT NULL,
			pos   INTEGER NOT NULL,
			cells TEXT    NOT NULL,
			PRIMARY KEY (tab, pos)
		)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

// ReadTable returns all rows of the named table in stored order.
func (s *Postgres) ReadTable(ctx context.Context, name string) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cells FROM table_rows WHERE tab = $1 ORDER BY pos`, name)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("failed to read table %s: %w", name, err)}
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, &TransientError{Err: fmt.Errorf("failed to scan row of %s: %w", name, err)}
		}
		var cells []string
		if err := json.Unmarshal([]byte(encoded), &cells); err != nil {
			return nil, &FatalError{
				Err:      fmt.Errorf("corrupt row in table %s: %w", name, err),
				Guidance: "the stored row is not a JSON string array; repair or drop the row",
			}
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, &TransientError{Err: fmt.Errorf("failed to read table %s: %w", name, err)}
	}
	return out, nil
}

// WriteTable replaces the named table with rows.
func (s *Postgres) WriteTable(ctx context.Context, name string, rows [][]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &TransientError{Err: fmt.Errorf("failed to begin write of %s: %w", name, err)}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM table_rows WHERE tab = $1`, name); err != nil {
		return &TransientError{Err: fmt.Errorf("failed to clear table %s: %w", name, err)}
	}
	for pos, row := range rows {
		encoded, err := json.Marshal(row)
		if err != nil {
			return &FatalError{Err: fmt.Errorf("failed to encode row %d of %s: %w", pos, name, err)}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO table_rows (tab, pos, cells) VALUES ($1, $2, $3)`,
			name, pos, string(encoded)); err != nil {
			return &TransientError{Err: fmt.Errorf("failed to write row %d of %s: %w", pos, name, err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return &TransientError{Err: fmt.Errorf("failed to commit write of %s: %w", name, err)}
	}
	return nil
}
