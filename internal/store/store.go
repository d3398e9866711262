// Package store is the SQLite storage layer of the pipeline service. It owns
// CSV ingestion, schema-validated query building, and the row/aggregation
// operations exposed by the data API.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/dvollmer/homescope/internal/knowledge"
	"github.com/dvollmer/homescope/internal/log"
	"github.com/dvollmer/homescope/internal/record"
)

// Open opens a SQLite database at dbPath, creating the parent directory.
func Open(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// Store wraps the active table of the ingested dataset.
type Store struct {
	db     *sql.DB
	table  string
	logger log.Logger
}

// New creates a Store over db for the given table name.
func New(db *sql.DB, table string, logger log.Logger) *Store {
	return &Store{db: db, table: table, logger: logger}
}

// Table returns the active table name.
func (s *Store) Table() string {
	return s.table
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

// Columns returns the active table's column names in schema order, read from
// the live schema so a re-ingestion is reflected immediately.
func (s *Store) Columns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", s.table))
	if err != nil {
		return nil, fmt.Errorf("reading table info: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			dfltValue  sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dfltValue, &primaryKey); err != nil {
			return nil, fmt.Errorf("scanning table info: %w", err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating table info: %w", err)
	}
	return cols, nil
}

// HasTable reports whether the active table exists.
func (s *Store) HasTable(ctx context.Context) bool {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", s.table).Scan(&n)
	return err == nil && n > 0
}

// validColumn reports whether col exists in the active table. Unknown columns
// are silently skipped by callers rather than rejected; values never reach
// SQL unvalidated because identifiers are checked here and everything else is
// bound as a parameter.
func (s *Store) validColumn(ctx context.Context, col string) bool {
	if col == "" {
		return false
	}
	cols, err := s.Columns(ctx)
	if err != nil {
		return false
	}
	for _, c := range cols {
		if c == col {
			return true
		}
	}
	return false
}

// Profile computes per-column statistics for knowledge-base generation.
func (s *Store) Profile(ctx context.Context) ([]knowledge.ColumnStats, error) {
	cols, err := s.Columns(ctx)
	if err != nil {
		return nil, err
	}

	stats := make([]knowledge.ColumnStats, 0, len(cols))
	for _, col := range cols {
		cs := knowledge.ColumnStats{Name: col}

		var numeric int
		// A column is numeric when every non-null value is numeric.
		err := s.db.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT COUNT(*) = SUM(typeof(%q) IN ('integer','real')) FROM %q WHERE %q IS NOT NULL`,
			col, s.table, col)).Scan(&numeric)
		if err != nil {
			return nil, fmt.Errorf("profiling column %q: %w", col, err)
		}
		cs.Numeric = numeric == 1

		if cs.Numeric {
			var mn, mx, mean sql.NullFloat64
			err := s.db.QueryRowContext(ctx, fmt.Sprintf(
				`SELECT MIN(%q), MAX(%q), AVG(%q) FROM %q`, col, col, col, s.table)).
				Scan(&mn, &mx, &mean)
			if err != nil {
				return nil, fmt.Errorf("profiling column %q: %w", col, err)
			}
			cs.Min, cs.Max, cs.Mean = mn.Float64, mx.Float64, mean.Float64
		}

		err = s.db.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT COUNT(DISTINCT %q), (SELECT COUNT(*) FROM %q WHERE %q IS NULL) FROM %q`,
			col, s.table, col, s.table)).Scan(&cs.Distinct, &cs.Nulls)
		if err != nil {
			return nil, fmt.Errorf("profiling column %q: %w", col, err)
		}

		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
			`SELECT DISTINCT %q FROM %q WHERE %q IS NOT NULL LIMIT 5`, col, s.table, col))
		if err != nil {
			return nil, fmt.Errorf("sampling column %q: %w", col, err)
		}
		for rows.Next() {
			var v any
			if err := rows.Scan(&v); err != nil {
				rows.Close()
				return nil, fmt.Errorf("sampling column %q: %w", col, err)
			}
			cs.Samples = append(cs.Samples, fmt.Sprintf("%v", v))
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sampling column %q: %w", col, err)
		}
		rows.Close()

		stats = append(stats, cs)
	}
	return stats, nil
}

// scanRecords turns sql rows into ordered records, preserving column order.
func scanRecords(rows *sql.Rows) ([]record.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	out := []record.Record{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		rec := make(record.Record, len(cols))
		for i, c := range cols {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec[i] = record.Field{Name: c, Value: v}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}
