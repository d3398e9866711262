package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// TableName derives the SQL table name from a CSV filename:
// "housing.csv" → "housing", "my sales data.csv" → "my_sales_data".
func TableName(csvPath string) string {
	base := filepath.Base(csvPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return sanitizeName(base)
}

// sanitizeName normalizes an identifier: trimmed, lower-cased, spaces and
// hyphens to underscores, parentheses stripped.
func sanitizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	r := strings.NewReplacer(" ", "_", "-", "_", "(", "", ")", "")
	return r.Replace(s)
}

// FindCSV locates the CSV file, trying the path itself and then data/.
func FindCSV(csvFile string) (string, error) {
	for _, p := range []string{csvFile, filepath.Join("data", csvFile)} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("csv file %q not found (looked in . and data/)", csvFile)
}

// IngestCSV loads the CSV at path into the active table, replacing any
// existing table of that name. Column names are sanitized; a column whose
// non-empty values all parse as numbers becomes REAL, everything else TEXT.
// Empty cells become NULL. The whole load runs in one transaction.
// Returns the row count and the sanitized column names.
func (s *Store) IngestCSV(ctx context.Context, path string) (int, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("opening csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return 0, nil, fmt.Errorf("reading csv header: %w", err)
	}

	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = sanitizeName(h)
	}

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, nil, fmt.Errorf("reading csv row: %w", err)
		}
		records = append(records, rec)
	}

	numeric := inferNumeric(cols, records)

	defs := make([]string, len(cols))
	for i, c := range cols {
		typ := "TEXT"
		if numeric[i] {
			typ = "REAL"
		}
		defs[i] = fmt.Sprintf("%q %s", c, typ)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("starting ingest transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", s.table)); err != nil {
		return 0, nil, fmt.Errorf("dropping old table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE %q (%s)", s.table, strings.Join(defs, ", "))); err != nil {
		return 0, nil, fmt.Errorf("creating table: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %q VALUES (%s)", s.table, placeholders))
	if err != nil {
		return 0, nil, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		args := make([]any, len(cols))
		for i := range cols {
			if i >= len(rec) || rec[i] == "" {
				args[i] = nil
				continue
			}
			if numeric[i] {
				v, err := strconv.ParseFloat(rec[i], 64)
				if err != nil {
					args[i] = nil
					continue
				}
				args[i] = v
				continue
			}
			args[i] = rec[i]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, nil, fmt.Errorf("inserting row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("committing ingest: %w", err)
	}

	s.logger.Info("csv ingested", "table", s.table, "rows", len(records), "columns", len(cols))
	return len(records), cols, nil
}

// inferNumeric marks columns whose non-empty values all parse as floats.
// A column with no values at all stays TEXT.
func inferNumeric(cols []string, records [][]string) []bool {
	numeric := make([]bool, len(cols))
	seen := make([]bool, len(cols))
	for i := range cols {
		numeric[i] = true
	}
	for _, rec := range records {
		for i := range cols {
			if i >= len(rec) || rec[i] == "" {
				continue
			}
			seen[i] = true
			if _, err := strconv.ParseFloat(rec[i], 64); err != nil {
				numeric[i] = false
			}
		}
	}
	for i := range cols {
		if !seen[i] {
			numeric[i] = false
		}
	}
	return numeric
}
