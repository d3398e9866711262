package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvollmer/homescope/internal/record"
)

// Housing columns the flat filter parameters map onto.
const (
	priceColumn    = "median_house_value"
	bedroomsColumn = "total_bedrooms"
	oceanColumn    = "ocean_proximity"
)

// DefaultLimit caps row queries when the caller does not ask for a limit.
const DefaultLimit = 5

// QueryParams are the flat row-query parameters the agent's query tool emits.
// Pointer fields distinguish "absent" from zero.
type QueryParams struct {
	OceanProximity string   `json:"ocean_proximity,omitempty"`
	MinPrice       *float64 `json:"min_price,omitempty"`
	MaxPrice       *float64 `json:"max_price,omitempty"`
	MinBedrooms    *float64 `json:"min_bedrooms,omitempty"`
	MaxBedrooms    *float64 `json:"max_bedrooms,omitempty"`
	SortBy         string   `json:"sort_by,omitempty"`
	SortOrder      string   `json:"sort_order,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Columns        []string `json:"columns,omitempty"`
}

// StatsParams are the flat aggregation parameters of the stats tool.
type StatsParams struct {
	GroupBy              string   `json:"group_by"`
	TargetCol            string   `json:"target_col,omitempty"`
	AggType              string   `json:"agg_type,omitempty"`
	FilterMinPrice       *float64 `json:"filter_min_price,omitempty"`
	FilterMaxPrice       *float64 `json:"filter_max_price,omitempty"`
	FilterOceanProximity string   `json:"filter_ocean_proximity,omitempty"`
}

// filter is one WHERE predicate on a validated column.
type filter struct {
	column string
	op     string
	value  any
}

// allowedOps is the operator allowlist for WHERE predicates.
var allowedOps = map[string]bool{
	"=": true, "!=": true, ">": true, ">=": true, "<": true, "<=": true,
	"LIKE": true, "IN": true,
}

// buildWhere assembles a parameterised WHERE clause. Filters on unknown
// columns or with disallowed operators are skipped rather than rejected;
// the model sometimes invents filter columns. No filters left means "1=1".
func (s *Store) buildWhere(ctx context.Context, filters []filter) (string, []any) {
	var clauses []string
	var args []any
	for _, f := range filters {
		op := strings.ToUpper(f.op)
		if !s.validColumn(ctx, f.column) || !allowedOps[op] {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%q %s ?", f.column, op))
		args = append(args, f.value)
	}
	if len(clauses) == 0 {
		return "1=1", nil
	}
	return strings.Join(clauses, " AND "), args
}

// Query runs a row-level query and returns ordered records.
func (s *Store) Query(ctx context.Context, p QueryParams) ([]record.Record, error) {
	var filters []filter
	if p.OceanProximity != "" {
		filters = append(filters, filter{oceanColumn, "=", p.OceanProximity})
	}
	if p.MinPrice != nil {
		filters = append(filters, filter{priceColumn, ">=", *p.MinPrice})
	}
	if p.MaxPrice != nil {
		filters = append(filters, filter{priceColumn, "<=", *p.MaxPrice})
	}
	if p.MinBedrooms != nil {
		filters = append(filters, filter{bedroomsColumn, ">=", *p.MinBedrooms})
	}
	if p.MaxBedrooms != nil {
		filters = append(filters, filter{bedroomsColumn, "<=", *p.MaxBedrooms})
	}

	sel := "*"
	if len(p.Columns) > 0 {
		var safe []string
		for _, c := range p.Columns {
			if s.validColumn(ctx, c) {
				safe = append(safe, fmt.Sprintf("%q", c))
			}
		}
		if len(safe) > 0 {
			sel = strings.Join(safe, ", ")
		}
	}

	where, args := s.buildWhere(ctx, filters)

	order := ""
	if p.SortBy != "" && s.validColumn(ctx, p.SortBy) {
		dir := "ASC"
		if strings.EqualFold(p.SortOrder, "DESC") {
			dir = "DESC"
		}
		order = fmt.Sprintf(" ORDER BY %q %s", p.SortBy, dir)
	}

	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := fmt.Sprintf("SELECT %s FROM %q WHERE %s%s LIMIT %d",
		sel, s.table, where, order, limit)
	s.logger.Debug("row query", "sql", query, "args", args)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// aggFunctions maps accepted agg_type spellings to SQL aggregates.
var aggFunctions = map[string]string{
	"average": "AVG", "mean": "AVG", "avg": "AVG",
	"sum": "SUM", "count": "COUNT", "min": "MIN", "max": "MAX",
}

// ErrUnknownColumn marks a stats request naming a column outside the schema.
type ErrUnknownColumn struct {
	Column string
}

func (e ErrUnknownColumn) Error() string {
	return fmt.Sprintf("Unknown column: %s", e.Column)
}

// Stats runs a grouped aggregation. The result rows have exactly two columns,
// the grouping column first and the aggregate aliased as "value", ordered by
// value descending.
func (s *Store) Stats(ctx context.Context, p StatsParams) ([]record.Record, error) {
	if !s.validColumn(ctx, p.GroupBy) {
		return nil, ErrUnknownColumn{Column: p.GroupBy}
	}

	target := p.TargetCol
	if target == "" {
		target = priceColumn
	}
	if !s.validColumn(ctx, target) {
		return nil, ErrUnknownColumn{Column: target}
	}

	agg := aggFunctions[strings.ToLower(p.AggType)]
	if agg == "" {
		agg = "AVG"
	}

	var filters []filter
	if p.FilterMinPrice != nil {
		filters = append(filters, filter{priceColumn, ">=", *p.FilterMinPrice})
	}
	if p.FilterMaxPrice != nil {
		filters = append(filters, filter{priceColumn, "<=", *p.FilterMaxPrice})
	}
	if p.FilterOceanProximity != "" {
		filters = append(filters, filter{oceanColumn, "=", p.FilterOceanProximity})
	}

	where, args := s.buildWhere(ctx, filters)

	query := fmt.Sprintf(
		"SELECT %q, %s(%q) AS value FROM %q WHERE %s GROUP BY %q ORDER BY value DESC",
		p.GroupBy, agg, target, s.table, where, p.GroupBy)
	s.logger.Debug("stats query", "sql", query, "args", args)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}
