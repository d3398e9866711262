// Package knowledge maintains the knowledge-base file describing the ingested
// dataset. The pipeline service writes it after ingestion; the agent service
// embeds its summary in every system prompt so the model knows which columns
// exist and what they mean.
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the knowledge-base file inside the work directory.
const FileName = "final_records.json"

// NoDataSummary is returned when no dataset has been ingested yet.
const NoDataSummary = "No data loaded yet."

// Context is the knowledge-base record for the active table.
type Context struct {
	Filename string            `json:"filename"`
	Columns  map[string]string `json:"columns"`
}

// Base is a file-backed knowledge store.
//
// Summary deliberately re-reads the file on every call: a concurrent
// re-ingestion is picked up on the next request without any cache
// invalidation. Do not add caching here.
type Base struct {
	path string
}

// NewBase returns a Base rooted in the given work directory.
func NewBase(workDir string) *Base {
	return &Base{path: filepath.Join(workDir, FileName)}
}

// Path returns the backing file path.
func (b *Base) Path() string {
	return b.path
}

// Summary returns the pretty-printed knowledge base for prompt embedding,
// read fresh from disk. A missing or empty file yields NoDataSummary.
func (b *Base) Summary() string {
	ctx, err := b.Load()
	if err != nil || ctx.Filename == "" {
		return NoDataSummary
	}
	out, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return NoDataSummary
	}
	return string(out)
}

// Load reads the knowledge base from disk.
func (b *Base) Load() (Context, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return Context{}, fmt.Errorf("reading knowledge base: %w", err)
	}
	var ctx Context
	if err := json.Unmarshal(data, &ctx); err != nil {
		return Context{}, fmt.Errorf("parsing knowledge base: %w", err)
	}
	return ctx, nil
}

// Save writes the knowledge base, creating the work directory if needed.
func (b *Base) Save(ctx Context) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o750); err != nil {
		return fmt.Errorf("creating work directory: %w", err)
	}
	data, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding knowledge base: %w", err)
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("writing knowledge base: %w", err)
	}
	return nil
}

// ColumnStats is the per-column profile the store computes after ingestion.
type ColumnStats struct {
	Name     string
	Numeric  bool
	Min      float64
	Max      float64
	Mean     float64
	Samples  []string // up to five distinct non-null values
	Distinct int
	Nulls    int
}

// BuildContext turns column profiles into the knowledge-base record.
func BuildContext(filename string, stats []ColumnStats) Context {
	cols := make(map[string]string, len(stats))
	for _, cs := range stats {
		cols[cs.Name] = describe(cs)
	}
	return Context{Filename: filename, Columns: cols}
}

// describe produces a human-readable column description: an inferred meaning
// from the name, numeric range and average, sample values for categorical or
// low-cardinality columns, and a missing-value note.
func describe(cs ColumnStats) string {
	parts := []string{inferMeaning(cs)}

	if cs.Numeric {
		parts = append(parts,
			fmt.Sprintf("Range: %.2f to %.2f", cs.Min, cs.Max),
			fmt.Sprintf("Average: %.2f", cs.Mean),
		)
	}

	if (!cs.Numeric || cs.Distinct <= 30) && len(cs.Samples) > 0 {
		parts = append(parts, "Possible values: "+strings.Join(cs.Samples, ", "))
	}

	if cs.Nulls > 0 {
		parts = append(parts, fmt.Sprintf("Note: %d missing values", cs.Nulls))
	}

	return strings.Join(parts, ". ") + "."
}

// inferMeaning guesses what a column represents from its name.
func inferMeaning(cs ColumnStats) string {
	name := strings.ToLower(cs.Name)
	switch {
	case strings.Contains(name, "price") || strings.Contains(name, "cost") || strings.Contains(name, "value"):
		return "The price or monetary value (measured in the dataset's currency unit)"
	case strings.Contains(name, "age"):
		return "The age or time period (in years)"
	case strings.Contains(name, "date") || strings.Contains(name, "time"):
		return "A timestamp or date value"
	case strings.Contains(name, "id") && (name == "id" || strings.HasSuffix(name, "_id")):
		return "A unique identifier for each record"
	case strings.Contains(name, "name") || strings.Contains(name, "title"):
		return "A label or name"
	case strings.Contains(name, "count") || strings.Contains(name, "total") || strings.Contains(name, "num"):
		return "A count or quantity"
	case strings.Contains(name, "latitude") || name == "lat":
		return "Geographic latitude coordinate (degrees)"
	case strings.Contains(name, "longitude") || name == "lon" || name == "lng":
		return "Geographic longitude coordinate (degrees)"
	case strings.Contains(name, "category") || strings.Contains(name, "type") || strings.Contains(name, "status"):
		return "A categorical label or classification"
	case strings.Contains(name, "percent") || strings.Contains(name, "rate") || strings.Contains(name, "ratio"):
		return "A percentage or rate value"
	case !cs.Numeric && len(cs.Samples) > 0:
		n := min(len(cs.Samples), 3)
		return "A categorical field with values like: " + strings.Join(cs.Samples[:n], ", ")
	case cs.Numeric:
		return "A numeric measurement or value"
	default:
		return "A text or categorical field"
	}
}
