// Package chart builds Vega-Lite v5 specifications from aggregated result
// rows. Building is deterministic and never involves the model: the chart kind
// is chosen by keyword matching against the user's original message.
package chart

import (
	"strings"

	"github.com/dvollmer/homescope/internal/record"
)

// SchemaURL identifies the Vega-Lite version the specs target.
const SchemaURL = "https://vega.github.io/schema/vega-lite/v5.json"

// valueField is the aggregated value column; the stats operation always
// aliases its aggregate as "value".
const valueField = "value"

// Keyword groups checked in fixed priority order. A message mentioning both a
// pie keyword and a line keyword yields a pie chart: first group wins.
var (
	pieKeywords     = []string{"pie", "distribution", "share", "proportion"}
	scatterKeywords = []string{"scatter", "correlation", "relationship"}
	lineKeywords    = []string{"line", "trend", "over time", "evolution"}
)

// Build turns non-empty aggregated rows plus the user's phrasing into a
// Vega-Lite spec. The grouping field is the first column of the first row, so
// callers must preserve response column order (store.Record does).
func Build(rows []record.Record, userMessage string) map[string]any {
	msg := strings.ToLower(userMessage)
	groupField := rows[0][0].Name

	base := map[string]any{
		"$schema": SchemaURL,
		"data":    map[string]any{"values": rows},
	}

	switch {
	case containsAny(msg, pieKeywords):
		base["width"] = 400
		base["height"] = 400
		base["mark"] = map[string]any{"type": "arc", "outerRadius": 120}
		base["encoding"] = map[string]any{
			"theta": map[string]any{"field": valueField, "type": "quantitative"},
			"color": map[string]any{
				"field":  groupField,
				"type":   "nominal",
				"legend": map[string]any{"title": groupField},
			},
		}

	case containsAny(msg, scatterKeywords):
		base["width"] = 700
		base["height"] = 500
		base["mark"] = "circle"
		base["encoding"] = map[string]any{
			"x": map[string]any{"field": groupField, "type": "quantitative"},
			"y": map[string]any{"field": valueField, "type": "quantitative"},
		}

	case containsAny(msg, lineKeywords):
		base["width"] = 700
		base["height"] = 500
		base["mark"] = "line"
		base["encoding"] = map[string]any{
			"x": map[string]any{"field": groupField, "type": "quantitative"},
			"y": map[string]any{"field": valueField, "type": "quantitative"},
		}

	default:
		xType := "nominal"
		if anyNumericGroup(rows, groupField) {
			xType = "quantitative"
		}

		x := map[string]any{
			"field": groupField,
			"type":  xType,
			"axis":  map[string]any{"labelAngle": -30},
		}
		if xType == "nominal" {
			// Categorical bars read best tallest-first.
			x["sort"] = "-y"
		}

		base["width"] = 700
		base["height"] = 450
		base["mark"] = "bar"
		base["encoding"] = map[string]any{
			"x": x,
			"y": map[string]any{"field": valueField, "type": "quantitative"},
			"tooltip": []map[string]any{
				{"field": groupField, "type": xType},
				{"field": valueField, "type": "quantitative", "format": ",.0f"},
			},
		}
	}

	return base
}

func containsAny(msg string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(msg, k) {
			return true
		}
	}
	return false
}

// anyNumericGroup reports whether any row carries a numeric grouping value.
// A single numeric sample is enough to treat the axis as quantitative.
func anyNumericGroup(rows []record.Record, field string) bool {
	for _, r := range rows {
		switch r.Get(field).(type) {
		case float64, int64, int, float32:
			return true
		}
	}
	return false
}
