// Package toolcall recovers structured tool invocations from free-form model
// output and reconciles their parameters.
//
// The model is instructed to emit raw JSON tool calls, but real output often
// arrives wrapped in markdown fences, split across lines, mixed with prose, or
// using Python-style literals. Extract is a best-effort recovery pass: every
// well-formed candidate is kept, everything else is silently dropped.
package toolcall

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Tool kinds the dispatch engine understands. Anything else is discarded.
const (
	ToolQuery = "housing_query"
	ToolStats = "housing_stats"
)

// Params maps filter/sort/aggregation keys to scalar values.
type Params map[string]any

// ToolCall is a single recovered tool invocation. Immutable once created.
type ToolCall struct {
	Tool       string `json:"tool"`
	Parameters Params `json:"parameters"`
}

// codeFenceRe strips markdown code-fence markers (with optional language tag).
var codeFenceRe = regexp.MustCompile("```[a-zA-Z]*\\s*|\\s*```")

// spaceRe collapses runs of whitespace (including newlines the model injects
// mid-object) to single spaces.
var spaceRe = regexp.MustCompile(`\s+`)

// Extract recovers all tool calls embedded in text, in source order.
//
// Candidates are found with a brace-depth scan: an opening brace starts a
// candidate, nested depth is tracked until it returns to zero, and the span is
// parsed strictly first, then leniently. A dangling open brace with no
// matching close is skipped without error. Candidates that parse but lack a
// recognized "tool" key are dropped. Returns an empty slice when nothing
// matches.
func Extract(text string) []ToolCall {
	text = codeFenceRe.ReplaceAllString(text, "")

	var calls []ToolCall
	i := 0
	for i < len(text) {
		if text[i] != '{' {
			i++
			continue
		}

		end := matchBrace(text, i)
		if end < 0 {
			// Unbalanced: skip this brace, keep scanning.
			i++
			continue
		}

		blob := spaceRe.ReplaceAllString(text[i:end+1], " ")
		if tc, ok := parseCandidate(blob); ok {
			calls = append(calls, tc)
		}
		i = end + 1
	}
	return calls
}

// matchBrace returns the index of the brace closing the object opened at
// start, or -1 if the text ends before depth returns to zero. Braces inside
// string literals are ignored.
func matchBrace(text string, start int) int {
	depth := 0
	inStr := false
	var quote byte
	for j := start; j < len(text); j++ {
		c := text[j]
		if inStr {
			switch c {
			case '\\':
				j++
			case quote:
				inStr = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			inStr = true
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// parseCandidate attempts strict JSON parsing first, then the lenient pass.
func parseCandidate(blob string) (ToolCall, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(blob), &obj); err != nil {
		relaxed, ok := relaxToJSON(blob)
		if !ok {
			return ToolCall{}, false
		}
		if err := json.Unmarshal([]byte(relaxed), &obj); err != nil {
			return ToolCall{}, false
		}
	}
	return fromObject(obj)
}

// fromObject validates the decoded candidate. The tool name must be one of
// the known kinds; a missing or empty parameters field becomes an empty map.
func fromObject(obj map[string]any) (ToolCall, bool) {
	name, ok := obj["tool"].(string)
	if !ok {
		return ToolCall{}, false
	}
	if name != ToolQuery && name != ToolStats {
		return ToolCall{}, false
	}

	params := Params{}
	if raw, ok := obj["parameters"].(map[string]any); ok {
		for k, v := range raw {
			params[k] = v
		}
	}
	return ToolCall{Tool: name, Parameters: params}, true
}

// Merge fills keys absent in dst from src, never overwriting existing keys.
// Returns a new map; neither input is mutated. Merging is one-directional and
// idempotent: Merge(Merge(dst, src), src) == Merge(dst, src).
func Merge(dst, src Params) Params {
	out := make(Params, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	return out
}

// QueryFilters maps a query call's filter parameters to their stats-call
// equivalents, so a stats call co-occurring with a query call can be scoped
// to the same subset of rows. Null values are dropped; an empty ocean
// proximity is treated as unset.
func QueryFilters(q Params) Params {
	out := Params{}
	if v, ok := q["max_price"]; ok && v != nil {
		out["filter_max_price"] = v
	}
	if v, ok := q["min_price"]; ok && v != nil {
		out["filter_min_price"] = v
	}
	if v, ok := q["ocean_proximity"]; ok && v != nil {
		if s, isStr := v.(string); !isStr || s != "" {
			out["filter_ocean_proximity"] = v
		}
	}
	return out
}

// HasPriceFilter reports whether p already scopes results by price.
// When true, filters from a co-occurring query call are not consulted:
// stats-declared filters always win.
func (p Params) HasPriceFilter() bool {
	_, hasMin := p["filter_min_price"]
	_, hasMax := p["filter_max_price"]
	return hasMin || hasMax
}

// relaxToJSON converts a Python-flavored object literal into strict JSON:
// single-quoted strings become double-quoted, bare True/False/None become
// JSON literals, and trailing commas before a closing bracket are removed.
// Returns false if the input is too mangled to convert (unterminated string).
func relaxToJSON(s string) (string, bool) {
	var b strings.Builder
	b.Grow(len(s))

	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			lit, next, ok := scanString(s, i)
			if !ok {
				return "", false
			}
			b.WriteString(lit)
			i = next
		case c == ',':
			// Drop the comma if the next non-space char closes a scope.
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				i++
				continue
			}
			b.WriteByte(c)
			i++
		case isIdentStart(c):
			start := i
			for i < len(s) && isIdentChar(s[i]) {
				i++
			}
			switch word := s[start:i]; word {
			case "True":
				b.WriteString("true")
			case "False":
				b.WriteString("false")
			case "None":
				b.WriteString("null")
			default:
				b.WriteString(word)
			}
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), true
}

// scanString reads a quoted string starting at i and re-emits it
// double-quoted with JSON escaping. Returns the rewritten literal and the
// index just past the closing quote.
func scanString(s string, i int) (string, int, bool) {
	quote := s[i]
	var content strings.Builder
	j := i + 1
	for j < len(s) {
		c := s[j]
		if c == '\\' && j+1 < len(s) {
			content.WriteByte(c)
			content.WriteByte(s[j+1])
			j += 2
			continue
		}
		if c == quote {
			raw := content.String()
			if quote == '\'' {
				// Re-escape for double quotes.
				raw = strings.ReplaceAll(raw, `\'`, `'`)
				raw = strings.ReplaceAll(raw, `"`, `\"`)
			}
			return `"` + raw + `"`, j + 1, true
		}
		content.WriteByte(c)
		j++
	}
	return "", 0, false
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
