// Package record provides a JSON object representation that preserves key
// order. encoding/json maps lose insertion order, but the chart builder keys
// off the FIRST column of a result row, so rows must round-trip through HTTP
// with their column order intact.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is a single named value within a Record.
type Field struct {
	Name  string
	Value any
}

// Record is an ordered sequence of fields, serialized as a JSON object.
type Record []Field

// New builds a record from alternating name/value pairs, mostly for tests.
func New(pairs ...any) Record {
	if len(pairs)%2 != 0 {
		panic("record.New: odd number of arguments")
	}
	r := make(Record, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		r = append(r, Field{Name: pairs[i].(string), Value: pairs[i+1]})
	}
	return r
}

// Get returns the value of the named field, or nil if absent.
func (r Record) Get(name string) any {
	for _, f := range r {
		if f.Name == name {
			return f.Value
		}
	}
	return nil
}

// MarshalJSON writes the record as a JSON object in field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, fmt.Errorf("marshaling field name %q: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("marshaling field %q: %w", f.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order, using the
// token-level decoder. Numbers decode as float64, matching encoding/json's
// default for untyped values.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("decoding record: expected object, got %v", tok)
	}

	out := Record{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decoding record key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("decoding record: non-string key %v", keyTok)
		}

		var val any
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("decoding record value for %q: %w", key, err)
		}
		out = append(out, Field{Name: key, Value: val})
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decoding record close: %w", err)
	}

	*r = out
	return nil
}
