// Package record provides the flat, ordered attribute rows exported for
// every metafield.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Field is a single attribute of a record.
type Field struct {
	Key   string
	Value string
}

// Record is an ordered mapping from attribute name to stringified value.
// Keys keep the order in which they appeared in the API response.
type Record struct {
	fields []Field
	index  map[string]int
}

// New builds a record from fields. Later duplicates overwrite the value of
// the first occurrence but keep its position.
func New(fields ...Field) Record {
	var r Record
	for _, f := range fields {
		r.Set(f.Key, f.Value)
	}
	return r
}

// Set assigns value to key, appending key if it is new.
func (r *Record) Set(key, value string) {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if i, ok := r.index[key]; ok {
		r.fields[i].Value = value
		return
	}
	r.index[key] = len(r.fields)
	r.fields = append(r.fields, Field{Key: key, Value: value})
}

// Get returns the value stored for key.
func (r Record) Get(key string) (string, bool) {
	i, ok := r.index[key]
	if !ok {
		return "", false
	}
	return r.fields[i].Value, true
}

// Keys returns the attribute names in their natural order.
func (r Record) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Key
	}
	return keys
}

// Fields returns a copy of the record's fields.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Len returns the number of attributes.
func (r Record) Len() int {
	return len(r.fields)
}

// Project returns the values of r for the given header, in header order.
// Header keys missing from r yield empty strings; keys of r absent from
// header are dropped.
func (r Record) Project(header []string) []string {
	row := make([]string, len(header))
	for i, key := range header {
		row[i], _ = r.Get(key)
	}
	return row
}

// FromJSON decodes a JSON object into a record, preserving key order.
//
// Values are stringified: strings verbatim, numbers as their literal text,
// booleans as true/false, null as the empty string, nested objects and
// arrays as compact JSON.
func FromJSON(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Record{}, fmt.Errorf("read record: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return Record{}, fmt.Errorf("read record: expected object, got %v", tok)
	}

	var r Record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Record{}, fmt.Errorf("read record key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return Record{}, fmt.Errorf("read record key: unexpected token %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Record{}, fmt.Errorf("read value of %q: %w", key, err)
		}
		value, err := stringify(raw)
		if err != nil {
			return Record{}, fmt.Errorf("stringify %q: %w", key, err)
		}
		r.Set(key, value)
	}

	if _, err := dec.Token(); err != nil && err != io.EOF {
		return Record{}, fmt.Errorf("read record end: %w", err)
	}
	return r, nil
}

func stringify(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", nil
	}

	switch raw[0] {
	case 'n':
		return "", nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		// numbers and booleans are already in their literal form
		return string(raw), nil
	}
}
