package service

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FieldErrors collects per-field validation messages. It encodes as
// {"field": ["message", ...]} with fields in the order they were added.
type FieldErrors struct {
	order  []string
	fields map[string][]string
}

func (e *FieldErrors) Add(field, message string) {
	if e.fields == nil {
		e.fields = make(map[string][]string)
	}
	if _, seen := e.fields[field]; !seen {
		e.order = append(e.order, field)
	}
	e.fields[field] = append(e.fields[field], message)
}

func (e *FieldErrors) Empty() bool {
	return e == nil || len(e.order) == 0
}

// Get returns the messages recorded for field
func (e *FieldErrors) Get(field string) []string {
	if e == nil {
		return nil
	}
	return e.fields[field]
}

// Err returns e as an error, or nil when nothing was recorded
func (e *FieldErrors) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *FieldErrors) Error() string {
	parts := make([]string, 0, len(e.order))
	for _, f := range e.order {
		parts = append(parts, f+": "+strings.Join(e.fields[f], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *FieldErrors) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range e.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		msgs, err := json.Marshal(e.fields[f])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(msgs)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Fields maps a single field to one message
func Fields(field, message string) *FieldErrors {
	e := &FieldErrors{}
	e.Add(field, message)
	return e
}
