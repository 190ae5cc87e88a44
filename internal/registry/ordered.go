package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
)

// OrderedMap is a map keyed by Key that remembers insertion order. Its JSON
// object encoding lists keys in that order, and decoding keeps the order of
// the source document.
type OrderedMap[V any] struct {
	keys   []Key
	values map[Key]V
}

// NewOrderedMap creates an empty ordered map
func NewOrderedMap[V any]() *OrderedMap[V] {
	return &OrderedMap[V]{values: make(map[Key]V)}
}

// Set stores the value for key. Updating an existing key keeps its position.
func (m *OrderedMap[V]) Set(key Key, value V) {
	if m.values == nil {
		m.values = make(map[Key]V)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored for key
func (m *OrderedMap[V]) Get(key Key) (V, bool) {
	if m == nil {
		var zero V
		return zero, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present
func (m *OrderedMap[V]) Has(key Key) bool {
	_, ok := m.Get(key)
	return ok
}

// Len returns the number of entries
func (m *OrderedMap[V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns a copy of the keys in order
func (m *OrderedMap[V]) Keys() []Key {
	if m == nil {
		return nil
	}
	return append([]Key(nil), m.keys...)
}

// Values returns the values in key order
func (m *OrderedMap[V]) Values() []V {
	if m == nil {
		return nil
	}
	values := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		values = append(values, m.values[k])
	}
	return values
}

// All iterates over the entries in order
func (m *OrderedMap[V]) All() iter.Seq2[Key, V] {
	return func(yield func(Key, V) bool) {
		if m == nil {
			return
		}
		for _, k := range m.keys {
			if !yield(k, m.values[k]) {
				return
			}
		}
	}
}

// MarshalJSON encodes the map as a JSON object in insertion order
func (m *OrderedMap[V]) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeJSON(&buf, string(k)); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeJSON(&buf, m.values[k]); err != nil {
			return nil, fmt.Errorf("failed to encode value for %s: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the document key order.
// A null document yields an empty map.
func (m *OrderedMap[V]) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.values = make(map[Key]V)

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var value V
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("failed to decode value for %s: %w", name, err)
		}
		m.Set(Key(name), value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// encodeJSON writes v without HTML escaping and without the trailing newline
// added by json.Encoder
func encodeJSON(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}
