package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Registry is a mapping from label to record that remembers insertion order.
// Order is part of the contract: matching is first-match-wins and ban selection
// numbers users in registry order, so it survives a save/load round trip.
type Registry[T any] struct {
	keys    []string
	records map[string]T
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{records: make(map[string]T)}
}

// Len returns the number of records.
func (r *Registry[T]) Len() int {
	return len(r.keys)
}

// Has reports whether key is present.
func (r *Registry[T]) Has(key string) bool {
	_, ok := r.records[key]
	return ok
}

// Get returns the record stored under key.
func (r *Registry[T]) Get(key string) (T, bool) {
	rec, ok := r.records[key]
	return rec, ok
}

// Put inserts or replaces a record. New keys go to the end; replaced keys keep their position.
func (r *Registry[T]) Put(key string, rec T) {
	if r.records == nil {
		r.records = make(map[string]T)
	}
	if _, ok := r.records[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.records[key] = rec
}

// Delete removes key and reports whether it was present.
func (r *Registry[T]) Delete(key string) bool {
	if _, ok := r.records[key]; !ok {
		return false
	}
	delete(r.records, key)
	r.keys = slices.DeleteFunc(r.keys, func(k string) bool { return k == key })
	return true
}

// Keys returns the labels in registry order.
func (r *Registry[T]) Keys() []string {
	return slices.Clone(r.keys)
}

// At returns the i-th (0-based) entry in registry order.
func (r *Registry[T]) At(i int) (string, T, bool) {
	var zero T
	if i < 0 || i >= len(r.keys) {
		return "", zero, false
	}
	key := r.keys[i]
	return key, r.records[key], true
}

// Clone returns a shallow copy that can be modified independently.
func (r *Registry[T]) Clone() *Registry[T] {
	c := &Registry[T]{
		keys:    slices.Clone(r.keys),
		records: make(map[string]T, len(r.records)),
	}
	for k, v := range r.records {
		c.records[k] = v
	}
	return c
}

// MarshalJSON writes the registry as a JSON object with keys in registry order.
func (r *Registry[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.records[key])
		if err != nil {
			return nil, fmt.Errorf("marshal record %q: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping the key order of the document.
func (r *Registry[T]) UnmarshalJSON(data []byte) error {
	r.keys = nil
	r.records = make(map[string]T)

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("registry must be a JSON object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected registry key %v", tok)
		}
		var rec T
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("decode record %q: %w", key, err)
		}
		r.Put(key, rec)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
