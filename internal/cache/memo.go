// Package cache provides run-scoped memoization for remote lookups.
//
// A Memo is created once per run and injected into the components that need
// it (version lookups, homepage checks). Only successful lookups are stored,
// so a failed lookup is retried the next time it is asked for. Concurrent
// lookups of the same key share a single fetch.
package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// FetchFunc produces the value for a key on a cache miss
type FetchFunc[V any] func(ctx context.Context) (V, error)

// Memo is a concurrency-safe memoization cache
type Memo[V any] struct {
	mu     sync.RWMutex
	values map[string]V
	group  singleflight.Group
}

// NewMemo creates an empty cache
func NewMemo[V any]() *Memo[V] {
	return &Memo[V]{values: make(map[string]V)}
}

// Get returns the cached value for key, calling fetch on a miss.
// Errors from fetch are returned and not cached.
func (m *Memo[V]) Get(ctx context.Context, key string, fetch FetchFunc[V]) (V, error) {
	if v, ok := m.Lookup(key); ok {
		return v, nil
	}

	result, err, _ := m.group.Do(key, func() (any, error) {
		// Another caller may have filled the entry while this one waited
		if v, ok := m.Lookup(key); ok {
			return v, nil
		}
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		m.mu.Lock()
		m.values[key] = v
		m.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Lookup returns the cached value for key without fetching
func (m *Memo[V]) Lookup(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Clear drops every cached value
func (m *Memo[V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]V)
}

// Len returns the number of cached values
func (m *Memo[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
