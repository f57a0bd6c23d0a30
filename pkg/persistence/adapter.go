// Package persistence defines the snapshot store contract consumed by the
// engine components and provides drivers for several backends: an in-memory
// map, embedded BadgerDB, SQLite, Redis, and PostgreSQL.
//
// Components treat the adapter as a pass-through byte sink. Each component
// writes under its own namespace, so two components never collide on a key
// and no component reads another's snapshot.
package persistence

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key does not exist.
var ErrNotFound = errors.New("persistence: key not found")

// Adapter is an asynchronous namespaced key/value byte store.
type Adapter interface {
	// Get retrieves the value for a key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value, overwriting any existing one.
	Set(ctx context.Context, key string, value []byte) error

	// RemoveAll deletes the given keys. Missing keys are not an error.
	RemoveAll(ctx context.Context, keys ...string) error

	// Close releases any resources held by the adapter.
	Close() error
}

// namespaced prefixes every key so component snapshots stay isolated on a
// shared backend.
type namespaced struct {
	inner  Adapter
	prefix string
}

// Namespaced wraps an adapter so all keys live under prefix. Closing the
// wrapper is a no-op; the owner of the inner adapter closes it.
func Namespaced(inner Adapter, prefix string) Adapter {
	return &namespaced{inner: inner, prefix: prefix}
}

func (n *namespaced) key(key string) string {
	return n.prefix + ":" + key
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.inner.Get(ctx, n.key(key))
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.inner.Set(ctx, n.key(key), value)
}

func (n *namespaced) RemoveAll(ctx context.Context, keys ...string) error {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = n.key(k)
	}
	return n.inner.RemoveAll(ctx, prefixed...)
}

func (n *namespaced) Close() error {
	return nil
}
