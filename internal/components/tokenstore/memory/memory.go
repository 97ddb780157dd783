// Package memory provides an in-process token store backend, used in tests and
// when persistence across restarts is not wanted.
package memory

import (
	"context"
	"sync"

	"github.com/staybook/frontdesk/internal/components/tokenstore"
)

func init() {
	tokenstore.Register("memory", func(map[string]any) (tokenstore.Backend, error) {
		return New(), nil
	})
}

// Backend is a map guarded by a RWMutex.
type Backend struct {
	mu     sync.RWMutex
	values map[string]string
}

// New creates an empty memory backend.
func New() *Backend {
	return &Backend{values: make(map[string]string)}
}

// NewStore is a shortcut for tokenstore.New(memory.New()).
func NewStore() *tokenstore.KVStore {
	return tokenstore.New(New())
}

func (b *Backend) Name() string { return "memory" }

func (b *Backend) Load(_ context.Context, key string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.values[key]
	if !ok {
		return "", tokenstore.ErrNotFound
	}
	return v, nil
}

func (b *Backend) Save(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	return nil
}

func (b *Backend) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.values, k)
	}
	return nil
}

func (b *Backend) Close() error { return nil }

var _ tokenstore.Backend = (*Backend)(nil)
