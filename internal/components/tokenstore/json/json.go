// Package json implements a token store backend kept in a single JSON file.
// It uses atomic writes (temp file + fsync + rename) and in-process locking.
package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/staybook/frontdesk/internal/components/tokenstore"
	"github.com/staybook/frontdesk/internal/platform/cfg"
)

// FileName is the file written inside data_dir.
const FileName = "session.json"

func init() {
	tokenstore.Register("json", func(raw map[string]any) (tokenstore.Backend, error) {
		var c Config
		if err := cfg.Decode(raw, &c); err != nil {
			return nil, err
		}
		return Open(c)
	})
}

// Config is the [token_store.drivers.json] table.
type Config struct {
	DataDir string `mapstructure:"data_dir"`
}

// Backend holds the values in memory and rewrites the file on every change.
type Backend struct {
	path   string
	mu     sync.RWMutex
	values map[string]string
}

// Open creates the data dir if needed and loads any existing file.
func Open(c Config) (*Backend, error) {
	if c.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for json driver")
	}
	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	b := &Backend{
		path:   filepath.Join(c.DataDir, FileName),
		values: make(map[string]string),
	}

	data, err := os.ReadFile(b.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return b, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", b.path, err)
	}
	if err := json.Unmarshal(data, &b.values); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", b.path, err)
	}
	if b.values == nil {
		b.values = make(map[string]string)
	}
	return b, nil
}

func (b *Backend) Name() string { return "json" }

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

	prev, had := b.values[key]
	b.values[key] = value
	if err := b.flush(); err != nil {
		if had {
			b.values[key] = prev
		} else {
			delete(b.values, key)
		}
		return err
	}
	return nil
}

func (b *Backend) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	changed := false
	for _, k := range keys {
		if _, ok := b.values[k]; ok {
			delete(b.values, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return b.flush()
}

func (b *Backend) Close() error { return nil }

// flush atomically writes the current values. Caller holds b.mu.
func (b *Backend) flush() error {
	tempPath := b.path + ".tmp"

	data, err := json.MarshalIndent(b.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, b.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

var _ tokenstore.Backend = (*Backend)(nil)
