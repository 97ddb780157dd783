// Package tokenstore holds the bearer token and tenant id that survive console restarts.
//
// The store is a dumb key/value surface: it performs no validation of what it holds.
// Every authenticated request reads it, and only session login/logout write it.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// Fixed storage keys.
const (
	KeyToken    = "token"
	KeyTenantID = "tenantId"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidTenantID = errors.New("stored tenant id is not an integer")
	ErrUnknownDriver   = errors.New("unknown token store driver")
)

// Store is the contract consumed by the session context and outbound request builders.
type Store interface {
	// Get returns the stored token, or ErrNotFound.
	Get(ctx context.Context) (string, error)

	// Set stores the token.
	Set(ctx context.Context, token string) error

	// Clear removes the token and the tenant id. Safe to call when nothing is stored.
	Clear(ctx context.Context) error

	// TenantID returns the stored tenant id, ErrNotFound, or ErrInvalidTenantID.
	TenantID(ctx context.Context) (int64, error)

	// SetTenantID stores the tenant id (string-encoded).
	SetTenantID(ctx context.Context, id int64) error
}

// Backend is the raw key/value persistence a driver provides.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Load returns the value for key, or ErrNotFound.
	Load(ctx context.Context, key string) (string, error)

	// Save stores value under key, replacing any previous value.
	Save(ctx context.Context, key, value string) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Name returns the driver name (memory, json, sqlite, redis).
	Name() string

	// Close releases resources held by the driver.
	Close() error
}

// KVStore implements Store on top of a Backend.
type KVStore struct {
	backend Backend
}

// New wraps a backend as a Store.
func New(b Backend) *KVStore {
	return &KVStore{backend: b}
}

// Driver returns the backend driver name.
func (s *KVStore) Driver() string {
	return s.backend.Name()
}

func (s *KVStore) Get(ctx context.Context) (string, error) {
	v, err := s.backend.Load(ctx, KeyToken)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *KVStore) Set(ctx context.Context, token string) error {
	return s.backend.Save(ctx, KeyToken, token)
}

func (s *KVStore) Clear(ctx context.Context) error {
	return s.backend.Delete(ctx, KeyToken, KeyTenantID)
}

func (s *KVStore) TenantID(ctx context.Context) (int64, error) {
	v, err := s.backend.Load(ctx, KeyTenantID)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTenantID, v)
	}
	return id, nil
}

func (s *KVStore) SetTenantID(ctx context.Context, id int64) error {
	return s.backend.Save(ctx, KeyTenantID, strconv.FormatInt(id, 10))
}

// Close closes the backend.
func (s *KVStore) Close() error {
	return s.backend.Close()
}

var _ Store = (*KVStore)(nil)

// Factory builds a backend from its raw [token_store.drivers.<name>] config.
type Factory func(raw map[string]any) (Backend, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Factory)
)

// Register registers a driver factory by name.
// This is typically called from init() in driver packages.
func Register(name string, f Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = f
}

// Open builds the named driver and wraps it as a Store.
func Open(name string, raw map[string]any) (*KVStore, error) {
	driversMu.RLock()
	f, ok := drivers[name]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, name)
	}

	b, err := f(raw)
	if err != nil {
		return nil, fmt.Errorf("token store %s: %w", name, err)
	}
	return New(b), nil
}

// AvailableDrivers returns the sorted list of registered driver names.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
