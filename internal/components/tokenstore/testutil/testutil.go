// Package testutil provides the shared conformance suite for token store drivers.
package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/staybook/frontdesk/internal/components/tokenstore"
)

// RunDriverTests runs the standard test suite against a driver.
// open must return a fresh, empty backend on each call.
func RunDriverTests(t *testing.T, driverName string, open func(t *testing.T) tokenstore.Backend) {
	t.Run("Name", func(t *testing.T) {
		b := open(t)
		defer b.Close()
		if b.Name() != driverName {
			t.Errorf("expected driver name %q, got %q", driverName, b.Name())
		}
	})

	t.Run("TokenRoundTrip", func(t *testing.T) {
		b := open(t)
		defer b.Close()
		TestTokenRoundTrip(t, context.Background(), tokenstore.New(b))
	})

	t.Run("TenantID", func(t *testing.T) {
		b := open(t)
		defer b.Close()
		TestTenantID(t, context.Background(), tokenstore.New(b))
	})

	t.Run("ClearIsIdempotent", func(t *testing.T) {
		b := open(t)
		defer b.Close()
		TestClearIsIdempotent(t, context.Background(), tokenstore.New(b))
	})

	t.Run("MalformedTenantID", func(t *testing.T) {
		b := open(t)
		defer b.Close()
		ctx := context.Background()
		if err := b.Save(ctx, tokenstore.KeyTenantID, "abc"); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if _, err := tokenstore.New(b).TenantID(ctx); !errors.Is(err, tokenstore.ErrInvalidTenantID) {
			t.Errorf("expected ErrInvalidTenantID, got %v", err)
		}
	})
}

// TestTokenRoundTrip checks Get/Set/overwrite.
func TestTokenRoundTrip(t *testing.T, ctx context.Context, s tokenstore.Store) {
	if _, err := s.Get(ctx); !errors.Is(err, tokenstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	if err := s.Set(ctx, "first"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(ctx, "second"); err != nil {
		t.Fatalf("Set (overwrite) failed: %v", err)
	}

	got, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "second" {
		t.Errorf("expected token %q, got %q", "second", got)
	}
}

// TestTenantID checks tenant id storage and that Clear removes both keys.
func TestTenantID(t *testing.T, ctx context.Context, s tokenstore.Store) {
	if _, err := s.TenantID(ctx); !errors.Is(err, tokenstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	if err := s.Set(ctx, "tok"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.SetTenantID(ctx, 42); err != nil {
		t.Fatalf("SetTenantID failed: %v", err)
	}

	id, err := s.TenantID(ctx)
	if err != nil {
		t.Fatalf("TenantID failed: %v", err)
	}
	if id != 42 {
		t.Errorf("expected tenant id 42, got %d", id)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := s.Get(ctx); !errors.Is(err, tokenstore.ErrNotFound) {
		t.Errorf("expected token cleared, got %v", err)
	}
	if _, err := s.TenantID(ctx); !errors.Is(err, tokenstore.ErrNotFound) {
		t.Errorf("expected tenant id cleared, got %v", err)
	}
}

// TestClearIsIdempotent checks that clearing an empty store is not an error.
func TestClearIsIdempotent(t *testing.T, ctx context.Context, s tokenstore.Store) {
	for i := 0; i < 2; i++ {
		if err := s.Clear(ctx); err != nil {
			t.Fatalf("Clear #%d failed: %v", i+1, err)
		}
	}
}
