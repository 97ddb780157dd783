package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/staybook/frontdesk/internal/components/tokenstore"
	"github.com/staybook/frontdesk/internal/components/tokenstore/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func tokenExpiringAt(t *testing.T, exp time.Time, tenant int64) string {
	return signedToken(t, &Claims{
		UserID:   1,
		Role:     "ADMIN",
		TenantID: FlexInt(tenant),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin@hotel.test",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
}

func TestInit_NoToken(t *testing.T) {
	c := NewContext(memory.NewStore(), testLogger())
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if _, ok := c.Current(); ok {
		t.Error("expected no session")
	}
	if c.IsAuthenticated() {
		t.Error("expected not authenticated")
	}
}

func TestInit_ValidToken(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	store.Set(ctx, tokenExpiringAt(t, clock.Now().Add(time.Hour), 5))

	c := NewContext(store, testLogger(), WithClock(clock.Now))
	if err := c.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	s, ok := c.Current()
	if !ok {
		t.Fatal("expected session")
	}
	if s.Role != RoleAdmin || s.TenantID != 5 {
		t.Errorf("unexpected session %+v", s)
	}
	if !c.IsAuthenticated() {
		t.Error("expected authenticated")
	}
}

func TestInit_MalformedTokenIsCleared(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.Set(ctx, "garbage")
	store.SetTenantID(ctx, 9)

	c := NewContext(store, testLogger())
	if err := c.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if c.IsAuthenticated() {
		t.Error("expected not authenticated")
	}
	if _, err := store.Get(ctx); !errors.Is(err, tokenstore.ErrNotFound) {
		t.Errorf("expected token cleared, got %v", err)
	}
	if _, err := store.TenantID(ctx); !errors.Is(err, tokenstore.ErrNotFound) {
		t.Errorf("expected tenant id cleared, got %v", err)
	}
}

func TestInit_ExpiredTokenIsCleared(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	store.Set(ctx, tokenExpiringAt(t, clock.Now().Add(-time.Minute), 5))

	c := NewContext(store, testLogger(), WithClock(clock.Now))
	if err := c.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if _, ok := c.Current(); ok {
		t.Error("expected no session")
	}
	if _, err := store.Get(ctx); !errors.Is(err, tokenstore.ErrNotFound) {
		t.Errorf("expected token cleared, got %v", err)
	}
}

func TestInit_RunsOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	c := NewContext(store, testLogger())
	if err := c.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	// A token written behind the context's back is not picked up by a second Init.
	store.Set(ctx, tokenExpiringAt(t, time.Now().Add(time.Hour), 1))
	if err := c.Init(ctx); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	if _, ok := c.Current(); ok {
		t.Error("expected second Init to be a no-op")
	}
}

// Expiry is evaluated at observation time, not at derivation time.
func TestIsAuthenticated_TimeSensitive(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: t0}

	c := NewContext(memory.NewStore(), testLogger(), WithClock(clock.Now))
	if err := c.Login(ctx, tokenExpiringAt(t, t0.Add(time.Second), 2)); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !c.IsAuthenticated() {
		t.Fatal("expected authenticated at t0")
	}

	clock.Set(t0.Add(2 * time.Second))
	if c.IsAuthenticated() {
		t.Error("expected not authenticated at t0+2s")
	}
	if _, ok := c.Current(); !ok {
		t.Error("Current should still report the (expired) session")
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	c := NewContext(store, testLogger())
	token := tokenExpiringAt(t, time.Now().Add(time.Hour), 11)

	if err := c.Login(ctx, token); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// Derivation is complete by the time Login returns.
	if !c.IsAuthenticated() {
		t.Error("expected authenticated right after Login")
	}
	got, err := store.Get(ctx)
	if err != nil || got != token {
		t.Errorf("expected token stored, got %q (%v)", got, err)
	}
	id, ok := c.TenantID(ctx)
	if !ok || id != 11 {
		t.Errorf("expected tenant 11, got %d (%v)", id, ok)
	}
	h, ok := c.BearerHeader(ctx)
	if !ok || h != "Bearer "+token {
		t.Errorf("unexpected bearer header %q", h)
	}
}

func TestLogin_ReplacesPreviousTenant(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	c := NewContext(store, testLogger())

	if err := c.Login(ctx, tokenExpiringAt(t, time.Now().Add(time.Hour), 7)); err != nil {
		t.Fatalf("first Login failed: %v", err)
	}
	if id, ok := c.TenantID(ctx); !ok || id != 7 {
		t.Fatalf("expected tenant 7, got %d (%v)", id, ok)
	}

	if err := c.Login(ctx, tokenExpiringAt(t, time.Now().Add(time.Hour), 0)); err != nil {
		t.Fatalf("second Login failed: %v", err)
	}
	if id, ok := c.TenantID(ctx); ok {
		t.Errorf("expected no tenant for a token without one, got %d", id)
	}
	if _, err := store.TenantID(ctx); !errors.Is(err, tokenstore.ErrNotFound) {
		t.Errorf("expected stored tenant id removed, got %v", err)
	}
}

func TestLogin_Rejected(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"malformed", "a.b", ErrMalformed},
		{"expired", tokenExpiringAt(t, now.Add(-time.Hour), 1), ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			c := NewContext(store, testLogger(), WithClock(func() time.Time { return now }))

			// Start from an established session to check it is dropped.
			if err := c.Login(ctx, tokenExpiringAt(t, now.Add(time.Hour), 1)); err != nil {
				t.Fatalf("initial Login failed: %v", err)
			}

			err := c.Login(ctx, tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if c.IsAuthenticated() {
				t.Error("expected no session after rejected login")
			}
			if _, err := store.Get(ctx); !errors.Is(err, tokenstore.ErrNotFound) {
				t.Errorf("expected store cleared, got %v", err)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	c := NewContext(store, testLogger())

	if err := c.Login(ctx, tokenExpiringAt(t, time.Now().Add(time.Hour), 4)); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if c.IsAuthenticated() {
		t.Error("expected not authenticated after Logout")
	}
	if _, ok := c.TenantID(ctx); ok {
		t.Error("expected no tenant id after Logout")
	}
	if _, ok := c.BearerHeader(ctx); ok {
		t.Error("expected no bearer header after Logout")
	}

	// Logout without a session is fine.
	if err := c.Logout(ctx); err != nil {
		t.Errorf("second Logout failed: %v", err)
	}
}
