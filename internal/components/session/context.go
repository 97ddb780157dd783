// Package session derives the operator session from the stored bearer token
// and keeps it current for the route guard and outbound requests.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/staybook/frontdesk/internal/components/tokenstore"
	"github.com/staybook/frontdesk/internal/platform/logutil"
)

// Context is the process-wide session holder. It is safe for concurrent use.
type Context struct {
	store   tokenstore.Store
	decoder *Decoder
	log     *slog.Logger
	now     func() time.Time

	initOnce sync.Once
	initErr  error

	mu      sync.RWMutex
	session *Session
}

// Option configures a Context.
type Option func(*Context)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Context) { c.now = now }
}

// NewContext creates a Context over the given store. Call Init before use.
func NewContext(store tokenstore.Store, logger *slog.Logger, opts ...Option) *Context {
	c := &Context{
		store:   store,
		decoder: NewDecoder(),
		log:     logutil.NoopIfNil(logger),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init derives the session from the stored token. Only the first call does work.
// A stored token that fails to decode or has expired is cleared.
func (c *Context) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.bootstrap(ctx)
	})
	return c.initErr
}

func (c *Context) bootstrap(ctx context.Context) error {
	token, err := c.store.Get(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		c.log.Debug("no stored session token")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read stored token: %w", err)
	}

	s, err := c.derive(token)
	if err != nil {
		c.log.Warn("discarding stored session token", "error", err)
		if cerr := c.store.Clear(ctx); cerr != nil {
			return fmt.Errorf("clear stored token: %w", cerr)
		}
		return nil
	}

	c.set(&s)
	c.log.Info("session restored", "email", s.Email, "role", s.Role, "tenant_id", s.TenantID)
	return nil
}

// derive decodes the token and rejects it if already expired.
func (c *Context) derive(token string) (Session, error) {
	claims, err := c.decoder.Decode(token)
	if err != nil {
		return Session{}, err
	}
	s := FromClaims(claims)
	if !s.Live(c.now()) {
		return Session{}, fmt.Errorf("%w at %s", ErrExpired, s.ExpiresAt.Format(time.RFC3339))
	}
	return s, nil
}

func (c *Context) set(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// Current returns a copy of the session, if any. It does not check expiry.
func (c *Context) Current() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// IsAuthenticated reports whether a session exists and has not expired.
// Expiry is checked against the clock on every call.
func (c *Context) IsAuthenticated() bool {
	s, ok := c.Current()
	return ok && s.Live(c.now())
}

// Login stores the token and derives the session before returning.
// On failure the store is cleared, no session remains, and the error wraps
// ErrMalformed or ErrExpired.
func (c *Context) Login(ctx context.Context, token string) error {
	// Nothing from the previous session survives, including its tenant id.
	c.set(nil)
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear previous session: %w", err)
	}

	if err := c.store.Set(ctx, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	s, err := c.derive(token)
	if err != nil {
		c.set(nil)
		if cerr := c.store.Clear(ctx); cerr != nil {
			c.log.Error("failed to clear rejected token", "error", cerr)
		}
		return err
	}

	if s.TenantID != 0 {
		if err := c.store.SetTenantID(ctx, s.TenantID); err != nil {
			return fmt.Errorf("store tenant id: %w", err)
		}
	}

	c.set(&s)
	c.log.Info("session established", "email", s.Email, "role", s.Role, "tenant_id", s.TenantID)
	return nil
}

// Logout clears the store and the session. The session is dropped even if
// the store fails.
func (c *Context) Logout(ctx context.Context) error {
	c.set(nil)
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	c.log.Info("session ended")
	return nil
}

// TenantID returns the session tenant id, falling back to the stored one.
func (c *Context) TenantID(ctx context.Context) (int64, bool) {
	if s, ok := c.Current(); ok && s.TenantID != 0 {
		return s.TenantID, true
	}
	id, err := c.store.TenantID(ctx)
	if err != nil {
		return 0, false
	}
	return id, true
}

// BearerHeader returns the Authorization header value for outbound requests.
func (c *Context) BearerHeader(ctx context.Context) (string, bool) {
	token, err := c.store.Get(ctx)
	if err != nil {
		return "", false
	}
	return "Bearer " + token, true
}

// Token returns the stored token.
func (c *Context) Token(ctx context.Context) (string, bool) {
	token, err := c.store.Get(ctx)
	if err != nil {
		return "", false
	}
	return token, true
}
