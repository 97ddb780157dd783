// Package guard gates console navigation on the current session.
//
// Every way of not having a live session (no token, undecodable token,
// expired token) produces the same redirect and the same one-shot message.
package guard

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/staybook/frontdesk/internal/components/api"
	"github.com/staybook/frontdesk/internal/components/session"
	"github.com/staybook/frontdesk/internal/platform/appctx"
	"github.com/staybook/frontdesk/internal/platform/logutil"
)

// MessageSessionRequired is shown on the login view after a denied navigation.
const MessageSessionRequired = "Your session has ended. Please sign in again."

// Sessions is the part of session.Context the guard reads.
type Sessions interface {
	IsAuthenticated() bool
	Current() (session.Session, bool)
}

// Config configures the guard.
type Config struct {
	// RequireAuth returns true if the given path requires a live session.
	RequireAuth func(path string) bool

	// Sessions is consulted on every gated request.
	Sessions Sessions

	// BasePath is the external base path; the login view lives at <BasePath>/ui/login.
	BasePath string

	// OnDeny, when set, runs for every denied request before the response is written.
	OnDeny func(r *http.Request)

	Log *slog.Logger
}

// Decision is the outcome for one navigation target.
type Decision struct {
	Allow    bool
	Redirect string // login URL, set when denied
	Message  string // one-shot message, set when denied
}

// Guard decides navigations.
type Guard struct {
	requireAuth func(string) bool
	sessions    Sessions
	basePath    string
	onDeny      func(*http.Request)
	log         *slog.Logger
}

// New creates a Guard. A nil RequireAuth gates every path.
func New(cfg Config) *Guard {
	g := &Guard{
		requireAuth: cfg.RequireAuth,
		sessions:    cfg.Sessions,
		basePath:    NormalizeBasePath(cfg.BasePath),
		onDeny:      cfg.OnDeny,
		log:         logutil.NoopIfNil(cfg.Log),
	}
	if g.requireAuth == nil {
		g.requireAuth = func(string) bool { return true }
	}
	return g
}

// Decide evaluates target (a path with optional query) against the current session.
func (g *Guard) Decide(target string) Decision {
	path := target
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if !g.requireAuth(path) || g.sessions.IsAuthenticated() {
		return Decision{Allow: true}
	}
	return Decision{
		Redirect: LoginURL(g.basePath, target),
		Message:  MessageSessionRequired,
	}
}

// Middleware returns the HTTP form of the guard. Denied GET/HEAD requests for
// UI pages are redirected to the login view with a flash message; other
// denied requests get a 401 JSON envelope.
func (g *Guard) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			target := r.URL.Path
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}

			d := g.Decide(target)
			if d.Allow {
				ctx := r.Context()
				if s, ok := g.sessions.Current(); ok && g.requireAuth(r.URL.Path) {
					reqLogger := appctx.GetLogger(ctx).With("role", string(s.Role), "tenant_id", s.TenantID)
					ctx = appctx.WithLogger(ctx, reqLogger)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			appctx.GetLogger(r.Context()).Debug("navigation denied", "path", r.URL.Path)
			if g.onDeny != nil {
				g.onDeny(r)
			}

			if g.shouldRedirect(r) {
				SetFlash(w, d.Message)
				http.Redirect(w, r, d.Redirect, http.StatusFound)
				return
			}
			api.WriteUnauthorized(w, api.ReasonUnauthenticated, d.Message)
		})
	}
}

// Middleware is shorthand for New(cfg).Middleware().
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return New(cfg).Middleware()
}

func (g *Guard) shouldRedirect(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	return IsUIPath(r.URL.Path, g.basePath)
}

// NormalizeBasePath returns "" or a path with a leading and no trailing slash.
func NormalizeBasePath(basePath string) string {
	if basePath == "" || basePath == "/" {
		return ""
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	return strings.TrimSuffix(basePath, "/")
}

// UIPrefix returns the path prefix of the console pages.
func UIPrefix(basePath string) string {
	return NormalizeBasePath(basePath) + "/ui"
}

// IsUIPath reports whether path is a console page.
func IsUIPath(path, basePath string) bool {
	prefix := UIPrefix(basePath)
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// LoginURL builds the login view URL that returns to target after sign-in.
func LoginURL(basePath, target string) string {
	login := UIPrefix(basePath) + "/login"
	if target == "" {
		return login
	}
	return login + "?redirect=" + url.QueryEscape(target)
}

// SafeRedirect returns target if it is a local console path, otherwise the
// default landing page.
func SafeRedirect(basePath, target string) string {
	landing := UIPrefix(basePath) + "/announcements"
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return landing
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return landing
	}
	if !IsUIPath(u.Path, basePath) || u.Path == UIPrefix(basePath)+"/login" {
		return landing
	}
	return target
}
