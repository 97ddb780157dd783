package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/staybook/frontdesk/internal/components/guard"
	httpmw "github.com/staybook/frontdesk/internal/platform/http/middleware"
)

// RouteGroup defines an endpoint group with its auth requirements.
type RouteGroup struct {
	Name         string
	PathPrefix   string
	RequiresAuth bool
}

// routeGroups is the single source of truth for gating decisions.
// All groups live under external_base_path.
var routeGroups = []RouteGroup{
	{Name: "healthz", PathPrefix: "/healthz", RequiresAuth: false},
	{Name: "ui", PathPrefix: "/ui", RequiresAuth: true}, // exceptions via Service.Unprotected()
}

// GetRouteGroups returns the route group definitions for testing.
func GetRouteGroups() []RouteGroup {
	return routeGroups
}

// IsAuthRequired reports whether path needs a live session.
// Unprotected paths are computed from the mounted services.
func IsAuthRequired(path string, basePath string, mounted []Service) bool {
	// The base path itself only redirects into the UI.
	if path == basePath || path == basePath+"/" {
		return false
	}

	for _, svc := range mounted {
		if svc == nil {
			continue
		}
		svcBase := basePath
		if prefix := svc.Prefix(); prefix != "" {
			svcBase += "/" + prefix
		}
		for _, unprotected := range svc.Unprotected() {
			if pathMatchesPrefix(path, svcBase+unprotected) {
				return false
			}
		}
	}

	for _, rg := range routeGroups {
		if pathMatchesPrefix(path, basePath+rg.PathPrefix) {
			return rg.RequiresAuth
		}
	}

	// Unknown paths require a session.
	return true
}

// pathMatchesPrefix checks if path equals or is a subpath of prefix.
func pathMatchesPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return len(path) > len(prefix) && path[:len(prefix)] == prefix && path[len(prefix)] == '/'
}

// mountService mounts a service and tracks it for lifecycle management.
func (s *Server) mountService(r chi.Router, svc Service) {
	if svc == nil {
		return
	}
	if prefix := svc.Prefix(); prefix != "" {
		r.Mount("/"+prefix, svc.Handler())
	} else {
		r.Mount("/", svc.Handler())
	}
	s.mountedServices = append(s.mountedServices, svc)
}

// sessionEnded tells mounted services that no live session remains.
func (s *Server) sessionEnded() {
	for _, svc := range s.mountedServices {
		if se, ok := svc.(SessionEnder); ok {
			se.SessionEnded()
		}
	}
}

// setupRoutes creates the chi router.
func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()

	// Order: RequestID -> request-scoped logger -> access log -> recoverer -> guard
	r.Use(chimw.RequestID)
	r.Use(httpmw.RequestLoggerMiddleware(s.logger))
	r.Use(httpmw.AccessLogMiddleware(s.logger))
	r.Use(chimw.Recoverer)

	// mountedServices is read at request time.
	requireAuth := func(path string) bool {
		return IsAuthRequired(path, s.basePath, s.mountedServices)
	}
	r.Use(guard.Middleware(guard.Config{
		RequireAuth: requireAuth,
		Sessions:    s.sessions,
		BasePath:    s.basePath,
		OnDeny:      func(*http.Request) { s.sessionEnded() },
		Log:         s.logger,
	}))

	if s.basePath != "" {
		r.Route(s.basePath, s.mountAppEndpoints)
	} else {
		s.mountAppEndpoints(r)
	}
	return r
}

func (s *Server) mountAppEndpoints(r chi.Router) {
	home := guard.UIPrefix(s.basePath) + "/announcements"
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, home, http.StatusFound)
	})
	if s.health != nil {
		r.Get("/healthz", s.health.ServeHTTP)
	}
	for _, svc := range s.services {
		s.mountService(r, svc)
	}
}
