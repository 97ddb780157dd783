package api

import (
	"net/http"
)

// HealthResponse is the body of the health check endpoint.
type HealthResponse struct {
	Status        string `json:"status"`
	Authenticated bool   `json:"authenticated"`
	Stream        string `json:"stream,omitempty"`
}

// HealthProbe reports the session and stream state for the health endpoint.
type HealthProbe interface {
	IsAuthenticated() bool
	StreamState() string
}

// HealthHandler returns a handler for GET /healthz. probe may be nil.
func HealthHandler(probe HealthProbe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}
		if probe != nil {
			resp.Authenticated = probe.IsAuthenticated()
			resp.Stream = probe.StreamState()
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
