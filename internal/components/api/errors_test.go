package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/staybook/frontdesk/internal/components/api"
)

func TestWriteError_EnvelopeShape(t *testing.T) {
	w := httptest.NewRecorder()

	api.WriteUnauthorized(w, api.ReasonSessionExpired, "session required")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var envelope api.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if envelope.Error.Code != "Unauthorized" {
		t.Errorf("expected code 'Unauthorized', got %q", envelope.Error.Code)
	}
	if envelope.Error.ReasonCode != api.ReasonSessionExpired {
		t.Errorf("expected reason_code %q, got %q", api.ReasonSessionExpired, envelope.Error.ReasonCode)
	}
	if envelope.Error.Message != "session required" {
		t.Errorf("unexpected message: %q", envelope.Error.Message)
	}
}

func TestWriteError_StableReasonCodes(t *testing.T) {
	codes := map[string]string{
		"unauthenticated":     api.ReasonUnauthenticated,
		"session_expired":     api.ReasonSessionExpired,
		"malformed_token":     api.ReasonMalformedToken,
		"missing_field":       api.ReasonMissingField,
		"backend_unavailable": api.ReasonBackendUnavailable,
		"backend_rejected":    api.ReasonBackendRejected,
		"internal_error":      api.ReasonInternalError,
	}
	for want, got := range codes {
		if got != want {
			t.Errorf("reason code changed: expected %q, got %q", want, got)
		}
	}
}

type stubProbe struct{}

func (stubProbe) IsAuthenticated() bool { return true }
func (stubProbe) StreamState() string   { return "open" }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name  string
		probe api.HealthProbe
		want  api.HealthResponse
	}{
		{"no probe", nil, api.HealthResponse{Status: "ok"}},
		{"with probe", stubProbe{}, api.HealthResponse{Status: "ok", Authenticated: true, Stream: "open"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			api.HealthHandler(tt.probe)(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			var got api.HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}
