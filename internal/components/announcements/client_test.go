package announcements

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpclient "github.com/staybook/frontdesk/internal/platform/http/client"
)

type staticCreds struct {
	token  string
	tenant int64
}

func (s staticCreds) BearerHeader(context.Context) (string, bool) {
	return "Bearer " + s.token, s.token != ""
}

func (s staticCreds) TenantID(context.Context) (int64, bool) {
	return s.tenant, s.tenant != 0
}

func newTestClient(srv *httptest.Server, creds Credentials) *Client {
	return NewClient(httpclient.New(httpclient.Options{}), srv.URL+"/", "/api/announcements", creds, nil)
}

func TestList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/announcements" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("tenantId"); got != "8" {
			t.Errorf("expected tenantId=8, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("expected bearer header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":1,"title":"Spa open","expirationDate":"2030-01-01T00:00:00"},
			{"id":0,"title":"bad id"},
			{"id":2,"title":"Late checkout","tenant":{"id":8}}
		]`))
	}))
	defer srv.Close()

	items, err := newTestClient(srv, staticCreds{"tok", 8}).List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 || items[0].ID != 1 || items[1].ID != 2 {
		t.Fatalf("unexpected items %+v", items)
	}
	if items[1].TenantID != 8 {
		t.Errorf("expected tenant 8, got %d", items[1].TenantID)
	}
}

func TestList_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		check   func(error) bool
		wantMsg string
	}{
		{"unauthorized", http.StatusUnauthorized, "", func(err error) bool { return errors.Is(err, ErrUnauthorized) }, "ErrUnauthorized"},
		{"forbidden", http.StatusForbidden, "", func(err error) bool { return errors.Is(err, ErrUnauthorized) }, "ErrUnauthorized"},
		{"server error", http.StatusInternalServerError, "boom", func(err error) bool {
			var se *StatusError
			return errors.As(err, &se) && se.StatusCode == 500 && se.Body == "boom"
		}, "StatusError 500"},
		{"not an array", http.StatusOK, `{"id":1}`, func(err error) bool { return err != nil }, "parse error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv, staticCreds{"tok", 1}).List(context.Background())
			if !tt.check(err) {
				t.Errorf("expected %s, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestList_NoSession(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	for _, creds := range []staticCreds{{"", 1}, {"tok", 0}} {
		_, err := newTestClient(srv, creds).List(context.Background())
		if !errors.Is(err, ErrNoSession) {
			t.Errorf("creds %+v: expected ErrNoSession, got %v", creds, err)
		}
	}
	if called {
		t.Error("backend must not be called without a session")
	}
}

func TestCreate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		b, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(b, &got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":31,"title":"Fire drill","tenant":{"id":5}}`))
	}))
	defer srv.Close()

	post := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	a, err := newTestClient(srv, staticCreds{"tok", 5}).Create(context.Background(), NewAnnouncement{
		Title:     "Fire drill",
		Content:   "At 10:00",
		PostDate:  post,
		ExpiresAt: post.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if a.ID != 31 {
		t.Errorf("expected created id 31, got %d", a.ID)
	}

	if got["title"] != "Fire drill" || got["postDate"] != "2025-07-01T09:00:00" || got["expirationDate"] != "2025-07-02T09:00:00" {
		t.Errorf("unexpected payload %v", got)
	}
	tenant, _ := got["tenant"].(map[string]any)
	if tenant["id"] != float64(5) {
		t.Errorf("expected tenant.id 5, got %v", got["tenant"])
	}
}

func TestCreate_Validation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend must not be called for invalid input")
	}))
	defer srv.Close()

	now := time.Now()
	tests := []NewAnnouncement{
		{Title: "  "},
		{Title: "x", PostDate: now, ExpiresAt: now.Add(-time.Hour)},
	}
	for _, n := range tests {
		if _, err := newTestClient(srv, staticCreds{"tok", 1}).Create(context.Background(), n); !errors.Is(err, ErrInvalid) {
			t.Errorf("%+v: expected ErrInvalid, got %v", n, err)
		}
	}
}
