// Package announcements is the REST client for the backend announcements endpoint.
package announcements

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/staybook/frontdesk/internal/components/feed"
	httpclient "github.com/staybook/frontdesk/internal/platform/http/client"
	"github.com/staybook/frontdesk/internal/platform/logutil"
)

var (
	// ErrNoSession means no token or tenant id is available to authenticate the call.
	ErrNoSession = errors.New("no session for backend request")

	// ErrUnauthorized means the backend rejected the token (401 or 403).
	ErrUnauthorized = errors.New("backend rejected credentials")

	// ErrInvalid means a NewAnnouncement failed local validation.
	ErrInvalid = errors.New("invalid announcement")
)

// StatusError is a non-2xx response other than 401/403.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

// Credentials supplies the bearer header and tenant for every call.
type Credentials interface {
	BearerHeader(ctx context.Context) (string, bool)
	TenantID(ctx context.Context) (int64, bool)
}

// WireTimeLayout is how timestamps are sent to the backend.
const WireTimeLayout = "2006-01-02T15:04:05"

const maxBodyBytes = 1 << 20

// NewAnnouncement is the create payload.
type NewAnnouncement struct {
	Title     string
	Content   string
	PostDate  time.Time
	ExpiresAt time.Time
}

// Validate checks the fields the backend requires.
func (n NewAnnouncement) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if !n.PostDate.IsZero() && !n.ExpiresAt.IsZero() && !n.ExpiresAt.After(n.PostDate) {
		return fmt.Errorf("%w: expiration must be after publication", ErrInvalid)
	}
	return nil
}

type tenantRef struct {
	ID int64 `json:"id"`
}

type createRequest struct {
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	PostDate       string    `json:"postDate,omitempty"`
	ExpirationDate string    `json:"expirationDate,omitempty"`
	Tenant         tenantRef `json:"tenant"`
}

// Client calls the announcements endpoint.
type Client struct {
	httpClient httpclient.HTTPClient
	endpoint   string
	creds      Credentials
	log        *slog.Logger
}

// NewClient creates a Client for <baseURL><path>.
func NewClient(httpClient httpclient.HTTPClient, baseURL, path string, creds Credentials, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		endpoint:   strings.TrimSuffix(baseURL, "/") + path,
		creds:      creds,
		log:        logutil.NoopIfNil(logger),
	}
}

// List fetches the tenant's announcements. Entries that fail to parse are
// logged and skipped.
func (c *Client) List(ctx context.Context) ([]feed.Announcement, error) {
	req, err := c.newRequest(ctx, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	items, skipped, err := feed.ParseList(body)
	if err != nil {
		return nil, err
	}
	for _, e := range skipped {
		c.log.Warn("skipping announcement from snapshot", "error", e)
	}
	return items, nil
}

// Create posts a new announcement for the session's tenant and returns the
// backend's copy when the response carries one.
func (c *Client) Create(ctx context.Context, n NewAnnouncement) (feed.Announcement, error) {
	if err := n.Validate(); err != nil {
		return feed.Announcement{}, err
	}

	tenantID, ok := c.creds.TenantID(ctx)
	if !ok {
		return feed.Announcement{}, ErrNoSession
	}

	payload := createRequest{
		Title:   n.Title,
		Content: n.Content,
		Tenant:  tenantRef{ID: tenantID},
	}
	if !n.PostDate.IsZero() {
		payload.PostDate = n.PostDate.Format(WireTimeLayout)
	}
	if !n.ExpiresAt.IsZero() {
		payload.ExpirationDate = n.ExpiresAt.Format(WireTimeLayout)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return feed.Announcement{}, fmt.Errorf("failed to encode announcement: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, data)
	if err != nil {
		return feed.Announcement{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(ctx, req)
	if err != nil {
		return feed.Announcement{}, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return feed.Announcement{}, nil
	}

	a, err := feed.Parse(body)
	if err != nil {
		c.log.Warn("create response not parseable", "error", err)
		return feed.Announcement{}, nil
	}
	return a, nil
}

func (c *Client) newRequest(ctx context.Context, method string, body []byte) (*http.Request, error) {
	bearer, ok := c.creds.BearerHeader(ctx)
	if !ok {
		return nil, ErrNoSession
	}
	tenantID, ok := c.creds.TenantID(ctx)
	if !ok {
		return nil, ErrNoSession
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid announcements endpoint: %w", err)
	}
	q := u.Query()
	q.Set("tenantId", strconv.FormatInt(tenantID, 10))
	u.RawQuery = q.Encode()

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", bearer)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(ctx context.Context, req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, httpclient.ErrResponseTooLarge
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
