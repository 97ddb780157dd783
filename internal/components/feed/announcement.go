// Package feed parses announcements and merges the REST snapshot with the
// push stream into one deduplicated view.
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Announcement is keyed by ID. Zero times mean the field was absent.
type Announcement struct {
	ID        int64
	Title     string
	Content   string
	PostDate  time.Time
	ExpiresAt time.Time
	TenantID  int64
}

// ActiveAt reports whether the announcement has not expired at now.
// Announcements without an expiration never expire.
func (a Announcement) ActiveAt(now time.Time) bool {
	return a.ExpiresAt.IsZero() || a.ExpiresAt.After(now)
}

// ParseError reports an announcement payload that could not be used.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "parse announcement: " + e.Reason + ": " + e.Err.Error()
	}
	return "parse announcement: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err is (or wraps) a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// timeLayouts are tried in order for string timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// flexTime decodes a timestamp string (see timeLayouts) or epoch milliseconds.
type flexTime struct {
	time.Time
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				f.Time = t
				return nil
			}
		}
		return fmt.Errorf("unrecognized timestamp %q", s)
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("unrecognized timestamp %s", b)
	}
	f.Time = time.UnixMilli(ms).UTC()
	return nil
}

type tenantRef struct {
	ID *int64 `json:"id"`
}

// wireAnnouncement is the payload shape shared by the REST API and the stream.
type wireAnnouncement struct {
	ID             *int64     `json:"id"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	PostDate       flexTime   `json:"postDate"`
	ExpirationDate flexTime   `json:"expirationDate"`
	TenantID       *int64     `json:"tenantId"`
	Tenant         *tenantRef `json:"tenant"`
}

// Parse decodes one announcement. Every failure is a *ParseError.
func Parse(raw []byte) (Announcement, error) {
	var w wireAnnouncement
	if err := json.Unmarshal(raw, &w); err != nil {
		return Announcement{}, &ParseError{Reason: "invalid json", Err: err}
	}
	return w.toAnnouncement()
}

func (w *wireAnnouncement) toAnnouncement() (Announcement, error) {
	if w.ID == nil {
		return Announcement{}, &ParseError{Reason: "missing id"}
	}
	if *w.ID <= 0 {
		return Announcement{}, &ParseError{Reason: fmt.Sprintf("invalid id %d", *w.ID)}
	}
	if strings.TrimSpace(w.Title) == "" {
		return Announcement{}, &ParseError{Reason: fmt.Sprintf("announcement %d has no title", *w.ID)}
	}

	a := Announcement{
		ID:        *w.ID,
		Title:     w.Title,
		Content:   w.Content,
		PostDate:  w.PostDate.Time,
		ExpiresAt: w.ExpirationDate.Time,
	}
	switch {
	case w.TenantID != nil:
		a.TenantID = *w.TenantID
	case w.Tenant != nil && w.Tenant.ID != nil:
		a.TenantID = *w.Tenant.ID
	}
	return a, nil
}

// ParseList decodes a JSON array of announcements. Entries that fail to parse
// are skipped and returned as errors; a body that is not an array fails whole.
func ParseList(raw []byte) ([]Announcement, []error, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, nil, &ParseError{Reason: "expected a json array", Err: err}
	}

	out := make([]Announcement, 0, len(items))
	var skipped []error
	for i, item := range items {
		a, err := Parse(item)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("item %d: %w", i, err))
			continue
		}
		out = append(out, a)
	}
	return out, skipped, nil
}

// jsonAnnouncement is the console's own JSON rendering.
type jsonAnnouncement struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Content        string     `json:"content,omitempty"`
	PostDate       *time.Time `json:"postDate,omitempty"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	TenantID       int64      `json:"tenantId,omitempty"`
}

func (a Announcement) MarshalJSON() ([]byte, error) {
	j := jsonAnnouncement{
		ID:       a.ID,
		Title:    a.Title,
		Content:  a.Content,
		TenantID: a.TenantID,
	}
	if !a.PostDate.IsZero() {
		j.PostDate = &a.PostDate
	}
	if !a.ExpiresAt.IsZero() {
		j.ExpirationDate = &a.ExpiresAt
	}
	return json.Marshal(j)
}
