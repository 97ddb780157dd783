package feed

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	a, err := Parse([]byte(`{
		"id": 17,
		"title": "Pool closed",
		"content": "Maintenance until noon",
		"postDate": "2025-05-01T08:00:00Z",
		"expirationDate": "2025-05-02",
		"tenant": {"id": 4}
	}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if a.ID != 17 || a.Title != "Pool closed" || a.TenantID != 4 {
		t.Errorf("unexpected announcement %+v", a)
	}
	if want := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC); !a.PostDate.Equal(want) {
		t.Errorf("expected postDate %v, got %v", want, a.PostDate)
	}
	if want := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC); !a.ExpiresAt.Equal(want) {
		t.Errorf("expected expirationDate %v, got %v", want, a.ExpiresAt)
	}
}

func TestParse_TimestampShapes(t *testing.T) {
	want := time.Date(2025, 5, 1, 8, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		raw  string
	}{
		{"rfc3339", `"2025-05-01T08:30:00Z"`},
		{"rfc3339 offset", `"2025-05-01T10:30:00+02:00"`},
		{"local datetime", `"2025-05-01T08:30:00"`},
		{"space separated", `"2025-05-01 08:30:00"`},
		{"epoch millis", `1746088200000`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Parse([]byte(`{"id":1,"title":"x","postDate":` + tt.raw + `}`))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if !a.PostDate.Equal(want) {
				t.Errorf("expected %v, got %v", want, a.PostDate)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{id:`},
		{"not an object", `[1,2]`},
		{"missing id", `{"title":"x"}`},
		{"zero id", `{"id":0,"title":"x"}`},
		{"negative id", `{"id":-3,"title":"x"}`},
		{"string id", `{"id":"7","title":"x"}`},
		{"blank title", `{"id":1,"title":"  "}`},
		{"bad date", `{"id":1,"title":"x","expirationDate":"tomorrow"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			if err == nil {
				t.Fatal("expected error")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Errorf("expected *ParseError, got %T", err)
			}
		})
	}
}

func TestParseList_SkipsBadItems(t *testing.T) {
	items, skipped, err := ParseList([]byte(`[{"id":1,"title":"a"},{"title":"no id"},{"id":2,"title":"b"}]`))
	if err != nil {
		t.Fatalf("ParseList failed: %v", err)
	}
	if len(items) != 2 || items[0].ID != 1 || items[1].ID != 2 {
		t.Errorf("unexpected items %+v", items)
	}
	if len(skipped) != 1 || !IsParseError(skipped[0]) {
		t.Errorf("expected one skipped parse error, got %v", skipped)
	}

	if _, _, err := ParseList([]byte(`{"id":1}`)); !IsParseError(err) {
		t.Errorf("expected ParseError for non-array body, got %v", err)
	}
}

func TestAnnouncementMarshalJSON(t *testing.T) {
	b, err := json.Marshal(Announcement{ID: 3, Title: "t"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s := string(b)
	if strings.Contains(s, "postDate") || strings.Contains(s, "expirationDate") {
		t.Errorf("zero times should be omitted: %s", s)
	}
	if !strings.Contains(s, `"id":3`) {
		t.Errorf("missing id: %s", s)
	}
}
