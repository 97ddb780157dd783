package session

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// rawToken builds header.payload.sig from literal JSON.
func rawToken(header, payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(header)) + "." + enc.EncodeToString([]byte(payload)) + ".c2ln"
}

// signedToken builds an HS256 token; the decoder never checks the key.
func signedToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-checked"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestDecode(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	token := signedToken(t, &Claims{
		UserID:   12,
		Role:     "MANAGER",
		TenantID: 3,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ana@hotel.test",
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
		},
	})

	claims, err := NewDecoder().Decode(token)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	s := FromClaims(claims)
	if s.Email != "ana@hotel.test" {
		t.Errorf("expected email ana@hotel.test, got %q", s.Email)
	}
	if s.UserID != 12 || s.TenantID != 3 {
		t.Errorf("expected user 12 tenant 3, got user %d tenant %d", s.UserID, s.TenantID)
	}
	if s.Role != RoleManager {
		t.Errorf("expected role MANAGER, got %q", s.Role)
	}
	if !s.ExpiresAt.Equal(exp) {
		t.Errorf("expected exp %v, got %v", exp, s.ExpiresAt)
	}
}

func TestDecode_FlexibleShapes(t *testing.T) {
	token := rawToken(`{"alg":"none"}`, `{"sub":"bo@hotel.test","userId":"44","tenantId":"7","roles":["role_receptionist","ADMIN"]}`)

	claims, err := NewDecoder().Decode(token)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	s := FromClaims(claims)
	if s.UserID != 44 || s.TenantID != 7 {
		t.Errorf("expected user 44 tenant 7, got user %d tenant %d", s.UserID, s.TenantID)
	}
	if s.Role != RoleReceptionist {
		t.Errorf("expected role RECEPTIONIST, got %q", s.Role)
	}
	if !s.ExpiresAt.IsZero() {
		t.Errorf("expected no expiry, got %v", s.ExpiresAt)
	}
}

func TestDecode_UnknownAlgStillDecodes(t *testing.T) {
	token := rawToken(`{"alg":"XYZ999","typ":"JWT"}`, `{"sub":"c@hotel.test","role":"CHEF"}`)

	claims, err := NewDecoder().Decode(token)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got := claims.EffectiveRole(); got != RoleUnknown {
		t.Errorf("expected UNKNOWN role, got %q", got)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"one segment", "abc"},
		{"two segments", "abc.def"},
		{"four segments", "a.b.c.d"},
		{"payload not base64", "eyJhbGciOiJub25lIn0.!!!.sig"},
		{"payload not json", rawToken(`{"alg":"none"}`, `not json`)},
		{"header not json", rawToken(`nope`, `{"sub":"x"}`)},
		{"tenant not numeric", rawToken(`{"alg":"none"}`, `{"tenantId":"abc"}`)},
	}

	d := NewDecoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Decode(tt.token)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"ADMIN", RoleAdmin},
		{"admin", RoleAdmin},
		{"ROLE_MANAGER", RoleManager},
		{" housekeeping ", RoleHousekeeping},
		{"receptionist", RoleReceptionist},
		{"", RoleUnknown},
		{"OWNER", RoleUnknown},
	}
	for _, tt := range tests {
		if got := ParseRole(tt.in); got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSessionLive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if !(Session{}).Live(now) {
		t.Error("session without expiry should be live")
	}
	if !(Session{ExpiresAt: now.Add(time.Second)}).Live(now) {
		t.Error("session expiring later should be live")
	}
	if (Session{ExpiresAt: now}).Live(now) {
		t.Error("session expiring exactly now should not be live")
	}
}
