package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the operator role carried in the token.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleManager      Role = "MANAGER"
	RoleReceptionist Role = "RECEPTIONIST"
	RoleHousekeeping Role = "HOUSEKEEPING"
	RoleUnknown      Role = "UNKNOWN"
)

// ParseRole maps a claim value onto the fixed role set. Matching ignores case
// and a leading "ROLE_". Anything else is RoleUnknown.
func ParseRole(s string) Role {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "ROLE_")
	switch Role(s) {
	case RoleAdmin, RoleManager, RoleReceptionist, RoleHousekeeping:
		return Role(s)
	default:
		return RoleUnknown
	}
}

// FlexInt decodes a JSON number or a numeric string. null decodes to zero.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Accept integral floats such as 12.0.
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || fl != float64(int64(fl)) {
			return fmt.Errorf("not an integer: %s", b)
		}
		n = int64(fl)
	}
	*f = FlexInt(n)
	return nil
}

// Claims is the decoded token payload. The subject is the operator's email.
type Claims struct {
	UserID   FlexInt  `json:"userId,omitempty"`
	Role     string   `json:"role,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	TenantID FlexInt  `json:"tenantId,omitempty"`
	jwt.RegisteredClaims
}

// Email returns the subject claim.
func (c *Claims) Email() string { return c.Subject }

// EffectiveRole returns role, falling back to the first entry of roles.
func (c *Claims) EffectiveRole() Role {
	if c.Role != "" {
		return ParseRole(c.Role)
	}
	if len(c.Roles) > 0 {
		return ParseRole(c.Roles[0])
	}
	return RoleUnknown
}

// Session is the subset of claims the console relies on.
// A zero ExpiresAt means the token carries no expiry.
type Session struct {
	Email     string
	UserID    int64
	Role      Role
	TenantID  int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// FromClaims builds a Session from decoded claims.
func FromClaims(c *Claims) Session {
	s := Session{
		Email:    c.Email(),
		UserID:   int64(c.UserID),
		Role:     c.EffectiveRole(),
		TenantID: int64(c.TenantID),
	}
	if c.IssuedAt != nil {
		s.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s
}

// Live reports whether the session has not expired at now.
func (s Session) Live(now time.Time) bool {
	return s.ExpiresAt.IsZero() || s.ExpiresAt.After(now)
}
