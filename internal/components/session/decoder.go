package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed means the token is not a three-part structure with a JSON payload.
	ErrMalformed = errors.New("malformed session token")

	// ErrExpired means the token's exp is not after the current time.
	ErrExpired = errors.New("session token expired")
)

// Decoder reads the claims of a token without verifying its signature.
// Verification is the backend's job; the console only needs the claims to
// gate navigation and to pick the tenant.
type Decoder struct {
	parser *jwt.Parser
}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{parser: jwt.NewParser()}
}

// Decode returns the token claims or an error wrapping ErrMalformed.
func (d *Decoder) Decode(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformed)
	}

	claims := &Claims{}
	_, _, err := d.parser.ParseUnverified(token, claims)
	// An unknown or missing alg only matters for verification; the claims are
	// already decoded by the time the parser looks at it.
	if err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims, nil
}
