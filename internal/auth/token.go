// Package auth guards the admin surface of the HTTP API.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// AdminVerifier checks bearer tokens against a single shared admin secret.
type AdminVerifier struct {
	token []byte
}

func NewAdminVerifier(token string) *AdminVerifier {
	return &AdminVerifier{token: []byte(strings.TrimSpace(token))}
}

// Verify compares in constant time. An empty configured secret rejects every
// token.
func (v *AdminVerifier) Verify(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrMissingToken
	}
	if len(v.token) == 0 || subtle.ConstantTimeCompare(v.token, []byte(token)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
