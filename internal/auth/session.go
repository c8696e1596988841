// Package auth holds the bearer-token session used by the REST client and
// the stream multiplexer.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Claims are the token fields the client cares about. The server is the
// only party that verifies signatures; the client just peeks at its own
// token for expiry and tenant scoping.
type Claims struct {
	Subject   string `json:"sub"`
	TenantID  int    `json:"tenant_id"`
	UserID    int    `json:"user_id"`
	IsAdmin   bool   `json:"is_admin"`
	ExpiresAt int64  `json:"exp"` // Unix seconds, 0 = no expiry
}

// Expired reports whether the claims carry an expiry in the past.
func (c Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != 0 && now.Unix() >= c.ExpiresAt
}

// Session is the process-wide authenticated session. It implements
// stream.TokenSource: Token returns false for an absent or expired
// credential, which makes Connect refuse to dial.
type Session struct {
	mu     sync.RWMutex
	token  string
	claims Claims
}

// NewSession creates an empty, unauthenticated session.
func NewSession() *Session {
	return &Session{}
}

// SetToken installs a bearer token, decoding its claims. Tenant switching
// is a new token: callers reconnect their streams after a switch.
func (s *Session) SetToken(token string) error {
	claims, err := decodeClaims(token)
	if err != nil {
		return fmt.Errorf("decode token claims: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.claims = claims
	s.mu.Unlock()

	return nil
}

// Token returns the current bearer token, or false when there is no live
// session.
func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" || s.claims.Expired(time.Now()) {
		return "", false
	}
	return s.token, true
}

// Claims returns the decoded claims for the current session.
func (s *Session) Claims() (Claims, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return Claims{}, false
	}
	return s.claims, true
}

// Clear drops the session.
func (s *Session) Clear() {
	s.mu.Lock()
	s.token = ""
	s.claims = Claims{}
	s.mu.Unlock()
}

// decodeClaims extracts the payload segment of a JWT without verifying it.
func decodeClaims(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, fmt.Errorf("token has %d segments, want 3", len(parts))
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("decode payload: %w", err)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, fmt.Errorf("parse payload: %w", err)
	}

	return claims, nil
}
