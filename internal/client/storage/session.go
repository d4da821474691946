package storage

import (
	"context"
	"time"
)

// SessionStorage keeps the login session between client invocations
type SessionStorage interface {
	// SaveSession replaces the stored session
	SaveSession(ctx context.Context, session *Session) error

	// GetSession returns the stored session
	// Returns ErrSessionNotFound if nobody is logged in
	GetSession(ctx context.Context) (*Session, error)

	// DeleteSession removes the stored session (logout)
	DeleteSession(ctx context.Context) error

	// IsAuthenticated reports whether a session exists and has not expired
	IsAuthenticated(ctx context.Context) (bool, error)
}

// Session is the server session cookie plus what the client knows about it
type Session struct {
	ServerURL string `json:"server_url"`
	Username  string `json:"username"`
	UserID    string `json:"user_id"`
	Token     string `json:"token"`
	// ExpiresAt is the token expiry in unix seconds, 0 when it never expires
	ExpiresAt int64 `json:"expires_at,omitempty"`
}

// Expired reports whether the token is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != 0 && now.Unix() >= s.ExpiresAt
}
