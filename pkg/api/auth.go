package api

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest is the body of POST /register
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse is the created user record, without the plaintext password
type RegisterResponse struct {
	CreatedAt    time.Time `json:"created_at"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"` // bcrypt hash
	ID           uuid.UUID `json:"id"`
}

// LoginRequest is the body of POST /login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned together with the session cookie
type LoginResponse struct {
	Username string    `json:"username"`
	ID       uuid.UUID `json:"id"`
}

// ProfileResponse is the identity recovered from the session token
type ProfileResponse struct {
	ExpiresAt *int64    `json:"exp,omitempty"` // unix seconds; absent when tokens do not expire
	Username  string    `json:"username"`
	IssuedAt  int64     `json:"iat"` // unix seconds
	UserID    uuid.UUID `json:"user_id"`
}

// ErrorResponse represents an error reply
type ErrorResponse struct {
	Error   string `json:"error"`             // HTTP status text
	Message string `json:"message,omitempty"` // details safe to show to the client
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
