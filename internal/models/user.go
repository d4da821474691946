package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered blog author
type User struct {
	CreatedAt    time.Time `json:"created_at"`    // registration time
	Username     string    `json:"username"`      // unique username
	PasswordHash string    `json:"password_hash"` // bcrypt hash, never the plaintext
	ID           uuid.UUID `json:"id"`            // user UUID
}
