package crypto

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost bcrypt cost used when the configuration does not override it
const DefaultCost = 10

// PasswordHasher hashes and verifies user passwords with bcrypt.
// Every hash embeds its own random salt and cost, so the hasher only
// carries the cost for newly produced hashes.
type PasswordHasher struct {
	absent []byte
	cost   int
}

// NewPasswordHasher creates a hasher with the given bcrypt cost
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}

	// Reference hash for VerifyAbsent: same cost as real hashes,
	// so a lookup miss costs as much as a password mismatch.
	absent, err := bcrypt.GenerateFromPassword([]byte("gophblog-absent-user"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare reference hash: %w", err)
	}

	return &PasswordHasher{absent: absent, cost: cost}, nil
}

// Hash returns a salted bcrypt hash of password
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// Verify reports whether password matches hash.
// A malformed or empty hash never matches.
func (h *PasswordHasher) Verify(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// VerifyAbsent burns one bcrypt comparison and always reports false.
// Login calls it when the username is unknown.
func (h *PasswordHasher) VerifyAbsent(password string) bool {
	_ = bcrypt.CompareHashAndPassword(h.absent, []byte(password))
	return false
}
