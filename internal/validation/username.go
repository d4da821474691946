package validation

import (
	"fmt"
	"regexp"
)

// UsernamePattern defines the allowed username format:
// latin letters (a-z, A-Z), digits (0-9) and underscore, 3-32 characters.
var UsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

const (
	// MinUsernameLen minimum username length
	MinUsernameLen = 3
	// MaxUsernameLen maximum username length
	MaxUsernameLen = 32

	// MinPasswordLen minimum password length
	MinPasswordLen = 6
	// MaxPasswordLen is the bcrypt input limit in bytes
	MaxPasswordLen = 72
)

// ValidateUsername checks that username matches UsernamePattern
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	if len(username) < MinUsernameLen {
		return fmt.Errorf("username must be at least %d characters long", MinUsernameLen)
	}

	if len(username) > MaxUsernameLen {
		return fmt.Errorf("username must not exceed %d characters", MaxUsernameLen)
	}

	if !UsernamePattern.MatchString(username) {
		return fmt.Errorf("username can only contain letters (a-z, A-Z), numbers (0-9), and underscores (_)")
	}

	return nil
}

// ValidatePassword checks password length bounds.
// The upper bound is in bytes because bcrypt rejects longer input.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if len(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLen)
	}

	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password must not exceed %d bytes", MaxPasswordLen)
	}

	return nil
}
