package storage

import "errors"

// Common client storage errors
var (
	// ErrSessionNotFound indicates that nobody is logged in
	ErrSessionNotFound = errors.New("session not found")

	// ErrPostNotFound indicates that the post is not cached
	ErrPostNotFound = errors.New("post not cached")
)
