package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/iudanet/gophblog/internal/models"
)

// MaxListPosts caps the number of posts returned by ListPosts
const MaxListPosts = 20

// PostStorage defines interface for blog post persistence.
// Returned posts always carry the author's id and username.
type PostStorage interface {
	// CreatePost stores a new post; post.Author.ID must reference an existing user
	// Returns ErrAuthorNotFound otherwise
	CreatePost(ctx context.Context, post *models.Post) error

	// UpdatePost overwrites title, summary, content, cover and updated_at.
	// The author is never changed.
	// Returns ErrPostNotFound if post doesn't exist
	UpdatePost(ctx context.Context, post *models.Post) error

	// GetPost retrieves post by ID
	// Returns ErrPostNotFound if post doesn't exist
	GetPost(ctx context.Context, postID uuid.UUID) (*models.Post, error)

	// ListPosts returns up to limit posts, newest first
	ListPosts(ctx context.Context, limit int) ([]*models.Post, error)
}

// Storage is the full persistence backend used by the server
type Storage interface {
	UserStorage
	PostStorage

	// Ping checks the backend is reachable
	Ping(ctx context.Context) error

	// Close releases the backend connection
	Close() error
}

// ClampLimit bounds a requested list size to (0, MaxListPosts]
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxListPosts {
		return MaxListPosts
	}
	return limit
}
