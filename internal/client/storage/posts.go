package storage

import (
	"context"

	"github.com/iudanet/gophblog/pkg/api"
)

// PostCache keeps the posts last fetched from the server for offline reading
type PostCache interface {
	// SavePost stores or replaces one post
	SavePost(ctx context.Context, post *api.Post) error

	// ReplacePosts drops the cache and stores posts
	ReplacePosts(ctx context.Context, posts []api.Post) error

	// GetCachedPost returns a cached post by id
	// Returns ErrPostNotFound if it is not cached
	GetCachedPost(ctx context.Context, id string) (*api.Post, error)

	// ListCachedPosts returns cached posts, newest first
	ListCachedPosts(ctx context.Context) ([]api.Post, error)
}
