package api

import (
	"time"

	"github.com/google/uuid"
)

// PostRequest is the JSON body of POST /post and PUT /post.
// The same fields are accepted as multipart form values, with the
// cover image in the "file" part.
type PostRequest struct {
	ID      string `json:"id,omitempty"` // required on update
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Content string `json:"content"`
	Cover   string `json:"cover,omitempty"` // optional cover reference
}

// Author is the public identity of a post author
type Author struct {
	Username string    `json:"username"`
	ID       uuid.UUID `json:"id"`
}

// Post is a blog post as returned by the API
type Post struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Content   string    `json:"content"`
	Cover     string    `json:"cover"`
	Author    Author    `json:"author"`
	ID        uuid.UUID `json:"id"`
}
