package models

import (
	"time"

	"github.com/google/uuid"
)

// PostAuthor is the author projection embedded into post responses.
// Only the public identity of the user is exposed.
type PostAuthor struct {
	Username string    `json:"username"`
	ID       uuid.UUID `json:"id"`
}

// Post represents a blog post
type Post struct {
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Title     string     `json:"title"`
	Summary   string     `json:"summary"`
	Content   string     `json:"content"`
	Cover     string     `json:"cover"`  // opaque cover reference: local path or remote URL
	Author    PostAuthor `json:"author"` // populated by the store on read
	ID        uuid.UUID  `json:"id"`
}
