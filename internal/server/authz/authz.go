// Package authz decides whether a verified identity may mutate a post.
package authz

import (
	"errors"

	"github.com/google/uuid"

	"github.com/iudanet/gophblog/internal/models"
)

// ErrNotAuthor is returned when the requester did not write the post
var ErrNotAuthor = errors.New("requester is not the post author")

// ErrAnonymous is returned when no identity was resolved from the token
var ErrAnonymous = errors.New("requester is not authenticated")

// AuthorizeMutation allows the mutation only when requesterID equals
// the author id stored on the post. Ids are compared as uuid values.
func AuthorizeMutation(requesterID uuid.UUID, post *models.Post) error {
	if requesterID == uuid.Nil {
		return ErrAnonymous
	}
	if post == nil || post.Author.ID != requesterID {
		return ErrNotAuthor
	}
	return nil
}
