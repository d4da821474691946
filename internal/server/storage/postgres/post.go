package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iudanet/gophblog/internal/models"
	"github.com/iudanet/gophblog/internal/server/storage"
)

const selectPost = `
	SELECT p.id, p.title, p.summary, p.content, p.cover,
	       p.created_at, p.updated_at, u.id, u.username
	FROM posts p
	JOIN users u ON u.id = p.author_id
`

// CreatePost stores a new post
func (s *Storage) CreatePost(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (id, title, summary, content, cover, author_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	post.CreatedAt = dbTime(post.CreatedAt)
	post.UpdatedAt = dbTime(post.UpdatedAt)

	_, err := s.db.ExecContext(ctx, query,
		post.ID,
		post.Title,
		post.Summary,
		post.Content,
		post.Cover,
		post.Author.ID,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		if hasCode(err, codeForeignKeyViolation) {
			return storage.ErrAuthorNotFound
		}
		return fmt.Errorf("failed to insert post: %w", err)
	}

	return nil
}

// UpdatePost updates the editable fields of a post.
// author_id and created_at are left untouched.
func (s *Storage) UpdatePost(ctx context.Context, post *models.Post) error {
	query := `
		UPDATE posts
		SET title = $1, summary = $2, content = $3, cover = $4, updated_at = $5
		WHERE id = $6
	`

	post.UpdatedAt = dbTime(post.UpdatedAt)

	result, err := s.db.ExecContext(ctx, query,
		post.Title,
		post.Summary,
		post.Content,
		post.Cover,
		post.UpdatedAt,
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrPostNotFound
	}

	return nil
}

// GetPost retrieves post by ID with its author
func (s *Storage) GetPost(ctx context.Context, postID uuid.UUID) (*models.Post, error) {
	post, err := scanPost(s.db.QueryRowContext(ctx, selectPost+` WHERE p.id = $1`, postID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

// ListPosts returns up to limit posts, newest first
func (s *Storage) ListPosts(ctx context.Context, limit int) ([]*models.Post, error) {
	limit = storage.ClampLimit(limit)
	query := selectPost + ` ORDER BY p.created_at DESC, p.id DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	posts := make([]*models.Post, 0, limit)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}

	return posts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	post := &models.Post{}
	err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Summary,
		&post.Content,
		&post.Cover,
		&post.CreatedAt,
		&post.UpdatedAt,
		&post.Author.ID,
		&post.Author.Username,
	)
	if err != nil {
		return nil, err
	}
	return post, nil
}
