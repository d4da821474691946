package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophblog/internal/models"
	"github.com/iudanet/gophblog/internal/server/storage"
)

var postColumns = []string{
	"id", "title", "summary", "content", "cover",
	"created_at", "updated_at", "author_id", "username",
}

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return NewWithDB(db), mock
}

func TestHasCode(t *testing.T) {
	unique := &pgconn.PgError{Code: codeUniqueViolation}

	assert.True(t, hasCode(unique, codeUniqueViolation))
	assert.True(t, hasCode(errors.Join(errors.New("wrapped"), unique), codeUniqueViolation))
	assert.False(t, hasCode(unique, codeForeignKeyViolation))
	assert.False(t, hasCode(errors.New("plain"), codeUniqueViolation))
}

func TestCreateUser(t *testing.T) {
	tests := []struct {
		dbErr   error
		wantErr error
		name    string
	}{
		{name: "success"},
		{name: "duplicate username", dbErr: &pgconn.PgError{Code: codeUniqueViolation}, wantErr: storage.ErrUserAlreadyExists},
		{name: "db down", dbErr: errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStorage(t)
			user := &models.User{ID: uuid.New(), Username: "alice", PasswordHash: "hash", CreatedAt: time.Now()}

			exp := mock.ExpectExec(`INSERT INTO users \(id, username, password_hash, created_at\)`).
				WithArgs(user.ID, "alice", "hash", sqlmock.AnyArg())
			if tt.dbErr != nil {
				exp.WillReturnError(tt.dbErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := s.CreateUser(context.Background(), user)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.dbErr != nil:
				require.Error(t, err)
				assert.NotErrorIs(t, err, storage.ErrUserAlreadyExists)
			default:
				require.NoError(t, err)
				assert.Equal(t, time.UTC, user.CreatedAt.Location())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetUserByUsername(t *testing.T) {
	s, mock := newMockStorage(t)
	id := uuid.New()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, username, password_hash, created_at\s+FROM users\s+WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "created_at"}).
			AddRow(id.String(), "alice", "hash", created))

	user, err := s.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "hash", user.PasswordHash)
	assert.True(t, created.Equal(user.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID_NotFound(t *testing.T) {
	s, mock := newMockStorage(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM users\s+WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	user, err := s.GetUserByID(context.Background(), id)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountUsers(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := s.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePost(t *testing.T) {
	tests := []struct {
		dbErr   error
		wantErr error
		name    string
	}{
		{name: "success"},
		{name: "unknown author", dbErr: &pgconn.PgError{Code: codeForeignKeyViolation}, wantErr: storage.ErrAuthorNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStorage(t)
			post := &models.Post{
				ID:        uuid.New(),
				Title:     "Hello",
				Summary:   "sum",
				Content:   "body",
				Cover:     "/uploads/a.png",
				Author:    models.PostAuthor{ID: uuid.New()},
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}

			exp := mock.ExpectExec(`INSERT INTO posts`).
				WithArgs(post.ID, "Hello", "sum", "body", "/uploads/a.png", post.Author.ID, sqlmock.AnyArg(), sqlmock.AnyArg())
			if tt.dbErr != nil {
				exp.WillReturnError(tt.dbErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := s.CreatePost(context.Background(), post)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpdatePost(t *testing.T) {
	tests := []struct {
		wantErr  error
		name     string
		affected int64
	}{
		{name: "updated", affected: 1},
		{name: "not found", affected: 0, wantErr: storage.ErrPostNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStorage(t)
			post := &models.Post{ID: uuid.New(), Title: "T", Summary: "S", Content: "C", Cover: "", UpdatedAt: time.Now()}

			// author_id is not part of the statement
			mock.ExpectExec(`UPDATE posts\s+SET title = \$1, summary = \$2, content = \$3, cover = \$4, updated_at = \$5\s+WHERE id = \$6`).
				WithArgs("T", "S", "C", "", sqlmock.AnyArg(), post.ID).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := s.UpdatePost(context.Background(), post)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetPost(t *testing.T) {
	s, mock := newMockStorage(t)
	postID, authorID := uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM posts p\s+JOIN users u ON u.id = p.author_id\s+WHERE p.id = \$1`).
		WithArgs(postID).
		WillReturnRows(sqlmock.NewRows(postColumns).
			AddRow(postID.String(), "Hello", "sum", "body", "", now, now, authorID.String(), "alice"))

	post, err := s.GetPost(context.Background(), postID)
	require.NoError(t, err)
	assert.Equal(t, postID, post.ID)
	assert.Equal(t, authorID, post.Author.ID)
	assert.Equal(t, "alice", post.Author.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPost_NotFound(t *testing.T) {
	s, mock := newMockStorage(t)
	postID := uuid.New()

	mock.ExpectQuery(`WHERE p.id = \$1`).
		WithArgs(postID).
		WillReturnRows(sqlmock.NewRows(postColumns))

	post, err := s.GetPost(context.Background(), postID)
	assert.ErrorIs(t, err, storage.ErrPostNotFound)
	assert.Nil(t, post)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPosts(t *testing.T) {
	s, mock := newMockStorage(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(postColumns)
	for i := range 3 {
		ts := now.Add(-time.Duration(i) * time.Minute)
		rows.AddRow(uuid.NewString(), "t", "s", "c", "", ts, ts, uuid.NewString(), "alice")
	}

	mock.ExpectQuery(`ORDER BY p.created_at DESC, p.id DESC LIMIT \$1`).
		WithArgs(storage.MaxListPosts).
		WillReturnRows(rows)

	posts, err := s.ListPosts(context.Background(), 1000)
	require.NoError(t, err)
	assert.Len(t, posts, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPosts_QueryError(t *testing.T) {
	s, mock := newMockStorage(t)

	mock.ExpectQuery(`ORDER BY p.created_at DESC`).
		WithArgs(5).
		WillReturnError(errors.New("timeout"))

	posts, err := s.ListPosts(context.Background(), 5)
	require.Error(t, err)
	assert.Nil(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestIntegration runs against a real server when GOPHBLOG_TEST_POSTGRES_DSN is set
func TestIntegration(t *testing.T) {
	dsn := os.Getenv("GOPHBLOG_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GOPHBLOG_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := New(ctx, dsn)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	user := &models.User{ID: uuid.New(), Username: "it_" + uuid.NewString()[:8], PasswordHash: "hash", CreatedAt: time.Now()}
	require.NoError(t, s.CreateUser(ctx, user))
	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{ID: uuid.New(), Username: user.Username, PasswordHash: "x", CreatedAt: time.Now()}),
		storage.ErrUserAlreadyExists)

	post := &models.Post{ID: uuid.New(), Title: "t", Content: "c", Author: models.PostAuthor{ID: user.ID}, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, s.CreatePost(ctx, post))

	got, err := s.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, got.Author.Username)
}
