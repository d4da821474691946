package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/gophblog/internal/crypto"
	"github.com/iudanet/gophblog/internal/models"
	"github.com/iudanet/gophblog/internal/server/jwt"
	"github.com/iudanet/gophblog/internal/server/session"
	"github.com/iudanet/gophblog/internal/server/storage"
)

// setupTestLogger creates a logger for tests
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

// mockUserStorage is a mock implementation of UserStorage for testing
type mockUserStorage struct {
	users        map[string]*models.User // username -> User
	createError  error
	getUserError error
	mu           sync.Mutex
}

func newMockUserStorage() *mockUserStorage {
	return &mockUserStorage{users: make(map[string]*models.User)}
}

func (m *mockUserStorage) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createError != nil {
		return m.createError
	}
	if _, exists := m.users[user.Username]; exists {
		return storage.ErrUserAlreadyExists
	}
	copied := *user
	m.users[user.Username] = &copied
	return nil
}

func (m *mockUserStorage) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getUserError != nil {
		return nil, m.getUserError
	}
	user, ok := m.users[username]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *mockUserStorage) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getUserError != nil {
		return nil, m.getUserError
	}
	for _, user := range m.users {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) CountUsers(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

// mockPostStorage is a mock implementation of PostStorage for testing
type mockPostStorage struct {
	posts       map[uuid.UUID]*models.Post
	createError error
	updateError error
	getError    error
	listError   error
	updateCalls int
	mu          sync.Mutex
}

func newMockPostStorage() *mockPostStorage {
	return &mockPostStorage{posts: make(map[uuid.UUID]*models.Post)}
}

func (m *mockPostStorage) CreatePost(_ context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createError != nil {
		return m.createError
	}
	copied := *post
	m.posts[post.ID] = &copied
	return nil
}

func (m *mockPostStorage) UpdatePost(_ context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateError != nil {
		return m.updateError
	}
	existing, ok := m.posts[post.ID]
	if !ok {
		return storage.ErrPostNotFound
	}
	existing.Title = post.Title
	existing.Summary = post.Summary
	existing.Content = post.Content
	existing.Cover = post.Cover
	existing.UpdatedAt = post.UpdatedAt
	return nil
}

func (m *mockPostStorage) GetPost(_ context.Context, id uuid.UUID) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	post, ok := m.posts[id]
	if !ok {
		return nil, storage.ErrPostNotFound
	}
	copied := *post
	return &copied, nil
}

func (m *mockPostStorage) ListPosts(_ context.Context, limit int) ([]*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listError != nil {
		return nil, m.listError
	}
	all := make([]*models.Post, 0, len(m.posts))
	for _, p := range m.posts {
		copied := *p
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	limit = storage.ClampLimit(limit)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *mockPostStorage) addPost(author *models.User, title string, createdAt time.Time) *models.Post {
	post := &models.Post{
		ID:        uuid.New(),
		Title:     title,
		Summary:   "summary",
		Content:   "content",
		Cover:     "/uploads/old.png",
		Author:    models.PostAuthor{ID: author.ID, Username: author.Username},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	m.mu.Lock()
	m.posts[post.ID] = post
	m.mu.Unlock()
	return post
}

func newTestHasher(t *testing.T) *crypto.PasswordHasher {
	t.Helper()
	h, err := crypto.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func newTestJWT(t *testing.T) *jwt.Service {
	t.Helper()
	s, err := jwt.NewService("handlers-test-secret", time.Hour)
	require.NoError(t, err)
	return s
}

func newTestSession() *session.Transport {
	return session.NewTransport(session.Options{})
}

// withUser attaches verified claims for user to the request
func withUser(t *testing.T, r *http.Request, user *models.User) *http.Request {
	t.Helper()
	svc := newTestJWT(t)
	token, err := svc.Issue(user.ID, user.Username)
	require.NoError(t, err)
	claims, err := svc.Verify(token)
	require.NoError(t, err)
	return r.WithContext(WithClaims(r.Context(), claims))
}

func testUser(username string) *models.User {
	return &models.User{ID: uuid.New(), Username: username, CreatedAt: time.Now()}
}
