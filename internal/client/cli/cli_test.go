package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiclient "github.com/iudanet/gophblog/internal/client/api"
	"github.com/iudanet/gophblog/internal/client/iocli"
	"github.com/iudanet/gophblog/internal/client/storage"
	"github.com/iudanet/gophblog/internal/client/storage/boltdb"
	"github.com/iudanet/gophblog/pkg/api"
)

const testServer = "http://blog.test"

// fakeAPI is an in-memory server stand-in
type fakeAPI struct {
	users       map[string]string
	posts       map[string]*api.Post
	order       []string
	token       string
	lastCover   *apiclient.CoverFile
	coverBody   string
	lastUpdate  api.PostRequest
	profileExp  *int64
	failList    error
	logoutErr   error
	updateCalls int
	rejectToken bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		users: map[string]string{},
		posts: map[string]*api.Post{},
	}
}

func (f *fakeAPI) BaseURL() string       { return testServer }
func (f *fakeAPI) SetToken(token string) { f.token = token }
func (f *fakeAPI) Token() string         { return f.token }

func (f *fakeAPI) Register(_ context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	if _, ok := f.users[req.Username]; ok {
		return nil, &apiclient.APIError{StatusCode: http.StatusBadRequest, Message: "user already exists"}
	}
	f.users[req.Username] = req.Password
	return &api.RegisterResponse{ID: uuid.New(), Username: req.Username}, nil
}

func (f *fakeAPI) Login(_ context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	if pw, ok := f.users[req.Username]; !ok || pw != req.Password {
		return nil, &apiclient.APIError{StatusCode: http.StatusBadRequest, Message: "wrong credentials"}
	}
	f.token = "token-" + req.Username
	return &api.LoginResponse{ID: uuid.New(), Username: req.Username}, nil
}

func (f *fakeAPI) Logout(context.Context) error {
	f.token = ""
	return f.logoutErr
}

func (f *fakeAPI) Profile(context.Context) (*api.ProfileResponse, error) {
	if f.token == "" {
		return nil, &apiclient.APIError{StatusCode: http.StatusUnauthorized, Message: "missing token"}
	}
	if f.rejectToken {
		return nil, &apiclient.APIError{StatusCode: http.StatusUnauthorized, Message: "invalid token"}
	}
	return &api.ProfileResponse{
		Username:  strings.TrimPrefix(f.token, "token-"),
		UserID:    uuid.New(),
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: f.profileExp,
	}, nil
}

func (f *fakeAPI) author() string {
	return strings.TrimPrefix(f.token, "token-")
}

func (f *fakeAPI) readCover(cover *apiclient.CoverFile) (string, error) {
	f.lastCover = cover
	if cover == nil {
		return "", nil
	}
	data, err := io.ReadAll(cover.Reader)
	if err != nil {
		return "", err
	}
	f.coverBody = string(data)
	return "/uploads/" + cover.Name, nil
}

func (f *fakeAPI) CreatePost(_ context.Context, req api.PostRequest, cover *apiclient.CoverFile) (*api.Post, error) {
	if f.token == "" {
		return nil, &apiclient.APIError{StatusCode: http.StatusUnauthorized, Message: "missing token"}
	}
	ref, err := f.readCover(cover)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		ref = req.Cover
	}
	now := time.Now().UTC().Add(time.Duration(len(f.order)) * time.Second)
	post := &api.Post{
		ID:        uuid.New(),
		Title:     req.Title,
		Summary:   req.Summary,
		Content:   req.Content,
		Cover:     ref,
		Author:    api.Author{Username: f.author()},
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.posts[post.ID.String()] = post
	f.order = append(f.order, post.ID.String())
	return post, nil
}

func (f *fakeAPI) UpdatePost(_ context.Context, req api.PostRequest, cover *apiclient.CoverFile) (*api.Post, error) {
	f.updateCalls++
	f.lastUpdate = req
	post, ok := f.posts[req.ID]
	if !ok {
		return nil, &apiclient.APIError{StatusCode: http.StatusNotFound, Message: "post not found"}
	}
	if post.Author.Username != f.author() {
		return nil, &apiclient.APIError{StatusCode: http.StatusForbidden, Message: "only the author can modify this post"}
	}
	ref, err := f.readCover(cover)
	if err != nil {
		return nil, err
	}
	updated := *post
	updated.Title, updated.Summary, updated.Content = req.Title, req.Summary, req.Content
	if ref != "" {
		updated.Cover = ref
	}
	updated.UpdatedAt = post.UpdatedAt.Add(time.Minute)
	f.posts[req.ID] = &updated
	return &updated, nil
}

func (f *fakeAPI) ListPosts(_ context.Context, limit int) ([]api.Post, error) {
	if f.failList != nil {
		return nil, f.failList
	}
	var out []api.Post
	for i := len(f.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *f.posts[f.order[i]])
	}
	return out, nil
}

func (f *fakeAPI) GetPost(_ context.Context, id string) (*api.Post, error) {
	post, ok := f.posts[id]
	if !ok {
		return nil, &apiclient.APIError{StatusCode: http.StatusNotFound, Message: "post not found"}
	}
	cp := *post
	return &cp, nil
}

type testEnv struct {
	api    *fakeAPI
	dbPath string
	opens  int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{
		api:    newFakeAPI(),
		dbPath: filepath.Join(t.TempDir(), "client.db"),
	}
}

func (e *testEnv) opener(ctx context.Context, _ string, dbPath string) (BlogAPI, LocalStore, error) {
	e.opens++
	store, err := boltdb.New(ctx, dbPath)
	if err != nil {
		return nil, nil, err
	}
	return e.api, store, nil
}

// run executes one client invocation with input fed to the prompts
func (e *testEnv) run(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := NewApp(iocli.NewStreams(strings.NewReader(input), &out), e.opener, "test")
	argv := append([]string{"gophblog", "--server", testServer, "--db", e.dbPath}, args...)
	err := app.RunContext(context.Background(), argv)
	return out.String(), err
}

// session reads the persisted session directly
func (e *testEnv) session(t *testing.T) (*storage.Session, error) {
	t.Helper()

	store, err := boltdb.New(context.Background(), e.dbPath)
	require.NoError(t, err)
	defer store.Close()
	return store.GetSession(context.Background())
}

func (e *testEnv) login(t *testing.T, username string) {
	t.Helper()

	e.api.users[username] = "password123"
	_, err := e.run(t, "", "login", "-u", username, "-p", "password123")
	require.NoError(t, err)
	// every invocation starts from what was persisted
	e.api.token = ""
}

func TestRegister_Prompts(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "alice\npassword123\n", "register")
	require.NoError(t, err)

	assert.Contains(t, out, "Username: ")
	assert.Contains(t, out, "Password: ")
	assert.Contains(t, out, "✓ Registration successful!")
	assert.Equal(t, "password123", env.api.users["alice"])
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "invalid username",
			args:    []string{"register", "-u", "a", "-p", "password123"},
			wantErr: "invalid username",
		},
		{
			name:    "short password",
			args:    []string{"register", "-u", "alice", "-p", "short"},
			wantErr: "invalid password",
		},
		{
			name:    "duplicate",
			args:    []string{"register", "-u", "taken", "-p", "password123"},
			wantErr: "user already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.api.users["taken"] = "whatever1"

			_, err := env.run(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLogin_SavesSession(t *testing.T) {
	env := newTestEnv(t)
	env.api.users["alice"] = "password123"
	exp := time.Now().Add(24 * time.Hour).Unix()
	env.api.profileExp = &exp

	out, err := env.run(t, "alice\npassword123\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Login successful!")
	assert.Contains(t, out, "Session expires:")

	session, err := env.session(t)
	require.NoError(t, err)
	assert.Equal(t, testServer, session.ServerURL)
	assert.Equal(t, "alice", session.Username)
	assert.Equal(t, "token-alice", session.Token)
	assert.Equal(t, exp, session.ExpiresAt)
}

func TestLogin_WrongCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.api.users["alice"] = "password123"

	_, err := env.run(t, "", "login", "-u", "alice", "-p", "wrong-password")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong credentials")

	_, err = env.session(t)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestSessionRestoredAcrossInvocations(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice")

	out, err := env.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Username: alice")
	assert.Equal(t, "token-alice", env.api.token)
}

func TestSessionNotRestored(t *testing.T) {
	tests := []struct {
		name    string
		session storage.Session
	}{
		{
			name:    "other server",
			session: storage.Session{ServerURL: "http://elsewhere.test", Token: "token-alice"},
		},
		{
			name:    "expired",
			session: storage.Session{ServerURL: testServer, Token: "token-alice", ExpiresAt: time.Now().Add(-time.Hour).Unix()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			store, err := boltdb.New(context.Background(), env.dbPath)
			require.NoError(t, err)
			require.NoError(t, store.SaveSession(context.Background(), &tt.session))
			require.NoError(t, store.Close())

			_, err = env.run(t, "", "whoami")
			require.Error(t, err)
			assert.ErrorIs(t, err, errNotLoggedIn)
			assert.Empty(t, env.api.token)
		})
	}
}

func TestWhoami_TokenRejected(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice")
	env.api.rejectToken = true

	_, err := env.run(t, "", "whoami")
	require.Error(t, err)
	assert.ErrorIs(t, err, errNotLoggedIn)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice")

	out, err := env.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Logged out")

	_, err = env.session(t)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)

	out, err = env.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in.")
}

func TestLogout_ServerUnreachable(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice")
	env.api.logoutErr = errors.New("connection refused")

	out, err := env.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Warning: server logout failed")
	assert.Contains(t, out, "✓ Logged out")

	_, err = env.session(t)
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: Not authenticated")
	assert.Contains(t, out, "Post cache: empty")

	env.login(t, "alice")
	_, err = env.run(t, "", "post", "list")
	require.NoError(t, err)

	out, err = env.run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: Authenticated")
	assert.Contains(t, out, "Username: alice")
	assert.Contains(t, out, "Session expires: never")
	assert.Contains(t, out, "Post cache refreshed:")
}

func TestPostCreate(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice")

	out, err := env.run(t, "", "post", "create",
		"--title", "Hello", "--summary", "first", "--content", "body text")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Post created")
	assert.Contains(t, out, "Title: Hello")
	assert.Contains(t, out, "Author: alice")
	require.Len(t, env.api.order, 1)
	assert.Nil(t, env.api.lastCover)

	// the created post is readable offline
	id := env.api.order[0]
	out, err = env.run(t, "", "post", "get", "--cached", id)
	require.NoError(t, err)
	assert.Contains(t, out, "body text")
}

func TestPostCreate_WithCoverAndContentFile(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice")

	dir := t.TempDir()
	coverPath := filepath.Join(dir, "cover.png")
	require.NoError(t, os.WriteFile(coverPath, []byte("png-bytes"), 0o600))
	contentPath := filepath.Join(dir, "post.md")
	require.NoError(t, os.WriteFile(contentPath, []byte("# From file\n"), 0o600))

	out, err := env.run(t, "", "post", "create",
		"--title", "With cover", "--content-file", contentPath, "--cover", coverPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Cover: /uploads/cover.png")

	require.NotNil(t, env.api.lastCover)
	assert.Equal(t, "cover.png", env.api.lastCover.Name)
	assert.Equal(t, "png-bytes", env.api.coverBody)
	assert.Equal(t, "# From file\n", env.api.posts[env.api.order[0]].Content)
}

func TestPostCreate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		loggedIn bool
		args     []string
		wantErr  string
	}{
		{
			name:    "not logged in",
			args:    []string{"post", "create", "--title", "t", "--content", "c"},
			wantErr: errNotLoggedIn.Error(),
		},
		{
			name:     "missing title",
			loggedIn: true,
			args:     []string{"post", "create", "--content", "c"},
			wantErr:  "title cannot be empty",
		},
		{
			name:     "both content sources",
			loggedIn: true,
			args:     []string{"post", "create", "--title", "t", "--content", "c", "--content-file", "x"},
			wantErr:  "either --content or --content-file",
		},
		{
			name:     "missing cover file",
			loggedIn: true,
			args:     []string{"post", "create", "--title", "t", "--content", "c", "--cover", "/nonexistent/cover.png"},
			wantErr:  "failed to open cover",
		},
		{
			name:     "cover and reference",
			loggedIn: true,
			args:     []string{"post", "create", "--title", "t", "--content", "c", "--cover", "a.png", "--cover-ref", "b"},
			wantErr:  "either --cover or --cover-ref",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.loggedIn {
				env.login(t, "alice")
			}

			_, err := env.run(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, env.api.order)
		})
	}
}

func TestPostUpdate_KeepsUnsetFields(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice")
	_, err := env.run(t, "", "post", "create", "--title", "Old", "--summary", "keep me", "--content", "old body")
	require.NoError(t, err)
	id := env.api.order[0]

	out, err := env.run(t, "", "post", "update", "--title", "New", id)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Post updated")
	assert.Contains(t, out, "Updated:")

	assert.Equal(t, api.PostRequest{ID: id, Title: "New", Summary: "keep me", Content: "old body"}, env.api.lastUpdate)

	cached, err := env.run(t, "", "post", "get", "--cached", id)
	require.NoError(t, err)
	assert.Contains(t, cached, "Title: New")
}

func TestPostUpdate_NotAuthor(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice")
	_, err := env.run(t, "", "post", "create", "--title", "Mine", "--content", "body")
	require.NoError(t, err)
	id := env.api.order[0]

	env.login(t, "bob")
	_, err = env.run(t, "", "post", "update", "--title", "Hijacked", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only the author can edit this post")
	assert.True(t, apiclient.IsStatus(err, http.StatusForbidden))
	assert.Equal(t, "Mine", env.api.posts[id].Title)
}

func TestPostUpdate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "no id", args: []string{"post", "update", "--title", "x"}, wantErr: "expected exactly one post id"},
		{name: "unknown id", args: []string{"post", "update", "--title", "x", uuid.NewString()}, wantErr: "post not found"},
		{name: "flags after id", args: []string{"post", "update", "some-id", "--title", "x"}, wantErr: "expected exactly one post id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.login(t, "alice")

			_, err := env.run(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Zero(t, env.api.updateCalls)
		})
	}
}

func TestPostList(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice")
	for _, title := range []string{"one", "two", "three"} {
		_, err := env.run(t, "", "post", "create", "--title", title, "--content", "body")
		require.NoError(t, err)
	}

	out, err := env.run(t, "", "post", "list", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "three")
	assert.Contains(t, out, "two")
	assert.NotContains(t, out, "  one  by")
	assert.Contains(t, out, "Total: 2 post(s)")
	assert.Less(t, strings.Index(out, "three"), strings.Index(out, "two"))

	// the cache mirrors the last listing
	env.api.failList = errors.New("connection refused")
	out, err = env.run(t, "", "post", "list", "--cached")
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 2 post(s)")
	assert.Less(t, strings.Index(out, "three"), strings.Index(out, "two"))

	_, err = env.run(t, "", "post", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPostList_Empty(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "post", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No posts.")

	_, err = env.run(t, "", "post", "list", "--limit", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit must be positive")
}

func TestPostGet(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice")
	_, err := env.run(t, "", "post", "create", "--title", "Readable", "--content", "the body")
	require.NoError(t, err)
	id := env.api.order[0]

	// reading needs no session
	_, err = env.run(t, "", "logout")
	require.NoError(t, err)

	out, err := env.run(t, "", "post", "get", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Title: Readable")
	assert.Contains(t, out, "the body")

	_, err = env.run(t, "", "post", "get", uuid.NewString())
	require.Error(t, err)
	assert.True(t, apiclient.IsStatus(err, http.StatusNotFound))

	_, err = env.run(t, "", "post", "get", "--cached", uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not cached")
}

func TestHelpDoesNotOpenStore(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "gophblog")
	assert.Zero(t, env.opens)
}

func TestOpenerError(t *testing.T) {
	var out bytes.Buffer
	failing := func(context.Context, string, string) (BlogAPI, LocalStore, error) {
		return nil, nil, errors.New("boom")
	}
	app := NewApp(iocli.NewStreams(strings.NewReader(""), &out), failing, "test")

	err := app.RunContext(context.Background(), []string{"gophblog", "status"})
	assert.EqualError(t, err, "boom")
}

func TestDefaultOpener(t *testing.T) {
	ctx := context.Background()

	client, store, err := DefaultOpener(ctx, "http://localhost:4000", filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "http://localhost:4000", client.BaseURL())

	_, _, err = DefaultOpener(ctx, "ftp://example.com", filepath.Join(t.TempDir(), "c.db"))
	assert.Error(t, err)
}
