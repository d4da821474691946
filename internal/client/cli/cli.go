// Package cli implements the gophblog command-line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	ucli "github.com/urfave/cli/v2"

	apiclient "github.com/iudanet/gophblog/internal/client/api"
	"github.com/iudanet/gophblog/internal/client/iocli"
	"github.com/iudanet/gophblog/internal/client/storage"
	"github.com/iudanet/gophblog/internal/client/storage/boltdb"
	"github.com/iudanet/gophblog/pkg/api"
)

const (
	DefaultServerURL = "http://localhost:4000"
	DefaultDBPath    = "gophblog-client.db"
)

var errNotLoggedIn = errors.New("not logged in, run 'gophblog login' first")

// BlogAPI is the part of the HTTP client the commands use
type BlogAPI interface {
	BaseURL() string
	SetToken(token string)
	Token() string
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*api.ProfileResponse, error)
	CreatePost(ctx context.Context, req api.PostRequest, cover *apiclient.CoverFile) (*api.Post, error)
	UpdatePost(ctx context.Context, req api.PostRequest, cover *apiclient.CoverFile) (*api.Post, error)
	ListPosts(ctx context.Context, limit int) ([]api.Post, error)
	GetPost(ctx context.Context, id string) (*api.Post, error)
}

// LocalStore is the client's persistent state
type LocalStore interface {
	storage.SessionStorage
	storage.PostCache
	storage.MetadataStorage
	Close() error
}

// Opener connects to the server and opens the local store
type Opener func(ctx context.Context, serverURL, dbPath string) (BlogAPI, LocalStore, error)

// DefaultOpener uses the HTTP client and a bbolt file
func DefaultOpener(ctx context.Context, serverURL, dbPath string) (BlogAPI, LocalStore, error) {
	client, err := apiclient.NewClient(serverURL)
	if err != nil {
		return nil, nil, err
	}

	store, err := boltdb.New(ctx, dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	return client, store, nil
}

type Cli struct {
	io        iocli.IO
	open      Opener
	client    BlogAPI
	store     LocalStore
	now       func() time.Time
	serverURL string
	dbPath    string
}

// NewApp builds the command tree. Nothing is opened until a command runs.
func NewApp(stdio iocli.IO, open Opener, version string) *ucli.App {
	c := &Cli{
		io:   stdio,
		open: open,
		now:  time.Now,
	}

	return &ucli.App{
		Name:      "gophblog",
		Usage:     "Read and write posts on a GophBlog server",
		Version:   version,
		Writer:    stdio,
		ErrWriter: stdio,
		Flags: []ucli.Flag{
			&ucli.StringFlag{
				Name:        "server",
				Aliases:     []string{"s"},
				Usage:       "Server URL",
				Value:       DefaultServerURL,
				EnvVars:     []string{"GOPHBLOG_SERVER"},
				Destination: &c.serverURL,
			},
			&ucli.StringFlag{
				Name:        "db",
				Usage:       "Path to local database",
				Value:       DefaultDBPath,
				EnvVars:     []string{"GOPHBLOG_CLIENT_DB"},
				Destination: &c.dbPath,
			},
		},
		Commands: []*ucli.Command{
			c.registerCmd(),
			c.loginCmd(),
			c.logoutCmd(),
			c.whoamiCmd(),
			c.statusCmd(),
			c.postCmd(),
		},
		After: func(*ucli.Context) error {
			return c.close()
		},
	}
}

// action opens the client and store before running fn
func (c *Cli) action(fn ucli.ActionFunc) ucli.ActionFunc {
	return func(cCtx *ucli.Context) error {
		if err := c.connect(cCtx.Context); err != nil {
			return err
		}
		return fn(cCtx)
	}
}

// connect opens dependencies once and restores the saved session
// when it belongs to the selected server.
func (c *Cli) connect(ctx context.Context) error {
	if c.client != nil {
		return nil
	}

	client, store, err := c.open(ctx, c.serverURL, c.dbPath)
	if err != nil {
		return err
	}
	c.client, c.store = client, store

	session, err := c.store.GetSession(ctx)
	switch {
	case errors.Is(err, storage.ErrSessionNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("failed to load session: %w", err)
	}

	if session.ServerURL == c.client.BaseURL() && !session.Expired(c.now()) {
		c.client.SetToken(session.Token)
	}
	return nil
}

func (c *Cli) close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store, c.client = nil, nil
	return err
}

// requireSession fails early when no token is available
func (c *Cli) requireSession() error {
	if c.client.Token() == "" {
		return errNotLoggedIn
	}
	return nil
}

// authError turns a rejected token into a hint to log in again
func authError(err error) error {
	if apiclient.IsStatus(err, http.StatusUnauthorized) {
		return fmt.Errorf("%w (%v)", errNotLoggedIn, err)
	}
	return err
}
