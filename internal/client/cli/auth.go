package cli

import (
	"errors"
	"fmt"
	"time"

	ucli "github.com/urfave/cli/v2"

	"github.com/iudanet/gophblog/internal/client/storage"
	"github.com/iudanet/gophblog/internal/validation"
	"github.com/iudanet/gophblog/pkg/api"
)

func credentialFlags() []ucli.Flag {
	return []ucli.Flag{
		&ucli.StringFlag{
			Name:    "username",
			Aliases: []string{"u"},
			Usage:   "Account name (prompted when omitted)",
		},
		&ucli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "Account password (prompted when omitted, not recommended)",
			EnvVars: []string{"GOPHBLOG_PASSWORD"},
		},
	}
}

// credentials takes username and password from flags, prompting for what is missing
func (c *Cli) credentials(cCtx *ucli.Context) (string, string, error) {
	username := cCtx.String("username")
	if username == "" {
		var err error
		username, err = c.io.ReadInput("Username: ")
		if err != nil {
			return "", "", fmt.Errorf("failed to read username: %w", err)
		}
	}

	password := cCtx.String("password")
	if password == "" {
		var err error
		password, err = c.io.ReadPassword("Password: ")
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
	}

	return username, password, nil
}

func (c *Cli) registerCmd() *ucli.Command {
	return &ucli.Command{
		Name:  "register",
		Usage: "Create a new account",
		Flags: credentialFlags(),
		Action: c.action(func(cCtx *ucli.Context) error {
			c.io.Println("=== Registration ===")
			c.io.Println()

			username, password, err := c.credentials(cCtx)
			if err != nil {
				return err
			}

			if err := validation.ValidateUsername(username); err != nil {
				return fmt.Errorf("invalid username: %w", err)
			}
			if err := validation.ValidatePassword(password); err != nil {
				return fmt.Errorf("invalid password: %w", err)
			}

			user, err := c.client.Register(cCtx.Context, api.RegisterRequest{
				Username: username,
				Password: password,
			})
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}

			c.io.Println("✓ Registration successful!")
			c.io.Printf("User ID: %s\n", user.ID)
			c.io.Printf("Username: %s\n", user.Username)
			c.io.Println()
			c.io.Println("Run 'gophblog login' to start a session.")
			return nil
		}),
	}
}

func (c *Cli) loginCmd() *ucli.Command {
	return &ucli.Command{
		Name:  "login",
		Usage: "Log in and save the session locally",
		Flags: credentialFlags(),
		Action: c.action(func(cCtx *ucli.Context) error {
			ctx := cCtx.Context

			username, password, err := c.credentials(cCtx)
			if err != nil {
				return err
			}

			user, err := c.client.Login(ctx, api.LoginRequest{
				Username: username,
				Password: password,
			})
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			session := &storage.Session{
				ServerURL: c.client.BaseURL(),
				Username:  user.Username,
				UserID:    user.ID.String(),
				Token:     c.client.Token(),
			}

			// expiry is only known to the server
			profile, err := c.client.Profile(ctx)
			if err != nil {
				return fmt.Errorf("failed to read session: %w", err)
			}
			if profile.ExpiresAt != nil {
				session.ExpiresAt = *profile.ExpiresAt
			}

			if err := c.store.SaveSession(ctx, session); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}

			c.io.Println("✓ Login successful!")
			c.io.Printf("Username: %s\n", session.Username)
			if session.ExpiresAt != 0 {
				c.io.Printf("Session expires: %s\n", time.Unix(session.ExpiresAt, 0).Format(time.RFC3339))
			}
			return nil
		}),
	}
}

func (c *Cli) logoutCmd() *ucli.Command {
	return &ucli.Command{
		Name:  "logout",
		Usage: "Forget the saved session",
		Action: c.action(func(cCtx *ucli.Context) error {
			ctx := cCtx.Context

			// The server only clears the cookie, so the local copy goes regardless.
			if err := c.client.Logout(ctx); err != nil {
				c.io.Printf("Warning: server logout failed: %v\n", err)
			}
			c.client.SetToken("")

			if err := c.store.DeleteSession(ctx); err != nil {
				if errors.Is(err, storage.ErrSessionNotFound) {
					c.io.Println("Not logged in.")
					return nil
				}
				return fmt.Errorf("failed to delete session: %w", err)
			}

			c.io.Println("✓ Logged out")
			return nil
		}),
	}
}

func (c *Cli) whoamiCmd() *ucli.Command {
	return &ucli.Command{
		Name:  "whoami",
		Usage: "Show the account the server sees for the current session",
		Action: c.action(func(cCtx *ucli.Context) error {
			if err := c.requireSession(); err != nil {
				return err
			}

			profile, err := c.client.Profile(cCtx.Context)
			if err != nil {
				return authError(err)
			}

			c.io.Printf("Username: %s\n", profile.Username)
			c.io.Printf("User ID: %s\n", profile.UserID)
			c.io.Printf("Issued: %s\n", time.Unix(profile.IssuedAt, 0).Format(time.RFC3339))
			if profile.ExpiresAt != nil {
				c.io.Printf("Expires: %s\n", time.Unix(*profile.ExpiresAt, 0).Format(time.RFC3339))
			}
			return nil
		}),
	}
}

func (c *Cli) statusCmd() *ucli.Command {
	return &ucli.Command{
		Name:  "status",
		Usage: "Show the locally saved session and cache state",
		Action: c.action(func(cCtx *ucli.Context) error {
			ctx := cCtx.Context

			c.io.Println("=== Session Status ===")
			c.io.Println()

			session, err := c.store.GetSession(ctx)
			switch {
			case errors.Is(err, storage.ErrSessionNotFound):
				c.io.Println("Status: Not authenticated")
				c.io.Println("Run 'gophblog login' to authenticate.")
			case err != nil:
				return fmt.Errorf("failed to load session: %w", err)
			default:
				c.printSession(session)
			}

			refreshed, err := c.store.GetLastRefresh(ctx)
			if err != nil {
				return fmt.Errorf("failed to read cache state: %w", err)
			}
			c.io.Println()
			if refreshed == 0 {
				c.io.Println("Post cache: empty")
			} else {
				c.io.Printf("Post cache refreshed: %s\n", time.Unix(refreshed, 0).Format(time.RFC3339))
			}
			return nil
		}),
	}
}

func (c *Cli) printSession(session *storage.Session) {
	if session.Expired(c.now()) {
		c.io.Println("Status: Session expired. Please login again.")
	} else {
		c.io.Println("Status: Authenticated")
	}
	c.io.Printf("Server: %s\n", session.ServerURL)
	c.io.Printf("Username: %s\n", session.Username)
	if session.ServerURL != c.client.BaseURL() {
		c.io.Printf("Note: session belongs to %s, not %s\n", session.ServerURL, c.client.BaseURL())
	}

	if session.ExpiresAt == 0 {
		c.io.Println("Session expires: never")
		return
	}
	expiresAt := time.Unix(session.ExpiresAt, 0)
	c.io.Printf("Session expires: %s\n", expiresAt.Format(time.RFC3339))
	if remaining := expiresAt.Sub(c.now()); remaining > 0 {
		c.io.Printf("Time remaining: %s\n", remaining.Round(time.Second))
	}
}
