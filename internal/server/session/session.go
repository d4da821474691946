// Package session carries the session token between client and server
// in an HttpOnly cookie. There is no server-side session state.
package session

import (
	"net/http"
	"time"
)

// DefaultCookieName is the cookie used when none is configured
const DefaultCookieName = "token"

// Options configure the session cookie
type Options struct {
	Name   string
	Path   string
	MaxAge time.Duration
	Secure bool
}

// Transport sets, clears and reads the session cookie
type Transport struct {
	opts Options
}

// NewTransport creates a cookie transport, filling unset options with defaults
func NewTransport(opts Options) *Transport {
	if opts.Name == "" {
		opts.Name = DefaultCookieName
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	return &Transport{opts: opts}
}

// CookieName returns the name of the session cookie
func (t *Transport) CookieName() string {
	return t.opts.Name
}

// Attach stores the token in the session cookie
func (t *Transport) Attach(w http.ResponseWriter, token string) {
	c := t.cookie(token)
	if t.opts.MaxAge > 0 {
		c.MaxAge = int(t.opts.MaxAge.Seconds())
		c.Expires = time.Now().Add(t.opts.MaxAge)
	}
	http.SetCookie(w, c)
}

// Clear overwrites the session cookie with an empty, already expired value.
// Tokens already handed out stay valid until their own expiry.
func (t *Transport) Clear(w http.ResponseWriter) {
	c := t.cookie("")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}

// Token returns the token carried by the request, or "" if there is none
func (t *Transport) Token(r *http.Request) string {
	c, err := r.Cookie(t.opts.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (t *Transport) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     t.opts.Name,
		Value:    value,
		Path:     t.opts.Path,
		HttpOnly: true,
		Secure:   t.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
