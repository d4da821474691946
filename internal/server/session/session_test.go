package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func responseCookie(t *testing.T, rr *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func TestNewTransport_Defaults(t *testing.T) {
	tr := NewTransport(Options{})

	assert.Equal(t, DefaultCookieName, tr.CookieName())
	assert.Equal(t, "/", tr.opts.Path)
}

func TestTransport_Attach(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		wantMaxAge int
	}{
		{
			name:       "session cookie without max age",
			opts:       Options{},
			wantMaxAge: 0,
		},
		{
			name:       "persistent cookie",
			opts:       Options{Name: "sid", MaxAge: time.Hour, Secure: true},
			wantMaxAge: 3600,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTransport(tt.opts)
			rr := httptest.NewRecorder()

			tr.Attach(rr, "signed.token.value")

			c := responseCookie(t, rr, tr.CookieName())
			assert.Equal(t, "signed.token.value", c.Value)
			assert.Equal(t, "/", c.Path)
			assert.True(t, c.HttpOnly)
			assert.Equal(t, tt.opts.Secure, c.Secure)
			assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
			assert.Equal(t, tt.wantMaxAge, c.MaxAge)
		})
	}
}

func TestTransport_Clear(t *testing.T) {
	tr := NewTransport(Options{MaxAge: time.Hour})
	rr := httptest.NewRecorder()

	tr.Clear(rr)

	c := responseCookie(t, rr, DefaultCookieName)
	assert.Empty(t, c.Value)
	assert.Less(t, c.MaxAge, 0)
	assert.True(t, c.HttpOnly)
}

func TestTransport_Token(t *testing.T) {
	tr := NewTransport(Options{})

	t.Run("present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/profile", nil)
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "abc"})
		assert.Equal(t, "abc", tr.Token(req))
	})

	t.Run("absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/profile", nil)
		assert.Empty(t, tr.Token(req))
	})

	t.Run("other cookie name", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/profile", nil)
		req.AddCookie(&http.Cookie{Name: "other", Value: "abc"})
		assert.Empty(t, tr.Token(req))
	})
}

func TestTransport_AttachThenRead(t *testing.T) {
	tr := NewTransport(Options{})
	rr := httptest.NewRecorder()
	tr.Attach(rr, "round-trip")

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
	require.Equal(t, "round-trip", tr.Token(req))
}
