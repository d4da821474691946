// Package api is the HTTP client of the blog API. The session cookie set
// by the server on login is kept in a cookie jar and sent on later calls.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/gophblog/pkg/api"
)

// DefaultCookieName is the session cookie name used by the server by default
const DefaultCookieName = "token"

// APIError is a non-2xx reply from the server
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// CoverFile is a cover image uploaded with a post
type CoverFile struct {
	Reader io.Reader
	Name   string
}

// Client talks to the blog server
type Client struct {
	httpClient *http.Client
	jar        http.CookieJar
	baseURL    *url.URL
	cookieName string
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		baseURL:    u,
		jar:        jar,
		cookieName: DefaultCookieName,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
	}, nil
}

// BaseURL returns the server URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// SetToken restores a previously saved session token
func (c *Client) SetToken(token string) {
	c.jar.SetCookies(c.baseURL, []*http.Cookie{{Name: c.cookieName, Value: token, Path: "/"}})
}

// Token returns the current session token, empty when logged out
func (c *Client) Token() string {
	for _, cookie := range c.jar.Cookies(c.baseURL) {
		if cookie.Name == c.cookieName {
			return cookie.Value
		}
	}
	return ""
}

// Register creates a new account
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doJSON(ctx, http.MethodPost, "/register", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login authenticates and stores the session cookie in the jar
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	var resp api.LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/login", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	if c.Token() == "" {
		return nil, errors.New("login request failed: server did not set a session cookie")
	}
	return &resp, nil
}

// Logout asks the server to clear the session cookie
func (c *Client) Logout(ctx context.Context) error {
	var ok string
	if err := c.doJSON(ctx, http.MethodPost, "/logout", nil, &ok); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// Profile returns the claims of the current session
func (c *Client) Profile(ctx context.Context) (*api.ProfileResponse, error) {
	var resp api.ProfileResponse
	if err := c.doJSON(ctx, http.MethodGet, "/profile", nil, &resp); err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	return &resp, nil
}

// CreatePost publishes a post, uploading cover when it is not nil
func (c *Client) CreatePost(ctx context.Context, req api.PostRequest, cover *CoverFile) (*api.Post, error) {
	post, err := c.sendPost(ctx, http.MethodPost, req, cover)
	if err != nil {
		return nil, fmt.Errorf("create post request failed: %w", err)
	}
	return post, nil
}

// UpdatePost edits the post req.ID, uploading cover when it is not nil
func (c *Client) UpdatePost(ctx context.Context, req api.PostRequest, cover *CoverFile) (*api.Post, error) {
	post, err := c.sendPost(ctx, http.MethodPut, req, cover)
	if err != nil {
		return nil, fmt.Errorf("update post request failed: %w", err)
	}
	return post, nil
}

// ListPosts returns the newest posts; limit <= 0 uses the server default
func (c *Client) ListPosts(ctx context.Context, limit int) ([]api.Post, error) {
	path := "/post"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var posts []api.Post
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &posts); err != nil {
		return nil, fmt.Errorf("list posts request failed: %w", err)
	}
	return posts, nil
}

// GetPost fetches one post by id
func (c *Client) GetPost(ctx context.Context, id string) (*api.Post, error) {
	var post api.Post
	if err := c.doJSON(ctx, http.MethodGet, "/post/"+url.PathEscape(id), nil, &post); err != nil {
		return nil, fmt.Errorf("get post request failed: %w", err)
	}
	return &post, nil
}

// Health checks the server is up
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

func (c *Client) sendPost(ctx context.Context, method string, req api.PostRequest, cover *CoverFile) (*api.Post, error) {
	var post api.Post

	if cover == nil {
		if err := c.doJSON(ctx, method, "/post", req, &post); err != nil {
			return nil, err
		}
		return &post, nil
	}

	body, contentType, err := multipartBody(req, cover)
	if err != nil {
		return nil, err
	}
	if err := c.do(ctx, method, "/post", body, contentType, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// multipartBody encodes the post fields and the cover as multipart/form-data
func multipartBody(req api.PostRequest, cover *CoverFile) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"id", req.ID},
		{"title", req.Title},
		{"summary", req.Summary},
		{"content", req.Content},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field: %w", err)
		}
	}

	fw, err := mw.CreateFormFile("file", cover.Name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fw, cover.Reader); err != nil {
		return nil, "", fmt.Errorf("failed to read cover: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}

	return &buf, mw.FormDataContentType(), nil
}

// doJSON sends body encoded as JSON and decodes the reply into result
func (c *Client) doJSON(ctx context.Context, method, path string, body, result interface{}) error {
	var (
		bodyReader  io.Reader
		contentType string
	)
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, bodyReader, contentType, result)
}

// do performs the request and maps non-2xx replies to *APIError
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			apiErr.Message = errResp.Message
			if apiErr.Message == "" {
				apiErr.Message = errResp.Error
			}
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
