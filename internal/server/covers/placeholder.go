package covers

import (
	"context"
	"io"
)

// Placeholder discards uploads and always returns the same URL.
// Used where the deployment has no writable storage.
type Placeholder struct {
	url string
}

// NewPlaceholder creates a store answering with url
func NewPlaceholder(url string) *Placeholder {
	return &Placeholder{url: url}
}

// Save drains r and returns the placeholder URL
func (p *Placeholder) Save(_ context.Context, _, contentType string, r io.Reader) (string, error) {
	if _, err := checkType(contentType); err != nil {
		return "", err
	}
	_, _ = io.Copy(io.Discard, r)
	return p.url, nil
}

// Delete is a no-op; the placeholder URL is shared by every post
func (p *Placeholder) Delete(context.Context, string) error {
	return nil
}
