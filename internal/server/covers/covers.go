// Package covers stores post cover images and returns an opaque reference
// (a URL path or an absolute URL) that is saved on the post.
package covers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/iudanet/gophblog/internal/server/config"
)

// ErrUnsupportedType is returned for uploads that are not an accepted image type
var ErrUnsupportedType = errors.New("unsupported cover type")

// Store persists cover images
type Store interface {
	// Save stores the content read from r and returns its reference.
	// filename is the client-supplied name; only its extension is kept.
	Save(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
	// Delete removes a cover previously returned by Save.
	// References the store did not produce are ignored.
	Delete(ctx context.Context, ref string) error
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// New builds the store selected by cfg.Backend
func New(ctx context.Context, cfg config.CoversConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case config.CoverBackendLocal:
		return NewLocal(cfg.UploadDir, URLPrefix)
	case config.CoverBackendS3:
		return NewS3(ctx, cfg.S3)
	case config.CoverBackendNone:
		logger.Info("cover uploads disabled, using placeholder", slog.String("url", cfg.PlaceholderURL))
		return NewPlaceholder(cfg.PlaceholderURL), nil
	default:
		return nil, fmt.Errorf("unknown cover backend %q", cfg.Backend)
	}
}

// checkType validates the declared content type
func checkType(contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	base := strings.TrimSpace(strings.Split(contentType, ";")[0])
	if !allowedImageTypes[base] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, base)
	}
	return base, nil
}

// objectName builds a fresh, unguessable name that keeps the original extension
func objectName(filename string) string {
	return uuid.NewString() + cleanExt(filename)
}

func cleanExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
