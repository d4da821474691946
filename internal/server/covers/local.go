package covers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// URLPrefix is the path local covers are served under
const URLPrefix = "/uploads/"

// Local stores covers as files in a directory
type Local struct {
	dir    string
	prefix string
}

// NewLocal creates the upload directory if needed
func NewLocal(dir, prefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Local{dir: dir, prefix: prefix}, nil
}

// Save writes the cover to a new file and returns its URL path
func (l *Local) Save(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	if _, err := checkType(contentType); err != nil {
		return "", err
	}

	name := objectName(filename)
	dest := filepath.Join(l.dir, name)

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create cover file: %w", err)
	}

	if _, err := io.Copy(f, readerWithContext(ctx, r)); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return "", fmt.Errorf("failed to write cover file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dest)
		return "", fmt.Errorf("failed to close cover file: %w", err)
	}

	return l.prefix + name, nil
}

// Delete removes the file behind a reference returned by Save
func (l *Local) Delete(_ context.Context, ref string) error {
	name, ok := strings.CutPrefix(ref, l.prefix)
	if !ok || !IsPlainName(name) {
		return nil
	}

	if err := os.Remove(filepath.Join(l.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove cover file: %w", err)
	}
	return nil
}

// ServeHTTP serves GET /uploads/{name}. Only plain file names inside the
// upload directory are served; anything else is 404.
func (l *Local) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !IsPlainName(name) {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(l.dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, path)
}

// IsPlainName reports whether name is a single visible path element
func IsPlainName(name string) bool {
	return name != "" && name == filepath.Base(name) &&
		!strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".")
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
