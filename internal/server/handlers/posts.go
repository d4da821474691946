package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/gophblog/internal/models"
	"github.com/iudanet/gophblog/internal/server/authz"
	"github.com/iudanet/gophblog/internal/server/covers"
	"github.com/iudanet/gophblog/internal/server/storage"
	"github.com/iudanet/gophblog/internal/validation"
	"github.com/iudanet/gophblog/pkg/api"
)

// CoverFormField is the multipart part carrying the cover image
const CoverFormField = "file"

// maxCoverRefLen bounds a cover reference sent as plain text
const maxCoverRefLen = 2048

// multipartMemory is kept in memory by ParseMultipartForm, the rest spills to disk
const multipartMemory = 1 << 20

var errInvalidInput = errors.New("invalid input")

// PostHandler handles blog post requests
type PostHandler struct {
	responder
	postStorage storage.PostStorage
	covers      covers.Store
	maxUpload   int64
}

// NewPostHandler creates a new post handler.
// maxUpload limits the size of an uploaded cover in bytes.
func NewPostHandler(logger *slog.Logger, postStorage storage.PostStorage, coverStore covers.Store, maxUpload int64) *PostHandler {
	return &PostHandler{
		responder:   responder{logger: logger},
		postStorage: postStorage,
		covers:      coverStore,
		maxUpload:   maxUpload,
	}
}

// postInput is a decoded create/update request
type postInput struct {
	file   multipart.File
	header *multipart.FileHeader
	req    api.PostRequest
}

func (in *postInput) close() {
	if in.file != nil {
		_ = in.file.Close()
	}
}

// Create handles POST /post
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	username, _ := GetUsername(ctx)

	in, err := h.decode(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid create post request", slog.Any("error", err))
		h.sendError(w, publicMessage(err), http.StatusBadRequest)
		return
	}
	defer in.close()

	if err := validation.ValidatePost(in.req.Title, in.req.Summary, in.req.Content); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	cover, status, err := h.resolveCover(ctx, in, "")
	if err != nil {
		h.sendError(w, publicMessage(err), status)
		return
	}

	now := time.Now()
	post := &models.Post{
		ID:        uuid.New(),
		Title:     in.req.Title,
		Summary:   in.req.Summary,
		Content:   in.req.Content,
		Cover:     cover,
		Author:    models.PostAuthor{ID: userID, Username: username},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.postStorage.CreatePost(ctx, post); err != nil {
		h.discardUpload(ctx, in, cover)
		if errors.Is(err, storage.ErrAuthorNotFound) {
			h.logger.WarnContext(ctx, "token refers to a missing user", slog.String("user_id", userID.String()))
			h.sendError(w, "unknown user", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create post", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "post created",
		slog.String("post_id", post.ID.String()),
		slog.String("user_id", userID.String()))

	h.sendJSON(w, toAPIPost(post), http.StatusOK)
}

// Update handles PUT /post. Only the author may update a post;
// the author itself never changes.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	in, err := h.decode(w, r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid update post request", slog.Any("error", err))
		h.sendError(w, publicMessage(err), http.StatusBadRequest)
		return
	}
	defer in.close()

	postID, err := uuid.Parse(in.req.ID)
	if err != nil {
		h.sendError(w, "invalid post id", http.StatusBadRequest)
		return
	}

	if err := validation.ValidatePost(in.req.Title, in.req.Summary, in.req.Content); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	existing, err := h.postStorage.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			h.sendError(w, "post not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get post", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := authz.AuthorizeMutation(userID, existing); err != nil {
		h.logger.WarnContext(ctx, "update denied",
			slog.String("post_id", postID.String()),
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
		if errors.Is(err, authz.ErrAnonymous) {
			h.sendError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		h.sendError(w, "only the author can modify this post", http.StatusForbidden)
		return
	}

	cover, status, err := h.resolveCover(ctx, in, existing.Cover)
	if err != nil {
		h.sendError(w, publicMessage(err), status)
		return
	}

	updated := &models.Post{
		ID:        existing.ID,
		Title:     in.req.Title,
		Summary:   in.req.Summary,
		Content:   in.req.Content,
		Cover:     cover,
		Author:    existing.Author,
		CreatedAt: existing.CreatedAt,
		UpdatedAt: time.Now(),
	}

	if err := h.postStorage.UpdatePost(ctx, updated); err != nil {
		h.discardUpload(ctx, in, cover)
		if errors.Is(err, storage.ErrPostNotFound) {
			h.sendError(w, "post not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to update post", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "post updated",
		slog.String("post_id", updated.ID.String()),
		slog.String("user_id", userID.String()))

	h.sendJSON(w, toAPIPost(updated), http.StatusOK)
}

// List handles GET /post: newest posts first, at most storage.MaxListPosts.
// An optional ?limit= narrows the page further.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := storage.MaxListPosts
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.sendError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = storage.ClampLimit(n)
	}

	posts, err := h.postStorage.ListPosts(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list posts", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := make([]api.Post, 0, len(posts))
	for _, p := range posts {
		resp = append(resp, toAPIPost(p))
	}

	h.sendCacheableJSON(w, r, resp)
}

// Get handles GET /post/{id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	postID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.sendError(w, "post not found", http.StatusNotFound)
		return
	}

	post, err := h.postStorage.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			h.sendError(w, "post not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get post", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.sendCacheableJSON(w, r, toAPIPost(post))
}

// decode reads a JSON or multipart/form-data post request
func (h *PostHandler) decode(w http.ResponseWriter, r *http.Request) (*postInput, error) {
	in := &postInput{}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := decodeJSON(w, r, &in.req); err != nil {
			return nil, fmt.Errorf("%w: invalid request body: %w", errInvalidInput, err)
		}
		return in, h.checkCoverRef(in.req.Cover)
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: cover too large (max %d bytes)", errInvalidInput, h.maxUpload)
		}
		return nil, fmt.Errorf("%w: failed to parse multipart form: %w", errInvalidInput, err)
	}

	in.req = api.PostRequest{
		ID:      r.FormValue("id"),
		Title:   r.FormValue("title"),
		Summary: r.FormValue("summary"),
		Content: r.FormValue("content"),
		Cover:   r.FormValue("cover"),
	}
	if err := h.checkCoverRef(in.req.Cover); err != nil {
		return nil, err
	}

	file, header, err := r.FormFile(CoverFormField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil
	case err != nil:
		return nil, fmt.Errorf("%w: failed to read cover: %w", errInvalidInput, err)
	}

	if header.Size > h.maxUpload {
		_ = file.Close()
		return nil, fmt.Errorf("%w: cover too large (max %d bytes)", errInvalidInput, h.maxUpload)
	}

	in.file = file
	in.header = header
	return in, nil
}

// checkCoverRef accepts an absolute http(s) URL or a path under the
// local upload prefix
func (h *PostHandler) checkCoverRef(cover string) error {
	if cover == "" {
		return nil
	}
	if len(cover) > maxCoverRefLen {
		return fmt.Errorf("%w: cover reference too long", errInvalidInput)
	}

	if name, ok := strings.CutPrefix(cover, covers.URLPrefix); ok {
		if covers.IsPlainName(name) {
			return nil
		}
	} else if u, err := url.Parse(cover); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return nil
	}

	return fmt.Errorf("%w: cover must be an http(s) URL or an uploaded cover", errInvalidInput)
}

// discardUpload removes a cover stored for a request whose post was not saved
func (h *PostHandler) discardUpload(ctx context.Context, in *postInput, ref string) {
	if in.file == nil || ref == "" {
		return
	}
	if err := h.covers.Delete(context.WithoutCancel(ctx), ref); err != nil {
		h.logger.WarnContext(ctx, "failed to remove orphaned cover",
			slog.String("cover", ref),
			slog.Any("error", err))
	}
}

// resolveCover returns the cover reference for the post: a freshly stored
// upload, else the reference sent by the client, else current.
func (h *PostHandler) resolveCover(ctx context.Context, in *postInput, current string) (string, int, error) {
	if in.file == nil {
		if in.req.Cover != "" {
			return in.req.Cover, http.StatusOK, nil
		}
		return current, http.StatusOK, nil
	}

	contentType, err := sniffContentType(in.file)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read cover", slog.Any("error", err))
		return "", http.StatusBadRequest, fmt.Errorf("%w: failed to read cover", errInvalidInput)
	}

	ref, err := h.covers.Save(ctx, in.header.Filename, contentType, in.file)
	if err != nil {
		if errors.Is(err, covers.ErrUnsupportedType) {
			return "", http.StatusBadRequest, fmt.Errorf("%w: cover must be a jpeg, png, gif or webp image", errInvalidInput)
		}
		h.logger.ErrorContext(ctx, "failed to store cover", slog.Any("error", err))
		return "", http.StatusInternalServerError, errors.New("internal server error")
	}

	return ref, http.StatusOK, nil
}

// sniffContentType detects the type from the first bytes and rewinds the file
func sniffContentType(f multipart.File) (string, error) {
	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

// publicMessage strips the sentinel prefix from input errors
func publicMessage(err error) string {
	if errors.Is(err, errInvalidInput) {
		msg := err.Error()
		prefix := errInvalidInput.Error() + ": "
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return err.Error()
}

func toAPIPost(p *models.Post) api.Post {
	return api.Post{
		ID:        p.ID,
		Title:     p.Title,
		Summary:   p.Summary,
		Content:   p.Content,
		Cover:     p.Cover,
		Author:    api.Author{ID: p.Author.ID, Username: p.Author.Username},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
