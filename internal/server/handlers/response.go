package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/iudanet/gophblog/pkg/api"
)

// responder writes JSON replies; embedded by every handler
type responder struct {
	logger *slog.Logger
}

// sendJSON writes data as a JSON reply
func (h responder) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError writes an api.ErrorResponse with the given status
func (h responder) sendError(w http.ResponseWriter, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	h.sendJSON(w, resp, statusCode)
}

// maxJSONBody caps JSON request bodies
const maxJSONBody = 1 << 20

// decodeJSON reads a JSON body of at most maxJSONBody bytes into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst)
}

// WriteError writes an api.ErrorResponse; used outside handlers (middleware, router)
func WriteError(logger *slog.Logger, w http.ResponseWriter, message string, statusCode int) {
	responder{logger: logger}.sendError(w, message, statusCode)
}

// sendCacheableJSON writes a 200 JSON reply tagged with a content hash ETag.
// A matching If-None-Match gets 304 without a body.
func (h responder) sendCacheableJSON(w http.ResponseWriter, r *http.Request, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	body = append(body, '\n')

	etag := `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Debug("failed to write response", slog.Any("error", err))
	}
}

// etagMatches applies the weak comparison of If-None-Match
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
