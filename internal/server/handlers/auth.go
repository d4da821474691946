package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/gophblog/internal/models"
	"github.com/iudanet/gophblog/internal/server/storage"
	"github.com/iudanet/gophblog/internal/validation"
	"github.com/iudanet/gophblog/pkg/api"
)

// msgWrongCredentials is the only login failure message clients ever see
const msgWrongCredentials = "wrong credentials"

// PasswordHasher hashes and checks user passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	VerifyAbsent(password string) bool
}

// TokenIssuer mints session tokens
type TokenIssuer interface {
	Issue(userID uuid.UUID, username string) (string, error)
}

// SessionTransport carries the session token in the response
type SessionTransport interface {
	Attach(w http.ResponseWriter, token string)
	Clear(w http.ResponseWriter)
}

// AuthHandler handles registration, login, logout and profile requests
type AuthHandler struct {
	responder
	userStorage storage.UserStorage
	hasher      PasswordHasher
	tokens      TokenIssuer
	session     SessionTransport
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(
	logger *slog.Logger,
	userStorage storage.UserStorage,
	hasher PasswordHasher,
	tokens TokenIssuer,
	session SessionTransport,
) *AuthHandler {
	return &AuthHandler{
		responder:   responder{logger: logger},
		userStorage: userStorage,
		hasher:      hasher,
		tokens:      tokens,
		session:     session,
	}
}

// Register handles POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateUsername(req.Username); err != nil {
		h.logger.WarnContext(ctx, "invalid username", slog.String("username", req.Username), slog.Any("error", err))
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := validation.ValidatePassword(req.Password); err != nil {
		h.logger.WarnContext(ctx, "invalid password", slog.String("username", req.Username), slog.Any("error", err))
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}

	if err := h.userStorage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			h.logger.WarnContext(ctx, "user already exists", slog.String("username", req.Username))
			h.sendError(w, "username already taken", http.StatusBadRequest)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create user", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "user registered successfully",
		slog.String("username", user.Username),
		slog.String("user_id", user.ID.String()))

	resp := api.RegisterResponse{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	}

	h.sendJSON(w, resp, http.StatusOK)
}

// Login handles POST /login.
// Unknown user and wrong password produce the same reply.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		h.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		h.hasher.VerifyAbsent(req.Password)
		h.logger.WarnContext(ctx, "login failed: empty credentials")
		h.sendError(w, msgWrongCredentials, http.StatusBadRequest)
		return
	}

	user, err := h.userStorage.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.hasher.VerifyAbsent(req.Password)
			h.logger.WarnContext(ctx, "login failed: user not found", slog.String("username", req.Username))
			h.sendError(w, msgWrongCredentials, http.StatusBadRequest)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get user", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if !h.hasher.Verify(req.Password, user.PasswordHash) {
		h.logger.WarnContext(ctx, "login failed: wrong password", slog.String("username", req.Username))
		h.sendError(w, msgWrongCredentials, http.StatusBadRequest)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue token", slog.Any("error", err))
		h.sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.session.Attach(w, token)

	h.logger.InfoContext(ctx, "user logged in successfully",
		slog.String("username", user.Username),
		slog.String("user_id", user.ID.String()))

	h.sendJSON(w, api.LoginResponse{ID: user.ID, Username: user.Username}, http.StatusOK)
}

// Profile handles GET /profile; requires the auth middleware
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := GetClaims(r.Context())
	if !ok {
		h.sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	resp := api.ProfileResponse{
		UserID:   claims.UserID,
		Username: claims.Username,
	}
	if claims.IssuedAt != nil {
		resp.IssuedAt = claims.IssuedAt.Unix()
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Unix()
		resp.ExpiresAt = &exp
	}

	h.sendJSON(w, resp, http.StatusOK)
}

// Logout handles POST /logout by clearing the session cookie.
// The token itself stays valid until it expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Clear(w)

	h.logger.InfoContext(r.Context(), "session cookie cleared")

	h.sendJSON(w, "ok", http.StatusOK)
}
