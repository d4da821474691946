// Package server assembles the blog HTTP API and runs it.
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rs/cors"

	"github.com/iudanet/gophblog/internal/crypto"
	"github.com/iudanet/gophblog/internal/server/config"
	"github.com/iudanet/gophblog/internal/server/covers"
	"github.com/iudanet/gophblog/internal/server/handlers"
	"github.com/iudanet/gophblog/internal/server/jwt"
	"github.com/iudanet/gophblog/internal/server/middleware"
	"github.com/iudanet/gophblog/internal/server/session"
	"github.com/iudanet/gophblog/internal/server/storage"
)

// Router is the fully wired http.Handler of the API
type Router struct {
	handler http.Handler
	limiter *middleware.RateLimiter
}

// NewRouter builds handlers, middleware and routes on top of store and coverStore.
// Call Close to stop background work of the rate limiter.
func NewRouter(cfg *config.Config, logger *slog.Logger, store storage.Storage, coverStore covers.Store, version string) (*Router, error) {
	hasher, err := crypto.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to create password hasher: %w", err)
	}

	tokens, err := jwt.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	transport := session.NewTransport(session.Options{
		Name:   cfg.Auth.CookieName,
		MaxAge: cfg.Auth.TokenTTL,
		Secure: cfg.Auth.CookieSecure,
	})

	authHandler := handlers.NewAuthHandler(logger, store, hasher, tokens, transport)
	postHandler := handlers.NewPostHandler(logger, store, coverStore, cfg.Covers.MaxBytes)
	healthHandler := handlers.NewHealthHandler(logger, store, version)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.TrustProxy, logger)
	if !limiter.Enabled() {
		logger.Warn("login rate limit disabled")
	}
	requireAuth := middleware.AuthMiddleware(logger, tokens, transport)

	mux := http.NewServeMux()

	mux.Handle("POST /register", limiter.Middleware(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /login", limiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.Handle("GET /profile", requireAuth(http.HandlerFunc(authHandler.Profile)))
	mux.HandleFunc("POST /logout", authHandler.Logout)

	mux.Handle("POST /post", requireAuth(http.HandlerFunc(postHandler.Create)))
	mux.Handle("PUT /post", requireAuth(http.HandlerFunc(postHandler.Update)))
	mux.HandleFunc("GET /post", postHandler.List)
	mux.HandleFunc("GET /post/{id}", postHandler.Get)

	if local, ok := coverStore.(*covers.Local); ok {
		mux.Handle("GET "+covers.URLPrefix+"{name}", local)
	}

	mux.HandleFunc("GET /health", healthHandler.Health)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.Origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "If-None-Match"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: true,
	})

	var handler http.Handler = mux
	handler = corsHandler.Handler(handler)
	handler = middleware.LoggingWithSkip(logger, []string{"/health"})(handler)
	handler = middleware.RecoveryMiddleware(logger)(handler)

	return &Router{handler: handler, limiter: limiter}, nil
}

// ServeHTTP implements http.Handler
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.handler.ServeHTTP(w, r)
}

// Close releases background resources
func (rt *Router) Close() {
	rt.limiter.Stop()
}
