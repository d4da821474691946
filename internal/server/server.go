package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/iudanet/gophblog/internal/server/config"
	"github.com/iudanet/gophblog/internal/server/covers"
	"github.com/iudanet/gophblog/internal/server/storage"
	"github.com/iudanet/gophblog/internal/server/storage/cache"
	"github.com/iudanet/gophblog/internal/server/storage/postgres"
	"github.com/iudanet/gophblog/internal/server/storage/sqlite"
)

// Server owns the storage, the router and the HTTP listener
type Server struct {
	logger          *slog.Logger
	store           storage.Storage
	router          *Router
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// New opens storage and cover backends selected by cfg and wires the router
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*Server, error) {
	store, err := OpenStorage(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	coverStore, err := covers.New(ctx, cfg.Covers, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to init cover storage: %w", err)
	}

	router, err := NewRouter(cfg, logger, store, coverStore, version)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Server{
		logger: logger,
		store:  store,
		router: router,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}, nil
}

// OpenStorage opens the SQLite or PostgreSQL store chosen by the DSN,
// fronted by the in-memory post cache unless it is disabled
func OpenStorage(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (storage.Storage, error) {
	store, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.PostCacheTTL == 0 {
		return store, nil
	}

	cached, err := cache.New(store, cfg.PostCacheTTL, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.InfoContext(ctx, "post cache enabled", slog.Duration("ttl", cfg.PostCacheTTL))
	return cached, nil
}

func openBackend(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.Driver() {
	case config.DriverPostgres:
		logger.InfoContext(ctx, "opening postgres storage")
		store, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		return store, nil
	default:
		logger.InfoContext(ctx, "opening sqlite storage", slog.String("path", cfg.DSN))
		store, err := sqlite.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return store, nil
	}
}

// Handler returns the wired API handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then shuts down gracefully and
// releases storage. It listens on the configured address.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.close()
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.close()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", ln.Addr().String()))
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server", slog.Duration("timeout", s.shutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

func (s *Server) close() {
	s.router.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Error("failed to close storage", slog.Any("error", err))
	}
}
