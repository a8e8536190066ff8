// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root. New assembles the dependency chain once:
//
//	config → store (sqlite | postgres) → AccountService → handlers → routes
//	                                   ↘ Sweeper (background goroutine)
//
// Each layer only receives what it needs: the service gets the repository
// interface, handlers get the service, nothing below the handler sees HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"

	"github.com/sakif/social-host/internal/config"
	"github.com/sakif/social-host/internal/handler"
	"github.com/sakif/social-host/internal/middleware"
	"github.com/sakif/social-host/internal/repository"
	"github.com/sakif/social-host/internal/repository/postgres"
	sqliteRepo "github.com/sakif/social-host/internal/repository/sqlite"
	"github.com/sakif/social-host/internal/service"
	"github.com/sakif/social-host/internal/vfile"
)

// Store is a repository the server owns and must close on shutdown.
type Store interface {
	repository.AccountRepository
	Close() error
}

// Server represents the HTTP server and all its dependencies.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	store   Store
	sweeper *service.Sweeper
}

// New opens the store named by cfg and wires every layer on top of it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	signer, err := vfile.NewSigner(cfg.SecretKey, cfg.MACAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return NewWithStore(cfg, store, signer, logger), nil
}

// NewWithStore wires the server around an already open store. Tests use it
// with an in-memory SQLite database.
func NewWithStore(cfg *config.Config, store Store, signer *vfile.Signer, logger *slog.Logger) *Server {
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	accounts := service.NewAccountService(
		store,
		signer,
		vfile.NewCodec(cfg.SiteScheme, cfg.SiteDomain),
		cache,
		cfg.MaxFileSize,
		logger,
	)

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		store:   store,
		sweeper: service.NewSweeper(store, cache, cfg.Retention(), cfg.SweepInterval, logger),
	}
	s.setupRoutes(accounts)
	return s
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return db, nil

	default:
		if cfg.DBPath != ":memory:" {
			dir := filepath.Dir(cfg.DBPath)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		return db, nil
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET  /                       → service info + link directory (JSON)
// POST /signup                 → claim a nickname, receive a vfile URL
// POST /upload                 → replace social.org (multipart)
// POST /delete                 → remove the account
// POST /redirect               → 301 the public URL elsewhere
// POST /remove-redirect        → resume hosting
// GET  /{nickname}/social.org  → the hosted file (gzip when accepted)
// GET  /health/live, /health/ready, /metrics
//
// Middleware order: RequestID first so every later layer can log it,
// Recoverer last so it sits closest to the handlers.
func (s *Server) setupRoutes(accounts *service.AccountService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics())
	s.router.Use(chimiddleware.Recoverer)

	accountHandler := handler.NewAccountHandler(accounts, s.logger)
	publicHandler := handler.NewPublicHandler(accounts, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	s.router.Get("/", handler.HandleRoot)

	s.router.Post("/signup", accountHandler.HandleSignup)
	s.router.Post("/upload", accountHandler.HandleUpload)
	s.router.Post("/delete", accountHandler.HandleDelete)
	s.router.Post("/redirect", accountHandler.HandleRedirect)
	s.router.Post("/remove-redirect", accountHandler.HandleRemoveRedirect)

	s.router.Method(http.MethodGet, "/{nickname}/social.org",
		gzhttp.GzipHandler(http.HandlerFunc(publicHandler.HandleSocialOrg)))

	s.router.Get("/health/live", healthHandler.HandleLive)
	s.router.Get("/health/ready", healthHandler.HandleReady)
	s.router.Get("/metrics", healthHandler.HandleMetrics)
}

// Start runs the HTTP server and the expiry sweeper until SIGINT/SIGTERM,
// then shuts both down.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections and wait for in-flight requests
//     (up to ShutdownTimeout).
//  2. Cancel the sweeper's context and wait for it to return.
//  3. Close the store (flushes the SQLite WAL, releases pool connections).
func (s *Server) Start() error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.HTTPReadTimeout,
		WriteTimeout: s.config.HTTPWriteTimeout,
		IdleTimeout:  s.config.HTTPIdleTimeout,
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		s.sweeper.Run(sweepCtx)
	}()
	defer func() {
		stopSweeper()
		<-sweeperDone
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("public_base", s.config.SiteScheme+"://"+s.config.SiteDomain),
			slog.String("db_driver", s.config.DBDriver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
