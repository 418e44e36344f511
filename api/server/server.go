package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/watchlist-kata/moviepicker/internal/config"
	"github.com/watchlist-kata/moviepicker/internal/oauth"
	"github.com/watchlist-kata/moviepicker/internal/repository"
	"github.com/watchlist-kata/moviepicker/internal/service"
	"github.com/watchlist-kata/moviepicker/internal/session"
	"github.com/watchlist-kata/moviepicker/internal/tmdb"
	"github.com/watchlist-kata/moviepicker/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

// Pinger проверяет доступность хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps - зависимости HTTP сервера
type Deps struct {
	Accounts   *service.AccountService
	Watchlist  *service.WatchlistService
	Metadata   *service.MetadataService
	Sessions   *session.Manager
	Health     Pinger
	StaticDir  string
	Production bool // скрывать детали ошибок внешних сервисов
	Logger     *slog.Logger
}

// Server обслуживает HTTP API
type Server struct {
	Deps
}

// NewServer создает новый экземпляр Server
func NewServer(deps Deps) *Server {
	return &Server{Deps: deps}
}

// Routes собирает chi роутер со всеми маршрутами
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.Sessions.Middleware)

	r.Get("/healthz", s.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/me", s.handleMe)
		r.Get("/oauth", s.handleOAuthStart)
		r.Get("/google", s.handleOAuthStart)
		r.Get("/oauth/callback", s.handleOAuthCallback)
	})

	r.Route("/watchlist", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/add", s.handleAdd)
		r.Delete("/remove", s.handleRemove)
		r.Get("/check", s.handleCheck)
	})

	r.Get("/genres", s.handleGenres)
	r.Get("/languages", s.handleLanguages)
	r.Get("/discover", s.handleDiscover)
	r.Get("/videos", s.handleVideos)

	s.mountStatic(r)
	return r
}

// handleHealth проверяет подключение к базе данных
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Health.Ping(ctx); err != nil {
		s.Logger.ErrorContext(ctx, "health check failed", slog.Any("error", err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RunServer запускает HTTP сервер и останавливает его по SIGINT/SIGTERM
func RunServer(cfg *config.Config, logger *slog.Logger) error {
	// Подключение к базе данных
	db, err := utils.ConnectToDatabase(cfg)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := utils.Migrate(db); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		return err
	}

	// Создание репозитория
	repo := repository.NewPostgresRepository(db, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Провайдер OAuth необязателен
	var idp service.IdentityProvider
	if cfg.OAuthEnabled() {
		provider, err := oauth.NewProvider(ctx, oauth.Config{
			ProviderURL:  cfg.OIDCProvider,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
			Timeout:      cfg.UpstreamTimeout,
		})
		if err != nil {
			logger.Error("failed to init oauth provider", slog.Any("error", err))
			return err
		}
		idp = provider
	} else {
		logger.Warn("oauth login disabled: OIDC_PROVIDER is not set")
	}

	// Создание сервисов
	srv := NewServer(Deps{
		Accounts:  service.NewAccountService(repo, idp, logger),
		Watchlist: service.NewWatchlistService(repo, logger),
		Metadata: service.NewMetadataService(
			tmdb.NewClient(cfg.TMDBBaseURL, cfg.TMDBAPIKey, cfg.UpstreamTimeout), logger),
		Sessions: session.NewManager([]byte(cfg.SessionSecret), []byte(cfg.SessionEncryptionKey), session.Options{
			MaxAge: cfg.SessionMaxAge,
			Secure: cfg.CookieSecure,
		}, logger),
		Health:     repo,
		StaticDir:  cfg.StaticDir,
		Production: cfg.IsProduction(),
		Logger:     logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", slog.String("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("failed to serve", slog.Any("error", err))
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down gracefully", slog.Any("error", err))
		return fmt.Errorf("failed to shut down: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
