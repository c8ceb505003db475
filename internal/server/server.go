// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the composition root: it is the only place that knows
// which storage backend, mail transport and token settings are in use.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  → storage (sqlite.DB | postgres.DB)        implements repository.Store
//	  → mail Sender (Queue | SMTPMailer | LogMailer) → mail.Notifier
//	  → auth.TokenService, auth.PasswordService
//	  → service.IdentityService, service.EventService
//	  → handler.UserHandler, handler.EventHandler, handler.HealthHandler
//	  → chi router
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
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/vem/internal/apperror"
	"github.com/sakif/vem/internal/auth"
	"github.com/sakif/vem/internal/config"
	"github.com/sakif/vem/internal/handler"
	"github.com/sakif/vem/internal/mail"
	"github.com/sakif/vem/internal/middleware"
	"github.com/sakif/vem/internal/model"
	"github.com/sakif/vem/internal/repository"
	"github.com/sakif/vem/internal/repository/postgres"
	sqliteRepo "github.com/sakif/vem/internal/repository/sqlite"
	"github.com/sakif/vem/internal/service"
)

// Store is a repository.Store that can also report its health.
type Store interface {
	repository.Store
	handler.Pinger
}

// Compile-time checks: both backends can back the server.
var (
	_ Store = (*sqliteRepo.DB)(nil)
	_ Store = (*postgres.DB)(nil)
)

// Deps is everything the router needs. Tests build it directly.
type Deps struct {
	Identity *service.IdentityService
	Events   *service.EventService
	DB       handler.Pinger
	Logger   *slog.Logger
	Dev      bool
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database and (when queueing) the Redis client. Both
// are closed by Start once the HTTP server has drained.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	store  Store
	redis  *redis.Client
}

// New wires every dependency from cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, logger: logger, store: store}

	sender, err := s.mailSender(ctx)
	if err != nil {
		s.close()
		return nil, err
	}

	tokens, err := auth.NewTokenService(cfg.JWT.Secret, cfg.PublicURL, cfg.JWT.TTL)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("server: %w", err)
	}
	passwords := auth.NewPasswordService(cfg.JWT.BcryptCost)
	notifier := mail.NewNotifier(sender, cfg.Mail.From, cfg.Mail.FromName, logger)

	s.router = NewRouter(Deps{
		Identity: service.NewIdentityService(store, store, passwords, tokens, logger),
		Events:   service.NewEventService(store, store, store, notifier, logger),
		DB:       store,
		Logger:   logger,
		Dev:      cfg.Development(),
	})
	return s, nil
}

// openStore picks the backend named by DB_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.DB.Driver {
	case "postgres":
		db, err := postgres.New(ctx, cfg.DB.URL, logger)
		if err != nil {
			return nil, fmt.Errorf("server: opening postgres: %w", err)
		}
		return db, nil
	default:
		if cfg.DB.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.DB.Path), 0o755); err != nil {
				return nil, fmt.Errorf("server: creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.DB.Path)
		if err != nil {
			return nil, fmt.Errorf("server: opening sqlite: %w", err)
		}
		return db, nil
	}
}

// mailSender returns the Redis queue when REDIS_ADDR is set, otherwise a
// direct sender (SMTP or log).
func (s *Server) mailSender(ctx context.Context) (mail.Sender, error) {
	if s.cfg.QueueEnabled() {
		rdb, err := mail.NewRedisClient(ctx, s.cfg.Redis.Addr, s.cfg.Redis.Password, s.cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		s.redis = rdb
		return mail.NewQueue(rdb, s.logger), nil
	}

	sender, err := mail.NewDirectSender(smtpConfig(s.cfg), s.logger)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	return sender, nil
}

func smtpConfig(cfg *config.Config) mail.SMTPConfig {
	return mail.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.User,
		Password: cfg.Mail.Pass,
	}
}

// NewRouter builds the chi router.
//
// ROUTE STRUCTURE:
//
//	GET    /health                  → liveness + DB ping
//	POST   /users/register          → signup (public)
//	POST   /users/login             → token (public)
//	GET    /users/attendee/events   → attendee
//	POST   /events                  → organizer
//	GET    /events                  → organizer
//	PUT    /events/{id}             → organizer
//	DELETE /events/{id}             → organizer
//	POST   /events/{id}/register    → attendee
//	GET    /events/{id}/attendees   → organizer
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so the logger and error envelope can read it.
// RequireAuth always runs before RequireRole, and both run before the
// handler decodes or validates anything: an anonymous caller gets 401 no
// matter what body it sent.
func NewRouter(d Deps) *chi.Mux {
	errs := handler.NewErrorResponder(d.Logger, d.Dev)
	validate := handler.NewValidator()

	users := handler.NewUserHandler(d.Identity, d.Events, validate, errs)
	events := handler.NewEventHandler(d.Events, validate, errs)
	health := handler.NewHealthHandler(d.DB, d.Logger)

	requireAuth := auth.RequireAuth(d.Identity, errs.Write)
	organizer := auth.RequireRole(d.Identity, model.RoleOrganizer, errs.Write)
	attendee := auth.RequireRole(d.Identity, model.RoleAttendee, errs.Write)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimiddleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		errs.Write(w, req, apperror.NotFoundMessage("route not found: "+req.Method+" "+req.URL.Path))
	})

	r.Get("/health", health.HandleHealth)

	r.Route("/users", func(r chi.Router) {
		r.Post("/register", users.HandleRegister)
		r.Post("/login", users.HandleLogin)
		r.With(requireAuth, attendee).Get("/attendee/events", users.HandleAttendeeEvents)
	})

	r.Route("/events", func(r chi.Router) {
		r.Use(requireAuth)

		r.Group(func(r chi.Router) {
			r.Use(organizer)
			r.Post("/", events.HandleCreate)
			r.Get("/", events.HandleList)
			r.Put("/{id}", events.HandleUpdate)
			r.Delete("/{id}", events.HandleDelete)
			r.Get("/{id}/attendees", events.HandleAttendees)
		})

		r.With(attendee).Post("/{id}/register", events.HandleRegister)
	})

	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully:
//  1. stop accepting connections
//  2. wait up to 30s for in-flight requests
//  3. close Redis and the database
func (s *Server) Start() error {
	defer s.close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("issuer", s.cfg.PublicURL),
			slog.String("db_driver", s.cfg.DB.Driver),
			slog.Bool("mail_queue", s.cfg.QueueEnabled()),
			slog.Bool("smtp", s.cfg.MailEnabled()),
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

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func (s *Server) close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("closing redis", slog.String("error", err.Error()))
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}
