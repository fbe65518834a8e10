package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tecnm-sys/apiserver/config"
	"github.com/tecnm-sys/apiserver/internal/auth"
	"github.com/tecnm-sys/apiserver/internal/db"
	"github.com/tecnm-sys/apiserver/internal/handlers"
	"github.com/tecnm-sys/apiserver/internal/logger"
	"github.com/tecnm-sys/apiserver/internal/metrics"
	"github.com/tecnm-sys/apiserver/internal/mq"
	"github.com/tecnm-sys/apiserver/internal/services"
	"github.com/tecnm-sys/apiserver/internal/storage"
	"github.com/tecnm-sys/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	mq         *mq.MQ
	log        *logger.Logger
}

// New opens every backing service selected by cfg and builds the router.
func New(ctx context.Context, cfg config.Config, log *logger.Logger) (*Server, error) {
	secret, fallback, err := cfg.ResolveJWTSecret()
	if err != nil {
		return nil, err
	}
	if fallback {
		log.Warn().Msg("JWT_SECRET not set, using the development secret")
	}
	tokens, err := auth.NewTokenService(secret, auth.WithTTL(cfg.Auth.TokenTTL))
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("init mq: %w", err)
	}

	m := metrics.New()
	userOpts := []services.UserOption{services.WithMetrics(m)}
	if objects != nil {
		userOpts = append(userOpts, services.WithAvatarStorage(objects))
	}
	if broker != nil {
		userOpts = append(userOpts, services.WithEvents(broker, cfg.MQ.EventsChannel))
	}

	userService := services.NewUserService(
		store.NewUserRepository(dbConn),
		auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		tokens,
		userOpts...,
	)
	careerService := services.NewCareerService(store.NewCareerRepository(dbConn))
	institutionService := services.NewInstitutionService(store.NewInstitutionRepository(dbConn))

	authz := handlers.NewAuthorizer(tokens, m)
	dev := cfg.IsDev()

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logger.Middleware(log),
		middleware.Recoverer,
		m.Middleware,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Health(dbConn))
	router.Handle("/metrics", m.Handler())
	router.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health(dbConn))
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, userService, authz, dev)
		})
		r.Route("/careers", func(r chi.Router) {
			handlers.CareerRouter(r, careerService, authz, dev)
		})
		r.Route("/institutions", func(r chi.Router) {
			handlers.InstitutionRouter(r, institutionService, authz, dev)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mq:         broker,
		log:        log,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases backing services.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		if closeErr := s.mq.Close(); closeErr != nil {
			s.log.Warn().Err(closeErr).Msg("close mq")
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
