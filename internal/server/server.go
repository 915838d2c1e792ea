package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/shopfront/apiserver/config"
	"github.com/shopfront/apiserver/internal/db"
	"github.com/shopfront/apiserver/internal/handlers"
	"github.com/shopfront/apiserver/internal/logging"
	"github.com/shopfront/apiserver/internal/metrics"
	"github.com/shopfront/apiserver/internal/mq"
	"github.com/shopfront/apiserver/internal/services"
	"github.com/shopfront/apiserver/internal/session"
	"github.com/shopfront/apiserver/internal/storage"
	"github.com/shopfront/apiserver/internal/store"
)

const requestTimeout = 60 * time.Second

// Server wraps the HTTP server, router and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	redis      *redis.Client
	mq         *mq.MQ
	log        *slog.Logger
	closeOnce  sync.Once
}

// Deps are the collaborators the router is built from. Images and Events
// may be nil.
type Deps struct {
	DB       *sql.DB
	Sessions session.Backend
	Images   services.ImageStore
	Events   services.OrderEventPublisher
	Metrics  *metrics.Metrics
}

// New connects to every configured backend and builds the router.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *Server, err error) {
	s := &Server{log: log}
	defer func() {
		if err != nil {
			s.closeResources()
		}
	}()

	s.db, err = db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	backend, err := s.sessionBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	deps := Deps{
		DB:       s.db,
		Sessions: backend,
		Metrics:  metrics.New(),
	}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if objects != nil {
		deps.Images = objects
		log.Info("product images enabled", slog.String("backend", cfg.Storage.Backend), slog.String("bucket", objects.Bucket()))
	}

	s.mq, err = mq.NewFromConfig(ctx, cfg.MQ)
	if err != nil {
		return nil, fmt.Errorf("init mq: %w", err)
	}
	if s.mq != nil {
		deps.Events = mq.NewOrderPublisher(s.mq, cfg.MQ.OrdersChannel)
		log.Info("order events enabled", slog.String("backend", cfg.MQ.Backend), slog.String("channel", cfg.MQ.OrdersChannel))
	}

	s.router, err = NewRouter(cfg, deps, log)
	if err != nil {
		return nil, err
	}

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) sessionBackend(ctx context.Context, cfg config.Config) (session.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Session.Backend)) {
	case "", "memory":
		return session.NewMemoryBackend(), nil
	case "redis":
		s.redis = redis.NewClient(&redis.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return session.NewRedisBackend(s.redis), nil
	default:
		return nil, fmt.Errorf("unsupported session backend %q", cfg.Session.Backend)
	}
}

// NewRouter wires repositories, services and handlers onto a chi router.
func NewRouter(cfg config.Config, deps Deps, log *slog.Logger) (*chi.Mux, error) {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	userRepo := store.NewUserRepository(deps.DB)
	productRepo := store.NewProductRepository(deps.DB)
	categoryRepo := store.NewCategoryRepository(deps.DB)

	hasher := services.NewPasswordHasher(cfg.BcryptCost)
	userService := services.NewUserService(userRepo, hasher)
	authService, err := services.NewAuthService(userRepo, hasher)
	if err != nil {
		return nil, fmt.Errorf("init auth: %w", err)
	}
	productService := services.NewProductService(productRepo, deps.Images, log)
	categoryService := services.NewCategoryService(categoryRepo)
	orderService := services.NewOrderService(deps.DB, services.SQLOrderRepositories(), deps.Events, log)

	sessions, err := session.NewManager(cfg.Session.Secret, cfg.Session.TTL, deps.Sessions, userRepo, log)
	if err != nil {
		return nil, fmt.Errorf("init sessions: %w", err)
	}

	authHandler := handlers.NewAuthHandler(userService, authService, sessions, deps.Metrics, cfg.Session.CookieSecure, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		handlers.PeerAddr,
		middleware.RealIP,
		accessLog(log),
		middleware.Recoverer,
		deps.Metrics.Middleware,
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.Timeout(requestTimeout),
		authHandler.LoadIdentity,
	)

	router.Get("/healthz", handlers.Healthz(deps.DB))
	router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	handlers.AuthRouter(router, authHandler, handlers.RateLimit(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst))
	handlers.OrderRouter(router, handlers.NewOrderHandler(orderService, deps.Metrics, log))
	router.Route("/products", func(r chi.Router) {
		handlers.ProductRouter(r, handlers.NewProductHandler(productService, log))
	})
	router.Route("/categories", func(r chi.Router) {
		handlers.CategoryRouter(r, handlers.NewCategoryHandler(categoryService, log))
	})

	return router, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called. If the listener
// fails, the backends are closed before the error is returned.
func (s *Server) Start() error {
	s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.closeResources()
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the backends. It is safe
// to call after Start has failed.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeResources()
	return err
}

func (s *Server) closeResources() {
	s.closeOnce.Do(s.close)
}

func (s *Server) close() {
	if s.mq != nil {
		if err := s.mq.Close(); err != nil {
			s.log.Warn("failed to close mq", logging.Err(err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.log.Warn("failed to close redis", logging.Err(err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("failed to close database", logging.Err(err))
		}
	}
}
