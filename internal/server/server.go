package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/location"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/mutation"
	"storefront/internal/notify"
	"storefront/internal/orchestrator"
	"storefront/internal/persistence"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies are the components the HTTP surface is built on
type Dependencies struct {
	Orchestrator *orchestrator.Orchestrator
	Resolver     *location.Resolver
	Cache        *catalog.Cache
	Store        *mutation.Store
	Broker       *notify.Broker
	Persist      persistence.Store

	// BreakerState reports the marketplace circuit breaker, may be nil
	BreakerState func() string

	// Redis enables rate limiting when set
	Redis *redis.Client
	// DB is reported by the health check when set
	DB *sql.DB
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	deps   Dependencies
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	router := chi.NewRouter()

	router.Use(custommiddleware.BaseMiddlewareStack()...)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	router.Get("/health", healthHandler(deps))

	limit := func(next http.Handler) http.Handler { return next }
	if deps.Redis != nil {
		limit = custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         cfg.Persistence.Prefix + ":ratelimit",
		}, logger)
	}

	locationHandler := transport.NewLocationHandler(deps.Orchestrator, deps.Resolver, deps.Cache.Stamp, logger)
	catalogHandler := transport.NewCatalogHandler(deps.Orchestrator, deps.Cache, logger)
	cartHandler := transport.NewCartHandler(deps.Store.Cart, deps.Store.Wishlist, deps.Cache, logger)
	productHandler := transport.NewProductHandler(deps.Store.Products, logger)
	sessionHandler := transport.NewSessionHandler(deps.Orchestrator, deps.Broker, logger)

	// The event stream must not be compressed or buffered
	router.Group(func(r chi.Router) {
		sessionHandler.RegisterRoutes(r)
	})
	router.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))
		locationHandler.RegisterRoutes(r)
		catalogHandler.RegisterRoutes(r)
		cartHandler.RegisterRoutes(r, limit)
		productHandler.RegisterRoutes(r, limit)
	})

	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:     router,
		IdleTimeout: time.Minute,
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: the event stream is long lived
	}
	// Shutdown waits for in-flight requests but would never see an event
	// stream finish on its own
	httpServer.RegisterOnShutdown(sessionHandler.CloseStreams)

	return &Server{
		Server: httpServer,
		config: cfg,
		logger: logger,
		deps:   deps,
	}
}

func healthHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":        "ok",
			"catalog_stamp": deps.Cache.Stamp(),
			"subscribers":   deps.Broker.Subscribers(),
		}
		if deps.BreakerState != nil {
			body["marketplace"] = deps.BreakerState()
		}
		if deps.DB != nil {
			body["database"] = database.Health(r.Context(), deps.DB)
		}
		if deps.Redis != nil {
			if err := deps.Redis.Ping(r.Context()).Err(); err != nil {
				body["redis"] = "down"
			} else {
				body["redis"] = "up"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(body)
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.deps.Persist != nil {
		if err := s.deps.Persist.Close(); err != nil {
			s.logger.Error("Failed to close state store", zap.Error(err))
		}
	}
	// The redis store closes the shared client itself
	if s.deps.Redis != nil && s.config.Persistence.Backend != "redis" {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
