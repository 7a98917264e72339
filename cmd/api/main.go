package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/location"
	"storefront/internal/logger"
	"storefront/internal/marketplace"
	"storefront/internal/mutation"
	"storefront/internal/notify"
	"storefront/internal/orchestrator"
	"storefront/internal/persistence"
	"storefront/internal/server"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, sync *orchestrator.Orchestrator, stopRun context.CancelFunc, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop the persist loop, then write everything once more
	stopRun()
	if err := sync.Persist(ctx); err != nil {
		logger.Error("Failed to persist state on shutdown", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")

	done <- true
}

// openRedis connects to redis. A failure is fatal only when redis holds the
// session state; otherwise rate limiting is disabled.
func openRedis(ctx context.Context, cfg *config.Config, log *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		if cfg.Persistence.Backend == "redis" {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Warn("Redis unavailable, rate limiting disabled", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		return nil, nil
	}
	return client, nil
}

// openPersistence builds the configured state store
func openPersistence(ctx context.Context, cfg *config.Config, rdb *redis.Client, log *zap.Logger) (persistence.Store, *sql.DB, error) {
	switch cfg.Persistence.Backend {
	case "redis":
		return persistence.NewRedisStore(rdb, cfg.Persistence.Prefix), nil, nil
	case "postgres":
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Database health check", zap.Any("health", database.Health(ctx, db)))
		if err := database.RunMigrations(db, log); err != nil {
			db.Close()
			return nil, nil, err
		}
		return persistence.NewPostgresStore(db, cfg.Persistence.Prefix), db, nil
	case "memory", "":
		return persistence.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown persistence backend %q", cfg.Persistence.Backend)
	}
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting storefront API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("persistence", cfg.Persistence.Backend),
	)

	ctx := context.Background()

	rdb, err := openRedis(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}
	persist, db, err := openPersistence(ctx, cfg, rdb, log)
	if err != nil {
		log.Fatal("Failed to open state store", zap.Error(err))
	}

	broker := notify.NewBroker(log.Named("notify"))
	client := marketplace.NewClient(marketplace.Config{
		BaseURL:     cfg.Marketplace.BaseURL,
		Timeout:     cfg.Marketplace.Timeout,
		MaxFailures: cfg.Marketplace.BreakerMaxFailures,
		OpenTimeout: cfg.Marketplace.BreakerOpenTimeout,
	}, nil, log.Named("marketplace"))

	resolver := location.NewResolver(
		client,
		location.NewIPClient(cfg.Geo.IPLookupURL, &http.Client{Timeout: 5 * time.Second}),
		location.Options{DeviceTimeout: cfg.Geo.DeviceTimeout, MaxFixAge: cfg.Geo.MaxFixAge},
		broker,
		log.Named("location"),
	)
	cache := catalog.NewCache(client, broker, log.Named("catalog"))
	store := mutation.NewStore(client, broker, log)
	sync := orchestrator.New(resolver, cache, store, persist, broker, log.Named("orchestrator"))

	if err := sync.Restore(ctx); err != nil {
		log.Fatal("Failed to restore session state", zap.Error(err))
	}

	runCtx, stopRun := context.WithCancel(ctx)
	go sync.Run(runCtx)

	srv := server.NewServer(cfg, log, server.Dependencies{
		Orchestrator: sync,
		Resolver:     resolver,
		Cache:        cache,
		Store:        store,
		Broker:       broker,
		Persist:      persist,
		BreakerState: client.BreakerState,
		Redis:        rdb,
		DB:           db,
	})

	done := make(chan bool, 1)
	go gracefulShutdown(srv, sync, stopRun, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}
