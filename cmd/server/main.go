package main

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-marketplace/internal/adapter/api/rest"
	"go-marketplace/internal/adapter/cache/redis"
	"go-marketplace/internal/adapter/storage"
	"go-marketplace/internal/config"
	"go-marketplace/internal/core/ports"
	"go-marketplace/internal/core/service"
	"go-marketplace/internal/observability"
)

const (
	dbStatsInterval = 15 * time.Second
	janitorInterval = time.Minute
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load .env file
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, relying on environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init Tracing
	tpShutdown, err := observability.InitTracerProvider(ctx, "favorites-service", cfg.OtelExporterEndpoint)
	if err != nil {
		logger.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := tpShutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", "error", err)
		}
	}()

	backend, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	// Run Migrations (Apply on Startup)
	if err := backend.Migrator.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	observability.StartDBStatsCollector(ctx, backend.Stats, dbStatsInterval)

	// The shared id-set cache is optional. Without it every hydration reads the store.
	var store ports.FavoriteStore = observability.NewInstrumentedStore(backend.Favorites)
	if cfg.RedisAddr != "" {
		redisAdapter := redis.NewAdapter(cfg.RedisAddr, cfg.CacheTTL)
		defer redisAdapter.Close()
		if err := redisAdapter.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, continuing with store reads", "addr", cfg.RedisAddr, "error", err)
		}
		store = service.NewCachedStore(store, observability.NewInstrumentedIDSetCache(redisAdapter), logger)
	}

	// Service Init
	cache := service.NewFavoriteCache(store, logger, 0)
	engine := service.NewSyncEngine(cache, store, logger, cfg.MutationTimeout)
	go engine.RunJanitor(ctx, janitorInterval, cfg.SessionIdle)

	authSvc := service.NewAuthService(backend.Users, cfg.JWTSecret)
	listingSvc := service.NewListingService(backend.Listings, logger)

	// Init Handlers
	favHandler := rest.NewHandler(observability.NewInstrumentedSync(engine), listingSvc, logger)
	authHandler := rest.NewAuthHandler(authSvc, engine, logger)

	router := rest.NewRouter(favHandler, authHandler, rest.RouterOptions{
		Verifier:       authSvc,
		ToggleLimiter:  rest.NewToggleLimiter(cfg.ToggleRateLimit, int(math.Ceil(cfg.ToggleRateLimit*2))),
		AllowedOrigins: cfg.CORSOrigins,
	}, rest.RequestID, rest.Logger(logger), observability.Middleware)

	// Note: Usually /metrics is on a separate admin port or protected, adding to main mux for simplicity
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Starting server", "addr", srv.Addr, "env", cfg.AppEnv, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Shutdown waits for toggle handlers, so nothing is left in flight here.
	if n := engine.Pending(); n > 0 {
		logger.Warn("favorite mutations still in flight at exit", "count", n)
	}
	logger.Info("Server exited")
}
