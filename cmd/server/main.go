package main

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

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/groupledger/internal/auth"
	"github.com/mmynk/groupledger/internal/cache"
	"github.com/mmynk/groupledger/internal/config"
	"github.com/mmynk/groupledger/internal/middleware"
	"github.com/mmynk/groupledger/internal/service"
	"github.com/mmynk/groupledger/internal/storage/sqlstore"
	"github.com/mmynk/groupledger/pkg/logging"
	"github.com/mmynk/groupledger/pkg/tracing"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	shutdownTracing, err := tracing.Setup(cfg.Tracing.Exporter, os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("Failed to flush traces", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("Storage initialized", "driver", cfg.Database.Driver)

	var balances cache.BalanceCache = cache.NopCache{}
	if cfg.CacheEnabled() {
		redisCache, err := cache.NewRedisCache(ctx, cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			slog.Warn("Balance cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			defer redisCache.Close()
			balances = redisCache
			slog.Info("Balance cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Cache.TTL)
		}
	}

	jwtManager := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL)
	svcs := service.New(store, auth.NewPasswordAuthenticator(store), jwtManager, balances)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(registry)

	interceptors := connect.WithInterceptors(
		middleware.TracingInterceptor(),
		metrics.Interceptor(),
		middleware.RequireAuth(jwtManager, service.PublicProcedures()...),
		middleware.LoggingInterceptor(),
	)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Connect-Protocol-Version", "Connect-Timeout-Ms"},
		ExposedHeaders:   []string{"Connect-Protocol-Version", "Connect-Timeout-Ms"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	for _, route := range svcs.Routes(interceptors) {
		r.Handle(route.Path+"*", route.Handler)
	}
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		// Cleartext HTTP/2 for gRPC clients.
		Handler:           h2c.NewHandler(r, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", srv.Addr, "url", fmt.Sprintf("http://localhost%s", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg config.DatabaseConfig) (*sqlstore.Store, error) {
	var store *sqlstore.Store
	var err error
	if cfg.Driver == sqlstore.DriverSQLite {
		store, err = sqlstore.New(cfg.DSN)
	} else {
		store, err = sqlstore.Open(cfg.Driver, cfg.DSN)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}
