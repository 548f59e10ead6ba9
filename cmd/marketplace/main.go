// Package main is the entry point for the marketplace category server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace/internal/cache"
	"marketplace/internal/catalog"
	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/handlers"
	"marketplace/internal/metrics"
	"marketplace/internal/middleware"
	"marketplace/internal/router"
	"marketplace/internal/session"
	"marketplace/internal/storage"
	"marketplace/internal/store"
)

func main() {
	// Load configuration from environment variables (and .env if present).
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logger: text in development, JSON everywhere else.
	slog.SetDefault(newLogger(cfg.IsDev()))

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed the development admin (no-op if users already exist).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey (session store + category response cache).
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// In non-development environments, mark cookies as Secure (HTTPS-only).
	secureCookies := !cfg.IsDev()
	sessionStore := session.NewStore(valkeyClient, secureCookies)

	// S3-compatible storage for snapshots is optional.
	var snapshots handlers.SnapshotStore
	storageClient, err := storage.New(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket)
	if err != nil {
		slog.Error("failed to initialize S3 storage", "error", err)
		os.Exit(1)
	}
	if storageClient != nil {
		snapshots = storageClient
		slog.Info("s3 storage configured", "endpoint", cfg.S3Endpoint, "bucket", storageClient.Bucket())
	} else {
		slog.Warn("s3 storage not configured, category snapshots disabled")
	}

	m := metrics.New("marketplace")
	catalogCache := cache.NewCatalogCache(valkeyClient, cfg.TreeCacheTTL)

	// The catalog service notifies listeners after every committed change.
	svc := catalog.NewService(store.NewCategoryStore(db))
	svc.OnChange(catalogCache.Invalidator())
	svc.OnChange(m.RecordCategoryOperation)

	loginLimiter := middleware.NewRateLimiter(cfg.LoginRateLimit, time.Minute)
	defer loginLimiter.Stop()
	loginLimiter.TrustProxies(cfg.TrustedProxies)
	loginLimiter.OnReject(func() { m.RecordLogin("rate_limited") })

	// 2FA codes have a budget separate from logins.
	twoFALimiter := middleware.NewRateLimiter(cfg.LoginRateLimit, time.Minute)
	defer twoFALimiter.Stop()
	twoFALimiter.TrustProxies(cfg.TrustedProxies)
	twoFALimiter.OnReject(func() { m.RecordLogin("2fa_rate_limited") })

	// Set up the Chi router with all middleware and routes.
	r := router.New(router.Deps{
		Sessions:     sessionStore,
		Admin:        handlers.NewAdmin(svc, snapshots),
		Auth:         handlers.NewAuth(sessionStore, store.NewUserStore(db), m),
		Public:       handlers.NewPublic(svc, catalogCache, m),
		Metrics:      m,
		LoginLimiter: loginLimiter,
		TwoFALimiter: twoFALimiter,
		DB:           db,
		SecureCookie: secureCookies,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

// newLogger returns a debug-level text logger in development and an
// info-level JSON logger otherwise.
func newLogger(dev bool) *slog.Logger {
	if dev {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
