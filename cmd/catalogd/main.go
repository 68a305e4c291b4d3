package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	app "github.com/quickshop/catalog/internal/app"
	"github.com/quickshop/catalog/internal/app/httpapi"
	"github.com/quickshop/catalog/internal/app/metrics"
	"github.com/quickshop/catalog/internal/app/storage/postgres"
	"github.com/quickshop/catalog/internal/cache"
	"github.com/quickshop/catalog/internal/config"
	"github.com/quickshop/catalog/internal/middleware"
	"github.com/quickshop/catalog/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("main").WithError(err).Error("load configuration")
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}).WithField("component", "main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores := app.Stores{}
	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.WithError(err).Error("open database")
			os.Exit(1)
		}
		defer db.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		pingCancel()
		if err != nil {
			log.WithError(err).Error("ping database")
			os.Exit(1)
		}

		pg := postgres.New(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.WithError(err).Error("ensure database schema")
			os.Exit(1)
		}

		stores = app.Stores{Products: pg, Users: pg, Uploads: pg, Events: pg}
		log.Info("using postgres store")
	} else {
		log.Info("no database configured, using in-memory store")
	}

	opts := app.Options{
		JWTSecret:      cfg.Auth.Secret,
		TokenTTL:       cfg.Auth.TokenTTL.Std(),
		UploadDir:      cfg.Uploads.Dir,
		UploadMaxBytes: cfg.Uploads.MaxBytes,
		OutboxInterval: cfg.Workers.OutboxInterval.Std(),
		SweepSchedule:  cfg.Workers.SweepSchedule,
		EventRetention: cfg.Workers.EventRetention.Std(),
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			log.WithError(err).Warn("redis unreachable, product cache disabled")
		} else {
			defer client.Close()
			pc := cache.NewProductCache(client, cfg.Redis.TTL.Std(), nil)
			opts.Cache = pc
			opts.Reserver = pc
			log.Info("redis product cache enabled")
		}
	}

	application, err := app.New(stores, opts, nil)
	if err != nil {
		log.WithError(err).Error("initialise application")
		os.Exit(1)
	}

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start background services")
		os.Exit(1)
	}

	auth := middleware.NewAuthMiddleware(application.Users, nil, []string{
		"/",
		"/healthz",
		"/metrics",
		"/auth/register",
		"/auth/token",
	})
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, nil)
	limiter.StartCleanup(10 * time.Minute)
	cors := middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins)
	tracing := middleware.NewTracingMiddleware(nil)

	var handler http.Handler = httpapi.NewHandler(application)
	handler = limiter.Handler(handler)
	handler = auth.Handler(handler)
	handler = cors.Handler(handler)
	handler = metrics.InstrumentHandler(handler)
	handler = tracing.Handler(handler)

	// Read/write timeouts are left unset so websocket connections on
	// /ws/echo are not cut off mid-session. Handlers enforce their own
	// deadlines.
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadTimeout.Std(),
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server error")
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("stop background services")
	}
	log.Info("stopped")
}
