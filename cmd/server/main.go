package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sifan077/SafeURL/config"
	apprepository "github.com/sifan077/SafeURL/internal/app/repository"
	appserver "github.com/sifan077/SafeURL/internal/app/server"
	appservice "github.com/sifan077/SafeURL/internal/app/service"
	"github.com/sifan077/SafeURL/internal/app/shortcode"
	"github.com/sifan077/SafeURL/internal/app/urlguard"
	"github.com/sifan077/SafeURL/internal/http/middleware"
	"github.com/sifan077/SafeURL/internal/infra/logger"
	infraNATS "github.com/sifan077/SafeURL/internal/infra/nats"
	infraPostgres "github.com/sifan077/SafeURL/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/SafeURL/internal/infra/prometheus"
	infraRedis "github.com/sifan077/SafeURL/internal/infra/redis"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	isDev := os.Getenv("APP_ENV") != "production"

	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatal("Failed to load config", zap.Error(err))
	}

	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
		Compress:    cfg.Log.Compress,
	})
	defer func() { _ = logger.Sync() }()

	log.Info("Configuration loaded successfully",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Int("redis_port", cfg.Redis.Port),
		zap.String("nats_host", cfg.NATS.Host),
		zap.Int("nats_port", cfg.NATS.Port),
		zap.String("base_url", cfg.Server.BaseURL),
		zap.Int("code_length", cfg.Link.CodeLength),
		zap.Duration("cache_ttl", cfg.Link.CacheTTL),
	)

	db, err := infraPostgres.Open(ctx, cfg.Postgres, cfg.Link.StoreTimeout)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer db.Close()

	if err := infraPostgres.Migrate(ctx, db.Gorm); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}
	log.Info("Connected to Postgres successfully")

	// The cache is optional: without Redis every resolve reads the store and
	// the create endpoint is not rate limited.
	var redisClient *goredis.Client
	if rdb, err := infraRedis.NewClient(ctx, cfg.Redis); err != nil {
		log.Warn("Redis unavailable, running without cache", zap.Error(err))
	} else {
		redisClient = rdb
		defer redisClient.Close()
		log.Info("Connected to Redis successfully")
	}

	metrics := appservice.NewMetrics(prometheus.DefaultRegisterer)
	background := appservice.NewBackground(log, metrics, cfg.Link.BackgroundTimeout)

	links := apprepository.NewLinkRepository(db.Gorm)
	cache := apprepository.NewLinkCache(redisClient)
	validator := urlguard.New(urlguard.NewNetResolver(nil), cfg.Link.DNSTimeout)
	directClicks := appservice.NewDirectClickCounter(apprepository.NewClickRepository(db.Pool))

	var clicks appservice.ClickCounter = directClicks
	var natsConn *nats.Conn
	var consumer *appservice.ClickConsumer
	if cfg.NATS.Enabled {
		conn, js, err := infraNATS.Connect(cfg.NATS, log)
		if err != nil {
			log.Warn("NATS unavailable, counting clicks directly", zap.Error(err))
		} else {
			natsConn = conn
			consumer = appservice.NewClickConsumer(js, log, directClicks, cfg.Link.StoreTimeout)
			if err := consumer.Start(ctx); err != nil {
				log.Warn("Failed to start click consumer, counting clicks directly", zap.Error(err))
				consumer = nil
			} else {
				clicks = appservice.NewClickPublisher(js)
				log.Info("Connected to NATS successfully, clicks are queued")
			}
		}
	}

	if cfg.Prometheus.Enabled {
		promServer := infraPrometheus.NewServer(cfg.Prometheus, prometheus.DefaultGatherer)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		defer func() {
			if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		}()
	}

	sweeper := appservice.NewLinkSweeper(log, links, cfg.Link.SweepInterval, cfg.Link.StoreTimeout)
	sweeper.Start()

	creator := appservice.NewLinkCreator(appservice.CreatorDeps{
		Logger:       log,
		Links:        links,
		Cache:        cache,
		Validator:    validator,
		Codes:        shortcode.New(),
		Metrics:      metrics,
		Background:   background,
		CodeLength:   cfg.Link.CodeLength,
		Retry:        appservice.RetryPolicy{MaxAttempts: cfg.Link.MaxAttempts, Backoff: cfg.Link.RetryBackoff},
		Lifetime:     cfg.Link.Lifetime,
		CacheTTL:     cfg.Link.CacheTTL,
		StoreTimeout: cfg.Link.StoreTimeout,
	})

	resolver := appservice.NewRedirectResolver(appservice.ResolverDeps{
		Logger:       log,
		Links:        links,
		Cache:        cache,
		Clicks:       clicks,
		Validator:    validator,
		Metrics:      metrics,
		Background:   background,
		CacheTTL:     cfg.Link.CacheTTL,
		StoreTimeout: cfg.Link.StoreTimeout,
		CacheTimeout: cfg.Link.CacheTimeout,
	})

	server := appserver.New(appserver.Dependencies{
		Logger:      log,
		Postgres:    db.Pool,
		Redis:       redisClient,
		Creator:     creator,
		Resolver:    resolver,
		LinkService: appservice.NewLinkService(links, cfg.Link.StoreTimeout),
		BaseURL:     cfg.Server.BaseURL,
		CacheMaxAge: cfg.Link.CacheTTL,
		RateLimit: middleware.RateLimitConfig{
			MaxRequests: cfg.Server.RateLimit,
			Window:      cfg.Server.RateWindow,
			KeyPrefix:   "ratelimit:create",
		},
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("addr", cfg.Server.Addr))
		serverErr <- server.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-serverErr:
		log.Error("Fiber server exited", zap.Error(err))
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to shut down HTTP server cleanly", zap.Error(err))
	}
	sweeper.Stop()
	if err := background.Wait(shutdownCtx); err != nil {
		log.Warn("Background tasks still running at shutdown", zap.Error(err))
	}
	if consumer != nil {
		select {
		case <-consumer.Done():
		case <-shutdownCtx.Done():
			log.Warn("Click consumer did not stop in time")
		}
	}
	if natsConn != nil {
		if err := natsConn.Drain(); err != nil {
			log.Warn("Failed to drain NATS connection", zap.Error(err))
		}
	}

	log.Info("SafeURL stopped")
}
