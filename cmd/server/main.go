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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/fetchwise/product-scraper/internal/api"
	"github.com/fetchwise/product-scraper/internal/browser"
	"github.com/fetchwise/product-scraper/internal/cache"
	"github.com/fetchwise/product-scraper/internal/config"
	"github.com/fetchwise/product-scraper/internal/database"
	"github.com/fetchwise/product-scraper/internal/events"
	"github.com/fetchwise/product-scraper/internal/pipeline"
	"github.com/fetchwise/product-scraper/internal/proxy"
	"github.com/fetchwise/product-scraper/internal/ratelimit"
	"github.com/fetchwise/product-scraper/internal/worker"
	"github.com/fetchwise/product-scraper/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		log.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	scrapeCache, err := cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Error("failed to connect result cache", "error", err)
		os.Exit(1)
	}
	defer scrapeCache.Close()

	factory, err := browser.NewFactory(log, cfg.Browser.Headless)
	if err != nil {
		log.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer factory.Close()

	proxyPool := proxy.NewPool(cfg.Proxy.URLs)

	pipe := pipeline.New(factory, proxyPool, scrapeCache, log, pipeline.Options{
		MaxRotations:  cfg.Scraper.MaxRotations,
		NavTimeout:    cfg.Browser.NavTimeout,
		ContentFloor:  cfg.Browser.ContentFloor,
		CacheTTL:      cfg.Scraper.CacheTTL,
		BlockImages:   cfg.Scraper.BlockImages,
		MinImageWidth: cfg.Scraper.MinImageWidth,
	})

	publisher := events.NewPublisher(db, log)

	relay := events.NewRelay(db, redisClient, log, events.RelayConfig{
		PollInterval: cfg.Relay.PollInterval,
		BatchSize:    cfg.Relay.BatchSize,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("relay stopped with error", "error", err)
		}
	}()

	taskRepo := database.NewTaskRepository(db)
	productRepo := database.NewProductRepository(db)

	limiter := ratelimit.NewAdaptiveRateLimiter(cfg.Scraper.RateLimitMin, cfg.Scraper.RateLimitMax)

	pool := worker.NewPool(pipe, worker.NewClaimSource(taskRepo, cfg.Scraper.PollInterval), log, worker.Options{
		Workers:   cfg.Scraper.Workers,
		Limiter:   limiter,
		Tasks:     taskRepo,
		Publisher: publisher,
	})
	pool.Start(ctx)

	handlers := api.NewHandlers(pipe, taskRepo, productRepo, log, api.Options{
		Checks: map[string]api.ComponentChecker{
			"database": db.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
			"browser": factory.Ping,
		},
		Outbox: relay,
	})

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handlers.Health)
	r.Mount("/api/v1", handlers.Routes())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.WriteTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("server starting", "addr", server.Addr, "workers", cfg.Scraper.Workers)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}

	pool.Wait()
	log.Info("server stopped")
}
