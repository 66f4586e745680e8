package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pricepilot/basket-scraper/internal/api"
	"github.com/pricepilot/basket-scraper/internal/browser"
	"github.com/pricepilot/basket-scraper/internal/config"
	"github.com/pricepilot/basket-scraper/internal/images"
	"github.com/pricepilot/basket-scraper/internal/progress"
	"github.com/pricepilot/basket-scraper/internal/ratelimit"
	"github.com/pricepilot/basket-scraper/internal/scraper"
	"github.com/pricepilot/basket-scraper/internal/selectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	selCfg, err := selectors.Load(cfg.Selectors.Path)
	if err != nil {
		logger.Error("failed to load selector config", "path", cfg.Selectors.Path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      browser.DefaultOptions().UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		Locale:         cfg.Browser.Locale,
		TimezoneID:     cfg.Browser.TimezoneID,
		Latitude:       cfg.Browser.Latitude,
		Longitude:      cfg.Browser.Longitude,
	})
	if err != nil {
		logger.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	store, closeStore, err := newProgressStore(ctx, cfg.Progress)
	if err != nil {
		logger.Error("failed to initialize progress store", "error", err)
		os.Exit(1)
	}
	defer closeStore()
	reporter := progress.NewReporter(store)

	fetcher := images.NewFetcher(images.Options{
		Dir:       cfg.Images.Dir,
		WebPrefix: cfg.Images.WebPrefix,
		Workers:   cfg.Images.Workers,
		Timeout:   cfg.Images.Timeout,
	}, logger)

	orch := scraper.NewOrchestrator(b, selCfg, fetcher, reporter, scraper.OrchestratorOptions{
		MaxAlternatives: cfg.Scraper.MaxAlternatives,
		Pacer:           ratelimit.NewSimpleRateLimiter(cfg.Scraper.RateLimitMin, cfg.Scraper.RateLimitMax),
	}, logger)

	handlers := api.NewHandlers(orch, reporter, api.Options{
		MaxStorefronts:     cfg.Scraper.MaxStorefronts,
		MaxProductsPerItem: cfg.Scraper.MaxProductsPerItem,
		OutputPath:         cfg.Scraper.OutputPath,
	}, logger)

	router := api.NewRouter(handlers, cfg.Images.Dir, cfg.Images.WebPrefix)

	server := &http.Server{
		Addr:        net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// Scrape responses and progress streams outlive any fixed write
		// deadline; slow-client protection comes from ReadTimeout and the
		// idle timeout instead.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func newProgressStore(ctx context.Context, cfg config.ProgressConfig) (progress.Store, func(), error) {
	if cfg.Backend != "redis" {
		return progress.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}
	return progress.NewRedisStore(client), func() { client.Close() }, nil
}
