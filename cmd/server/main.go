package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pricescout/backend/config"
	httpDelivery "github.com/pricescout/backend/internal/delivery/http"
	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/cache"
	"github.com/pricescout/backend/internal/infrastructure/provider"
	"github.com/pricescout/backend/internal/usecase"
	"github.com/pricescout/backend/internal/version"
	"github.com/pricescout/backend/pkg/logger"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pricescout-backend: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.Server.Environment)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting PriceScout backend",
		zap.String("version", version.Version),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache", cfg.Cache.Type),
		zap.Duration("cache_ttl", cfg.Cache.TTL))

	// Initialize infrastructure dependencies
	var searchCache domain.CacheRepository
	if cfg.Cache.Type == "memory" && cfg.Cache.TTL > 0 {
		memoryCache := cache.NewMemoryCacheWithInterval(cfg.Cache.CleanupInterval)
		defer memoryCache.Close()
		searchCache = memoryCache
	}

	client := provider.NewClient(provider.ClientConfig{
		BaseURL:           cfg.Provider.BaseURL,
		APIKey:            cfg.Provider.APIKey,
		Timeout:           cfg.Provider.Timeout,
		RequestsPerSecond: cfg.Provider.RequestsPerSecond,
		Burst:             cfg.Provider.Burst,
		MaxAttempts:       cfg.Provider.MaxAttempts,
	}, log)

	// Enable debug mode in development environment
	if cfg.IsDevelopment() {
		client.SetDebug(true)
	}

	if cfg.Provider.APIKey == "" {
		log.Info("provider configured without API key", zap.String("base_url", cfg.Provider.BaseURL))
	} else {
		log.Info("provider configured", zap.String("base_url", cfg.Provider.BaseURL))
	}

	// Initialize usecase layer
	searchService := usecase.NewSearchService(
		client,
		searchCache,
		provider.NewNormalizer(),
		log,
		usecase.SearchServiceConfig{
			CacheTTL:           cfg.Cache.TTL,
			FetchTimeout:       cfg.Search.FetchTimeout,
			EnableDebugLogging: cfg.Search.EnableDebugLogging,
		},
	)

	handler := httpDelivery.NewHandler(searchService, log)
	router := httpDelivery.SetupRouter(cfg, handler, log)

	// Request contexts derive from ctx so open event streams end on shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
