// Package control wires the application together and owns its lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/nutriscan/internal/api"
	"github.com/vietddude/nutriscan/internal/core/config"
	"github.com/vietddude/nutriscan/internal/infra/cache"
	"github.com/vietddude/nutriscan/internal/infra/gemini"
	"github.com/vietddude/nutriscan/internal/infra/nutrition"
	"github.com/vietddude/nutriscan/internal/service"
)

// App is the main application struct that manages the service lifecycle.
type App struct {
	cfg       *config.AppConfig
	gemini    *gemini.Client
	nutrition *nutrition.Client
	store     cache.Store
	analyzer  *service.Analyzer
	server    *api.Server
	log       *slog.Logger
}

// NewApp creates a new App with all dependencies initialized.
func NewApp(cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	log := slog.Default().With("component", "app")

	store, health, err := newStore(cfg, log)
	if err != nil {
		return nil, err
	}

	geminiClient := gemini.NewClient(cfg.Gemini)
	nutritionClient := nutrition.NewClient(cfg.Nutrition)

	analyzer := service.NewAnalyzer(geminiClient, nutritionClient, store, service.Config{
		Retry:            cfg.Retry.Policy(),
		ModelTimeout:     cfg.Gemini.Timeout,
		NutritionTimeout: cfg.Nutrition.Timeout,
		CacheTTL:         cfg.Cache.TTL,
		Coalesce:         cfg.Cache.Coalesce,
		Strict:           cfg.Analysis.Strict,
	}, slog.Default().With("component", "analyzer"))

	server := api.NewServer(analyzer, health, api.Options{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, slog.Default().With("component", "api"))

	return &App{
		cfg:       cfg,
		gemini:    geminiClient,
		nutrition: nutritionClient,
		store:     store,
		analyzer:  analyzer,
		server:    server,
		log:       log,
	}, nil
}

// newStore connects to Redis when configured. An unreachable Redis is not
// fatal: the in-process LRU takes over and the returned health check keeps
// reporting the Redis failure.
func newStore(cfg *config.AppConfig, log *slog.Logger) (cache.Store, api.Pinger, error) {
	var redisErr error
	if cfg.Redis.URL != "" {
		rs, err := cache.NewRedisStore(cfg.Redis)
		if err == nil {
			log.Info("Using Redis cache")
			return rs, rs, nil
		}
		redisErr = err
		log.Warn("Redis unavailable, falling back to in-memory cache", "error", err)
	}

	ms, err := cache.NewMemoryStore(cfg.Cache.Size)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init memory cache: %w", err)
	}
	log.Info("Using in-memory cache", "size", cfg.Cache.Size)
	if redisErr != nil {
		return ms, fallbackCache{cause: redisErr}, nil
	}
	return ms, ms, nil
}

// fallbackCache is the health check of a memory store standing in for Redis.
type fallbackCache struct {
	cause error
}

func (f fallbackCache) Ping(context.Context) error {
	return fmt.Errorf("redis unavailable, using in-memory cache: %w", f.cause)
}

// Analyzer returns the scan service.
func (a *App) Analyzer() *service.Analyzer {
	return a.analyzer
}

// Handler returns the HTTP handler, for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Start starts the HTTP server in the background.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("API server failed", "error", err)
		}
	}()

	p := a.cfg.Retry.Policy()
	a.log.Info("NutriScan started",
		"port", a.cfg.Server.Port,
		"model", a.gemini.Model(),
		"max_retries", p.MaxRetries,
		"strict", a.cfg.Analysis.Strict,
	)
	return nil
}

// Stop shuts the server down and releases all clients.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping NutriScan...")

	var errs []error
	if err := a.server.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop server: %w", err))
	}
	if err := a.gemini.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close gemini: %w", err))
	}
	if err := a.nutrition.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close nutrition: %w", err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close cache", "error", err)
	}
	return errors.Join(errs...)
}
