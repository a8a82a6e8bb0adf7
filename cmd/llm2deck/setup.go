package main

import (
	"context"
	"fmt"
	"os"

	"github.com/not-lucky/LLM2Deck/internal/backend"
	"github.com/not-lucky/LLM2Deck/internal/budget"
	"github.com/not-lucky/LLM2Deck/internal/cache"
	"github.com/not-lucky/LLM2Deck/internal/config"
	"github.com/not-lucky/LLM2Deck/internal/repository"
	"github.com/not-lucky/LLM2Deck/internal/schemas"
	"github.com/not-lucky/LLM2Deck/internal/types"
)

// stores bundles the persistence backends for one invocation. With no
// database configured everything runs in memory, which disables resume.
type stores struct {
	repo     repository.Store
	cache    cache.Store
	postgres *repository.Postgres
}

func (s *stores) Close() {
	if s.postgres != nil {
		s.postgres.Close()
	}
}

func (s *stores) persistent() bool {
	return s.postgres != nil
}

// openStores connects to Postgres when a URL is configured, creating the
// tables on first use, and falls back to in-memory stores otherwise.
func openStores(ctx context.Context, databaseURL string) (*stores, error) {
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return &stores{
			repo:  repository.NewMemory(),
			cache: cache.NewMemory(),
		}, nil
	}

	pg, err := repository.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, err
	}

	responseCache := cache.NewPostgres(pg.Pool())
	if err := responseCache.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, err
	}

	return &stores{repo: pg, cache: responseCache, postgres: pg}, nil
}

// buildBackends resolves the configured clients, wraps them with retry,
// and wires token usage into the budget guard. The merger is the named
// backend, defaulting to the first one.
func buildBackends(ctx context.Context, cfg config.Config, validator *schemas.Validator, guard *budget.Guard) (producers []backend.Client, merger backend.Client, cleanup func(), err error) {
	if len(cfg.Backends) == 0 {
		return nil, nil, nil, fmt.Errorf("no backends configured; add a 'backends' section to the config")
	}

	registry := backend.NewRegistry()
	retryCfg := backend.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.MaxRetries
	}

	onUsage := func(name, model string, usage types.TokenUsage, success bool) {
		guard.RecordUsage(name, model, usage)
	}

	var clients []backend.Client
	cleanup = func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}

	for _, bc := range cfg.Backends {
		keys := bc.Keys()
		if len(keys) == 0 {
			cleanup()
			return nil, nil, nil, fmt.Errorf("backend %q: environment variable %s holds no API key", bc.Name, bc.APIKeyEnv)
		}

		client, buildErr := registry.Resolve(ctx, backend.Settings{
			Name:       bc.Name,
			Kind:       bc.Kind,
			Model:      bc.Model,
			BaseURL:    bc.BaseURL,
			APIKeys:    keys,
			SchemaJSON: validator.SchemaJSON(),
			MaxTokens:  bc.MaxTokens,
		})
		if buildErr != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("backend %q: %w", bc.Name, buildErr)
		}
		client.SetUsageCallback(onUsage)
		clients = append(clients, backend.WithRetry(client, retryCfg))
	}

	mergerName := cfg.Merger
	if mergerName == "" {
		mergerName = cfg.Backends[0].Name
	}
	for _, client := range clients {
		if client.Name() == mergerName {
			merger = client
			break
		}
	}
	if merger == nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("merger %q is not a configured backend", mergerName)
	}

	return clients, merger, cleanup, nil
}

// estimateLines maps the configured backends onto projection lines.
func estimateLines(cfg config.Config) (producers []budget.EstimateLine, merger budget.EstimateLine) {
	mergerName := cfg.Merger
	if mergerName == "" && len(cfg.Backends) > 0 {
		mergerName = cfg.Backends[0].Name
	}
	for _, bc := range cfg.Backends {
		producers = append(producers, budget.EstimateLine{Backend: bc.Name, Model: bc.Model})
		if bc.Name == mergerName {
			merger = budget.EstimateLine{Backend: bc.Name, Model: bc.Model}
		}
	}
	return producers, merger
}

// loadMergedConfig loads the optional config file and fills defaults.
func loadMergedConfig(path string) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		if err := loaded.Validate(); err != nil {
			return cfg, err
		}
		cfg = *loaded
	}
	return cfg.MergeWithDefaults(config.Defaults()), nil
}
