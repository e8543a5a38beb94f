package main

import (
	"fmt"
	"log/slog"

	"github.com/policypal/palgraph"
	"github.com/policypal/palgraph/internal/config"
	"github.com/policypal/palgraph/internal/logging"
	"github.com/policypal/palgraph/pkg/adapters/file"
	"github.com/policypal/palgraph/pkg/adapters/memory"
	"github.com/policypal/palgraph/pkg/adapters/openai"
	"github.com/policypal/palgraph/pkg/adapters/redis"
	"github.com/policypal/palgraph/pkg/adapters/tavily"
	"github.com/policypal/palgraph/pkg/persistence/middleware"
	"github.com/policypal/palgraph/pkg/ports"
	"github.com/spf13/cobra"
)

func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(level, cfg.LogJSON), nil
}

// buildEngine wires an Engine from configuration. The returned cleanup
// releases backend connections and is safe to call once.
func buildEngine(cfg config.Config, logger *slog.Logger) (*palgraph.Engine, func(), error) {
	cleanup := func() {}

	opts := []palgraph.Option{
		palgraph.WithLogger(logger),
		palgraph.WithLockTTL(cfg.LockTTL),
	}

	var store ports.SnapshotStore
	switch cfg.Store.Backend {
	case config.StoreMemory:
		store = memory.NewStore()
	case config.StoreFile:
		store = file.New(cfg.Store.Path)
	case config.StoreRedis:
		rs := redis.New(cfg.Store.Redis.Address, cfg.Store.Redis.Password, cfg.Store.Redis.DB,
			redis.WithTTL(cfg.Store.TTL))
		store = rs
		opts = append(opts, palgraph.WithLocker(redis.NewLocker(rs.Client(), "")))
		cleanup = func() { _ = rs.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	var mws []middleware.Middleware
	if len(cfg.Store.PIIPatterns) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.Store.PIIPatterns))
	}
	if key, err := cfg.Store.EncryptionKeyBytes(); err != nil {
		cleanup()
		return nil, nil, err
	} else if key != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}
	opts = append(opts, palgraph.WithStore(middleware.Chain(store, mws...)))

	if cfg.Tavily.APIKey != "" {
		opts = append(opts, palgraph.WithWebSearcher(tavily.New(cfg.Tavily.APIKey, cfg.Tavily.BaseURL, logger)))
	}

	classifier := openai.New(openai.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		TaskModels: cfg.OpenAI.TaskModels,
	}, logger)

	engine, err := palgraph.New(classifier, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return engine, cleanup, nil
}
