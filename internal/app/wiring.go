package app

import (
	"context"
	"fmt"

	"github.com/vitos/crypto_watch/internal/config"
	"github.com/vitos/crypto_watch/internal/domain"
	"github.com/vitos/crypto_watch/internal/infrastructure/backend"
	"github.com/vitos/crypto_watch/internal/infrastructure/coingecko"
	"github.com/vitos/crypto_watch/internal/infrastructure/storage"
	"go.uber.org/zap"
)

// BackendClients returns one client per configured backend URL, primary first.
func BackendClients(cfg *config.Config, logger *zap.Logger) []*backend.Client {
	urls := append([]string{cfg.Backend.BaseURL}, cfg.Backend.FallbackURLs...)
	clients := make([]*backend.Client, 0, len(urls))
	for i, u := range urls {
		name := "backend"
		if i > 0 {
			name = fmt.Sprintf("backend-%d", i+1)
		}
		clients = append(clients, backend.NewClient(u,
			backend.WithName(name),
			backend.WithTimeout(cfg.Backend.Timeout()),
			backend.WithLogger(logger),
		))
	}
	return clients
}

// MarketSources lists market sources in priority order: every backend, then
// the public fallback when enabled.
func MarketSources(cfg *config.Config, clients []*backend.Client, logger *zap.Logger) []domain.MarketSource {
	sources := make([]domain.MarketSource, 0, len(clients)+1)
	for _, c := range clients {
		sources = append(sources, c)
	}
	if cfg.Fallback.Enabled {
		sources = append(sources, coingecko.NewSource(
			cfg.Fallback.BaseURL,
			cfg.Fallback.VsCurrency,
			cfg.Fallback.PerPage,
			cfg.Polling.SourceTimeout(),
			logger,
		))
	}
	return sources
}

// OpenStore opens the durable key-value store selected by storage.driver.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (domain.KeyValueStore, error) {
	switch cfg.Driver {
	case "redis":
		store, err := storage.NewRedisStore(ctx, storage.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite", "":
		store, err := storage.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
