// Package bootstrap assembles the sync engine and its adapters from Config.
// It is shared by the long-running service and the one-shot CLI.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/region-sentinel/internal/adapter/kafka"
	"github.com/couchcryptid/region-sentinel/internal/adapter/memstore"
	"github.com/couchcryptid/region-sentinel/internal/adapter/overpass"
	"github.com/couchcryptid/region-sentinel/internal/adapter/redisstore"
	"github.com/couchcryptid/region-sentinel/internal/config"
	"github.com/couchcryptid/region-sentinel/internal/domain"
	"github.com/couchcryptid/region-sentinel/internal/observability"
	"github.com/couchcryptid/region-sentinel/internal/regionsync"
	"github.com/jonboulle/clockwork"
)

// Components is a fully wired engine plus everything that must be closed
// on shutdown.
type Components struct {
	Engine  *regionsync.Engine
	Store   domain.FeatureStore
	Source  domain.FeatureSource
	closers []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

// Build wires the feature source, store, optional notifier and engine. A
// nil clock uses real time.
func Build(ctx context.Context, cfg *config.Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) (*Components, error) {
	c := &Components{}

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.Store = store
	if closer, ok := store.(io.Closer); ok {
		c.closers = append(c.closers, namedCloser{"store", closer})
	}

	c.Source = newSource(cfg, clock, logger, metrics)

	opts := regionsync.Options{
		Clock:          clock,
		HandshakeDelay: cfg.HandshakeDelay,
		PruneStale:     cfg.PruneStale,
		CellResolution: cfg.H3Resolution,
	}
	if cfg.KafkaEnabled {
		p := kafka.NewPublisher(cfg, logger)
		opts.Notifier = p
		c.closers = append(c.closers, namedCloser{"kafka publisher", p})
		logger.Info("sync notifications enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	c.Engine = regionsync.New(c.Source, c.Store, logger, metrics, opts)
	return c, nil
}

// Close releases every adapter, logging failures.
func (c *Components) Close(logger *slog.Logger) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].c.Close(); err != nil {
			logger.Error(c.closers[i].name+" close error", "error", err)
		}
	}
}

func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.FeatureStore, error) {
	if cfg.RedisAddr == "" {
		logger.Info("using in-memory feature store")
		return memstore.New(), nil
	}
	s, err := redisstore.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
	if err != nil {
		return nil, fmt.Errorf("open redis store: %w", err)
	}
	logger.Info("using redis feature store", "addr", cfg.RedisAddr, "db", cfg.RedisDB, "prefix", cfg.RedisPrefix)
	return s, nil
}

func newSource(cfg *config.Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) domain.FeatureSource {
	client := overpass.NewClient(overpass.Config{
		URL:           cfg.OverpassURL,
		Timeout:       cfg.OverpassTimeout,
		RatePerSecond: cfg.OverpassRate,
		Burst:         cfg.OverpassBurst,
	}, logger, metrics)
	if cfg.OverpassCacheSize == 0 {
		return client
	}
	logger.Info("overpass cache enabled", "size", cfg.OverpassCacheSize, "ttl", cfg.OverpassCacheTTL)
	return overpass.NewCachedSource(client, cfg.OverpassCacheSize, cfg.OverpassCacheTTL, clock, metrics)
}
