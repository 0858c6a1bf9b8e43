package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dunelink/dunelink/internal/archive"
	"github.com/dunelink/dunelink/internal/cache"
	"github.com/dunelink/dunelink/internal/client"
	"github.com/dunelink/dunelink/internal/config"
	"github.com/dunelink/dunelink/internal/events"
	"github.com/dunelink/dunelink/internal/executor"
	"github.com/dunelink/dunelink/internal/service"
	"github.com/dunelink/dunelink/internal/store"
	"github.com/dunelink/dunelink/pkg/migrations"
)

const memoryCacheCapacity = 1024

// newQueryService assembles the query service from the configuration. The returned
// function releases every resource that was opened.
func newQueryService(ctx context.Context, cfg *config.Config, withHistory bool) (*service.QueryService, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				zap.S().Warnw("failed to release resource", "error", err)
			}
		}
	}

	if cfg.Dune.APIKey == "" {
		zap.S().Warn("DUNE_API_KEY is not set, remote calls will be rejected")
	}

	producer := newEventProducer(cfg)
	closers = append(closers, producer.Close)

	dune := client.NewDuneClient(cfg.Dune.BaseURL, cfg.Dune.APIKey, client.WithTimeout(cfg.Dune.RequestTimeout))
	exec := executor.New(dune,
		executor.WithPollInterval(cfg.Dune.PollInterval),
		executor.WithJitter(cfg.Dune.PollJitter),
		executor.WithMaxAttempts(cfg.Dune.MaxPollAttempts),
		executor.WithMaxWait(cfg.Dune.MaxWait),
		executor.WithEventWriter(producer),
	)

	var opts []service.Option

	if withHistory {
		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		st := store.NewStore(db)
		closers = append(closers, st.Close)

		if err := migrations.MigrateStore(db, ""); err != nil {
			cleanup()
			return nil, nil, err
		}
		opts = append(opts, service.WithStore(st))
	}

	if cfg.Cache.TTL > 0 {
		c, err := newCache(ctx, cfg)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, c.Close)
		opts = append(opts, service.WithCache(c, cfg.Cache.TTL))
	}

	if cfg.Archive.Endpoint != "" {
		a, err := archive.NewMinioArchiver(
			archive.WithEndpoint(cfg.Archive.Endpoint),
			archive.WithBucket(cfg.Archive.Bucket),
			archive.WithCredentials(cfg.Archive.AccessKey, cfg.Archive.SecretKey),
			archive.WithSSL(cfg.Archive.UseSSL),
		)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if err := a.EnsureBucket(ctx); err != nil {
			zap.S().Warnw("archive bucket is not ready, uploads may fail", "error", err)
		}
		opts = append(opts, service.WithArchiver(a))
	}

	return service.NewQueryService(exec, opts...), cleanup, nil
}

func newEventProducer(cfg *config.Config) *events.EventProducer {
	if len(cfg.Events.Brokers) > 0 {
		zap.S().Infow("publishing events to kafka", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
		return events.NewEventProducer(events.NewKafkaWriter(cfg.Events.Brokers...), events.WithOutputTopic(cfg.Events.Topic))
	}
	return events.NewEventProducer(&events.StdoutWriter{}, events.WithOutputTopic(cfg.Events.Topic))
}

func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	if cfg.Cache.RedisAddr == "" {
		return cache.NewMemoryCache(memoryCacheCapacity), nil
	}
	c, err := cache.DialRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisDB)
	if err != nil {
		return nil, errors.Join(errors.New("failed to initialize the result cache"), err)
	}
	return c, nil
}

const historyPruneInterval = time.Hour

// pruneHistory drops executions older than retention once at startup and then
// hourly until ctx is done.
func pruneHistory(ctx context.Context, svc *service.QueryService, retention time.Duration) error {
	if retention <= 0 {
		return nil
	}

	prune := func() {
		if _, err := svc.PruneHistory(ctx, retention); err != nil && ctx.Err() == nil {
			zap.S().Named("history").Warnw("failed to prune execution history", "retention", retention, "error", err)
		}
	}

	prune()
	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			prune()
		}
	}
}
