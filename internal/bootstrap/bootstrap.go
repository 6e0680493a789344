// Package bootstrap builds the pipeline and its dependencies from config.
// Shared by the worker and the scrape CLI.
package bootstrap

import (
	"context"
	"fmt"
	"strconv"

	"nba_salaries/ingestion/internal/cache"
	"nba_salaries/ingestion/internal/client"
	"nba_salaries/ingestion/internal/config"
	"nba_salaries/ingestion/internal/export"
	"nba_salaries/ingestion/internal/pipeline"
	"nba_salaries/ingestion/internal/reconcile"
	"nba_salaries/ingestion/internal/repository"

	"github.com/rs/zerolog/log"
)

// Sink is the opened persistence target. DB is set only for the postgres
// sink.
type Sink struct {
	reconcile.Sink
	DB *repository.Database
}

// OpenSink opens the sink selected by cfg.Sink
func OpenSink(ctx context.Context, cfg *config.Config) (*Sink, error) {
	switch cfg.Sink {
	case config.SinkCSV:
		csvSink, err := export.NewCSVSink(cfg.ExportDir)
		if err != nil {
			return nil, err
		}
		log.Info().Str("dir", cfg.ExportDir).Msg("Writing to CSV export sink")
		return &Sink{Sink: csvSink}, nil

	case config.SinkPostgres:
		db, err := repository.NewDatabase(ctx, repository.Config{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DatabaseMaxConns,
		})
		if err != nil {
			return nil, err
		}
		return &Sink{Sink: db, DB: db}, nil

	default:
		return nil, &config.ConfigError{Field: "SINK", Reason: fmt.Sprintf("unsupported sink %q", cfg.Sink)}
	}
}

// OpenCache connects the Redis page cache when CACHE_TTL_PAGE is set. A
// connection failure is logged and the pipeline runs without a cache.
func OpenCache(cfg *config.Config) *cache.RedisCache {
	if !cfg.CacheEnabled() {
		return nil
	}

	redisCache, err := cache.NewRedisCache(cache.Config{
		Host:     cfg.RedisHost,
		Port:     strconv.Itoa(cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.CacheTTLPage,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
		return nil
	}
	return redisCache
}

// NewFetcher builds the HTTP fetcher from cfg
func NewFetcher(cfg *config.Config) *client.Fetcher {
	return client.NewFetcher(client.FetcherConfig{
		Timeout:   cfg.FetchTimeout,
		RetryBase: cfg.FetchRetryBase,
		Headers:   client.DefaultHeaders(),
	})
}

// NewPipeline wires fetcher, optional cache and sink into a pipeline. sink
// may be nil for a dry run.
func NewPipeline(cfg *config.Config, sink reconcile.Sink, pageCache *cache.RedisCache, dryRun bool) *pipeline.Pipeline {
	var opts []pipeline.Option
	if pageCache != nil {
		opts = append(opts, pipeline.WithCache(pageCache))
	}

	return pipeline.New(pipeline.Config{
		URL:         cfg.SourceURL,
		Year:        cfg.SeasonYear,
		MaxAttempts: cfg.FetchMaxAttempts,
		DryRun:      dryRun,
	}, NewFetcher(cfg), sink, opts...)
}

// Runtime holds everything one process needs to run the pipeline
type Runtime struct {
	Pipeline *pipeline.Pipeline
	// DB is nil unless the postgres sink is open
	DB    *repository.Database
	sink  *Sink
	cache *cache.RedisCache
}

// Setup opens the sink and page cache and builds the pipeline. In a dry run
// no sink is opened and DATABASE_URL is never used.
func Setup(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{}

	var sink reconcile.Sink
	if !cfg.DryRun {
		opened, err := OpenSink(ctx, cfg)
		if err != nil {
			return nil, err
		}
		rt.sink = opened
		rt.DB = opened.DB
		sink = opened
	} else {
		log.Info().Msg("Dry run: no sink opened, nothing will be written")
	}

	rt.cache = OpenCache(cfg)
	rt.Pipeline = NewPipeline(cfg, sink, rt.cache, cfg.DryRun)
	return rt, nil
}

// Close releases the sink and cache
func (rt *Runtime) Close() {
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis cache")
		}
	}
	if rt.sink != nil {
		if err := rt.sink.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close sink")
		}
	}
}
