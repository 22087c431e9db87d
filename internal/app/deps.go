package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fiam/dboembed/internal/config"
	"github.com/fiam/dboembed/internal/db"
	"github.com/fiam/dboembed/internal/handlers"
	"github.com/fiam/dboembed/internal/metrics"
	"github.com/fiam/dboembed/internal/middleware"
	"github.com/fiam/dboembed/internal/oembed"
	"github.com/fiam/dboembed/internal/repositories"
	"github.com/fiam/dboembed/internal/storage"
)

var (
	_ oembed.Store          = (*repositories.PostgresEmbedRepository)(nil)
	_ oembed.Store          = (*repositories.InMemoryEmbedRepository)(nil)
	_ handlers.EmbedStore   = (*repositories.PostgresEmbedRepository)(nil)
	_ oembed.Recorder       = (*metrics.Recorder)(nil)
	_ oembed.ArchiveStorage = (*storage.S3Storage)(nil)
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup drains the response archive.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	recorder := metrics.New(true)
	repo := repositories.NewPostgresEmbedRepository(pool)

	opts := []oembed.ResolverOption{oembed.WithRecorder(recorder)}
	cleanup := func(context.Context) error { return nil }

	if cfg.Archive.Store.Enabled() {
		store, err := storage.NewS3Storage(ctx, cfg.Archive.Store)
		if err != nil {
			return handlers.Dependencies{}, nil, fmt.Errorf("configure response archive: %w", err)
		}
		archiver := oembed.NewArchiver(store, oembed.ArchiverConfig{
			QueueSize: cfg.Archive.QueueSize,
			Workers:   cfg.Archive.Workers,
		}, logger)
		opts = append(opts, oembed.WithArchive(archiver))
		cleanup = archiver.Shutdown
	}

	resolver := newResolver(cfg, repo, opts...)

	return handlers.Dependencies{
		Resolver:  resolver,
		Embeds:    repo,
		Providers: resolver.Registry().Providers(),
		Limiter:   middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, 0),
		Metrics:   recorder.Handler(),
	}, cleanup, nil
}

func newResolver(cfg config.Config, store oembed.Store, opts ...oembed.ResolverOption) *oembed.Resolver {
	fetcher := oembed.NewHTTPFetcher(cfg.FetchTimeout, cfg.MaxResponseBytes, cfg.UserAgent)
	return oembed.NewResolver(oembed.NewDefaultRegistry(), fetcher, store, opts...)
}
