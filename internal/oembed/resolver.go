package oembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fiam/dboembed/internal/logging"
	"github.com/fiam/dboembed/internal/models"
)

const archiveEnqueueTimeout = time.Second

// ResponseArchive accepts raw provider documents of successful resolutions.
type ResponseArchive interface {
	Enqueue(ctx context.Context, job ArchiveJob) error
}

// Resolver turns media URLs into stored embed resources.
type Resolver struct {
	registry *Registry
	fetcher  Fetcher
	store    Store
	archive  ResponseArchive
	recorder Recorder
}

// ResolverOption configures optional collaborators of a Resolver.
type ResolverOption func(*Resolver)

// WithArchive uploads the raw document of each successful resolution.
func WithArchive(archive ResponseArchive) ResolverOption {
	return func(r *Resolver) {
		r.archive = archive
	}
}

// WithRecorder reports resolution outcomes and fetch latency.
func WithRecorder(recorder Recorder) ResolverOption {
	return func(r *Resolver) {
		if recorder != nil {
			r.recorder = recorder
		}
	}
}

// NewResolver wires a resolver around the provider registry, fetcher and store.
func NewResolver(registry *Registry, fetcher Fetcher, store Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		registry: registry,
		fetcher:  fetcher,
		store:    store,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the providers consulted by the resolver.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// Resolve returns the embed resource for url. URLs no provider handles,
// unreachable endpoints and malformed documents all yield (nil, nil); only
// protocol violations by a matched provider and storage failures are errors.
func (r *Resolver) Resolve(ctx context.Context, url string, size Size) (*models.EmbedResource, error) {
	res, err := r.Lookup(ctx, url, size)
	if err == nil {
		return res, nil
	}

	switch {
	case errors.Is(err, ErrNoProvider):
		return nil, nil
	case errors.Is(err, ErrUnreachable), errors.Is(err, ErrMalformedDocument):
		logging.FromContext(ctx).Warn("oembed resolution yielded no result", "url", url, "error", err)
		return nil, nil
	default:
		return nil, err
	}
}

// Lookup runs the resolution pipeline reporting every failure kind distinctly.
func (r *Resolver) Lookup(ctx context.Context, url string, size Size) (*models.EmbedResource, error) {
	ctx, span := logging.StartSpan(ctx, "oembed.lookup")
	defer span.End()
	logger := logging.FromContext(ctx)

	provider, ok := r.registry.Match(url)
	if !ok {
		r.recorder.ObserveResolution("none", OutcomeNoProvider)
		return nil, ErrNoProvider
	}
	logger = logger.With(slog.String("provider", provider.Name))

	requestURL := provider.RequestURL(url, size)

	if r.fetcher == nil {
		r.recorder.ObserveResolution(provider.Name, OutcomeUnreachable)
		return nil, fmt.Errorf("%w: fetcher not configured", ErrUnreachable)
	}

	fetchCtx, fetchSpan := logging.StartSpan(ctx, "oembed.fetch")
	start := time.Now()
	body, err := r.fetcher.Fetch(fetchCtx, requestURL)
	r.recorder.ObserveFetch(provider.Name, time.Since(start))
	fetchSpan.End()
	if err != nil {
		if !errors.Is(err, ErrUnreachable) {
			err = fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		r.recorder.ObserveResolution(provider.Name, OutcomeUnreachable)
		return nil, fmt.Errorf("fetch %s: %w", requestURL, err)
	}

	resp, err := Parse(bytes.NewReader(body))
	if err != nil {
		r.recorder.ObserveResolution(provider.Name, OutcomeOf(err))
		return nil, fmt.Errorf("parse %s response: %w", provider.Name, err)
	}

	if err := Validate(resp.Properties); err != nil {
		r.recorder.ObserveResolution(provider.Name, OutcomeOf(err))
		logger.Warn("provider response violates oembed schema", "error", err)
		return nil, fmt.Errorf("validate %s response: %w", provider.Name, err)
	}

	if r.store == nil {
		r.recorder.ObserveResolution(provider.Name, OutcomeStoreError)
		return nil, ErrStoreUnavailable
	}

	stored, err := r.store.Create(ctx, newResource(resp, logger))
	if err != nil {
		r.recorder.ObserveResolution(provider.Name, OutcomeStoreError)
		return nil, fmt.Errorf("store resource: %w", err)
	}
	r.recorder.ObserveResolution(provider.Name, OutcomeResolved)

	if r.archive != nil {
		archiveCtx, cancel := context.WithTimeout(ctx, archiveEnqueueTimeout)
		err := r.archive.Enqueue(archiveCtx, ArchiveJob{ResourceID: stored.ID, Provider: provider.Name, Body: body})
		cancel()
		if err != nil {
			logger.Warn("enqueue provider response archive", "resourceId", stored.ID, "error", err)
		}
	}

	logger.Info("resolved oembed resource", "resourceId", stored.ID, "type", stored.Type.String())
	return &stored, nil
}

// OutcomeOf classifies the result of a lookup using the outcome labels
// reported to a Recorder.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeResolved
	case errors.Is(err, ErrNoProvider):
		return OutcomeNoProvider
	case errors.Is(err, ErrUnreachable):
		return OutcomeUnreachable
	case errors.Is(err, ErrMalformedDocument):
		return OutcomeMalformed
	case errors.Is(err, ErrInvalidVersion):
		return OutcomeInvalidVersion
	case errors.Is(err, ErrInvalidType):
		return OutcomeInvalidType
	case errors.Is(err, ErrMissingFields):
		return OutcomeMissingFields
	default:
		return OutcomeStoreError
	}
}

func newResource(resp Response, logger *slog.Logger) models.EmbedResource {
	p := resp.Properties
	res := models.EmbedResource{
		Type:            resp.Type(),
		Title:           truncate(p["title"], models.MaxNameLength),
		AuthorName:      truncate(p["author_name"], models.MaxNameLength),
		AuthorURL:       truncate(p["author_url"], models.MaxURLLength),
		ThumbnailURL:    truncate(p["thumbnail_url"], models.MaxURLLength),
		ThumbnailWidth:  parseInt(p, "thumbnail_width", logger),
		ThumbnailHeight: parseInt(p, "thumbnail_height", logger),
		URL:             truncate(p["url"], models.MaxURLLength),
		Width:           parseInt(p, "width", logger),
		Height:          parseInt(p, "height", logger),
		HTML:            p["html"],
		CacheAge:        parseInt(p, "cache_age", logger),
	}

	if len(resp.Provider) > 0 {
		res.Provider = &models.ProviderIdentity{
			Name: truncate(resp.Provider["provider_name"], models.MaxNameLength),
			URL:  truncate(resp.Provider["provider_url"], models.MaxURLLength),
		}
	}

	return res
}

func parseInt(p Properties, key string, logger *slog.Logger) *int {
	raw := strings.TrimSpace(p[key])
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		logger.Warn("ignoring non-integer oembed field", "field", key, "value", raw)
		return nil
	}
	return &v
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
