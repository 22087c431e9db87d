package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fiam/dboembed/internal/oembed"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Resolver  EmbedResolver
	Embeds    EmbedStore
	Providers []oembed.Provider
	Limiter   RateLimiter
	Metrics   http.Handler
	Ping      func(ctx context.Context) error
}

// NewRouter wires HTTP handlers into a chi router.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()
	RegisterRoutes(r, deps)
	return r
}

// RegisterRoutes mounts every endpoint on r.
func RegisterRoutes(r chi.Router, deps Dependencies) {
	health := HealthHandler{Ping: deps.Ping}
	embeds := EmbedHandler{Resolver: deps.Resolver, Embeds: deps.Embeds, Limiter: deps.Limiter}
	providers := ProviderHandler{Providers: deps.Providers}

	r.HandleFunc("/healthz", health.Handle)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/embed", embeds.Resolve)
		r.Get("/embeds", embeds.List)
		r.Get("/embeds/{id}", embeds.Get)
		r.Get("/embeds/{id}/html", embeds.HTML)
		r.Get("/providers", providers.List)
	})
}
