package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fiam/dboembed/internal/logging"
	"github.com/fiam/dboembed/internal/models"
	"github.com/fiam/dboembed/internal/oembed"
	"github.com/fiam/dboembed/internal/repositories"
)

const maxListLimit = 200

// EmbedHandler resolves media URLs and serves stored resources.
type EmbedHandler struct {
	Resolver EmbedResolver
	Embeds   EmbedStore
	Limiter  RateLimiter
}

type embedResponse struct {
	Resource models.EmbedResource `json:"resource"`
	HTML     string               `json:"html"`
}

type embedListResponse struct {
	Resources []embedResponse `json:"resources"`
}

func newEmbedResponse(res models.EmbedResource) embedResponse {
	return embedResponse{Resource: res, HTML: res.RenderHTML()}
}

// Resolve handles GET /api/v1/embed?url=...&maxwidth=...&maxheight=...
func (h EmbedHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, scopeResolve) {
		respondError(ctx, w, http.StatusTooManyRequests, "too many requests", "")
		return
	}

	if h.Resolver == nil {
		logger.Error("embed resolver unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "resolver unavailable", "")
		return
	}

	query := r.URL.Query()
	target := strings.TrimSpace(query.Get("url"))
	if target == "" {
		respondError(ctx, w, http.StatusBadRequest, "url is required", "")
		return
	}

	var size oembed.Size
	var err error
	if size.MaxWidth, err = parseDimension(query.Get("maxwidth")); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "maxwidth must be a non-negative integer", "")
		return
	}
	if size.MaxHeight, err = parseDimension(query.Get("maxheight")); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "maxheight must be a non-negative integer", "")
		return
	}

	res, err := h.Resolver.Lookup(ctx, target, size)
	if err != nil {
		switch {
		case errors.Is(err, oembed.ErrNoProvider):
			respondError(ctx, w, http.StatusNotFound, "no embeddable resource", oembed.OutcomeNoProvider)
		case errors.Is(err, oembed.ErrUnreachable):
			logger.Warn("provider unreachable", "url", target, "error", err)
			respondError(ctx, w, http.StatusNotFound, "no embeddable resource", oembed.OutcomeUnreachable)
		case errors.Is(err, oembed.ErrMalformedDocument):
			logger.Warn("provider returned malformed document", "url", target, "error", err)
			respondError(ctx, w, http.StatusNotFound, "no embeddable resource", oembed.OutcomeMalformed)
		case oembed.IsProtocolViolation(err):
			respondError(ctx, w, http.StatusBadGateway, err.Error(), oembed.OutcomeOf(err))
		default:
			logger.Error("resolve embed", "url", target, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "failed to store resource", "")
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, newEmbedResponse(*res))
}

// Get handles GET /api/v1/embeds/{id}.
func (h EmbedHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, ok := h.find(w, r)
	if !ok {
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, newEmbedResponse(res))
}

// HTML handles GET /api/v1/embeds/{id}/html.
func (h EmbedHandler) HTML(w http.ResponseWriter, r *http.Request) {
	res, ok := h.find(w, r)
	if !ok {
		return
	}

	markup := res.RenderHTML()
	if markup == "" {
		respondError(r.Context(), w, http.StatusNotFound, "resource has no html rendering", "")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(markup))
}

// List handles GET /api/v1/embeds?limit=N.
func (h EmbedHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Embeds == nil {
		respondError(ctx, w, http.StatusInternalServerError, "embed store unavailable", "")
		return
	}

	limit, err := parseDimension(r.URL.Query().Get("limit"))
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "limit must be a non-negative integer", "")
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	resources, err := h.Embeds.ListRecent(ctx, limit)
	if err != nil {
		logging.FromContext(ctx).Error("list embeds", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list resources", "")
		return
	}

	out := embedListResponse{Resources: make([]embedResponse, 0, len(resources))}
	for _, res := range resources {
		out.Resources = append(out.Resources, newEmbedResponse(res))
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

func (h EmbedHandler) find(w http.ResponseWriter, r *http.Request) (models.EmbedResource, bool) {
	ctx := r.Context()

	if h.Embeds == nil {
		respondError(ctx, w, http.StatusInternalServerError, "embed store unavailable", "")
		return models.EmbedResource{}, false
	}

	id := chi.URLParam(r, "id")
	res, err := h.Embeds.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "resource not found", "")
			return models.EmbedResource{}, false
		}
		logging.FromContext(ctx).Error("find embed", "id", id, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load resource", "")
		return models.EmbedResource{}, false
	}
	return res, true
}

func parseDimension(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.New("negative value")
	}
	return v, nil
}
