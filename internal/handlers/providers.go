package handlers

import (
	"net/http"

	"github.com/fiam/dboembed/internal/oembed"
)

// ProviderHandler lists the providers the resolver consults.
type ProviderHandler struct {
	Providers []oembed.Provider
}

type providerResponse struct {
	Name     string `json:"name"`
	Scheme   string `json:"scheme"`
	Endpoint string `json:"endpoint"`
}

// List handles GET /api/v1/providers.
func (h ProviderHandler) List(w http.ResponseWriter, r *http.Request) {
	out := make([]providerResponse, 0, len(h.Providers))
	for _, p := range h.Providers {
		out = append(out, providerResponse{Name: p.Name, Scheme: p.Scheme, Endpoint: p.Endpoint})
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"providers": out})
}
