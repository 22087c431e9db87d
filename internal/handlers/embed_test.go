package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fiam/dboembed/internal/models"
	"github.com/fiam/dboembed/internal/oembed"
	"github.com/fiam/dboembed/internal/repositories"
)

type resolverStub struct {
	res     *models.EmbedResource
	err     error
	gotURL  string
	gotSize oembed.Size
	calls   int
}

func (s *resolverStub) Lookup(ctx context.Context, url string, size oembed.Size) (*models.EmbedResource, error) {
	_ = ctx
	s.calls++
	s.gotURL = url
	s.gotSize = size
	return s.res, s.err
}

type embedStoreStub struct {
	byID    map[string]models.EmbedResource
	recent  []models.EmbedResource
	limit   int
	findErr error
}

func (s *embedStoreStub) FindByID(ctx context.Context, id string) (models.EmbedResource, error) {
	_ = ctx
	if s.findErr != nil {
		return models.EmbedResource{}, s.findErr
	}
	res, ok := s.byID[id]
	if !ok {
		return models.EmbedResource{}, repositories.ErrNotFound
	}
	return res, nil
}

func (s *embedStoreStub) ListRecent(ctx context.Context, limit int) ([]models.EmbedResource, error) {
	_ = ctx
	s.limit = limit
	return s.recent, nil
}

type limiterStub struct {
	allow bool
	keys  []string
}

func (l *limiterStub) Allow(key string) bool {
	l.keys = append(l.keys, key)
	return l.allow
}

func photoResource() models.EmbedResource {
	width, height := 100, 80
	return models.EmbedResource{
		ID:       "res-1",
		Type:     models.ResourceTypePhoto,
		Title:    "Cat",
		URL:      "http://x/cat.jpg",
		Width:    &width,
		Height:   &height,
		Provider: &models.ProviderIdentity{ID: "prov-1", Name: "Flickr"},
		Created:  time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC),
	}
}

func serve(t *testing.T, deps Dependencies, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "203.0.113.7:1234"
	rec := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(rec, req)
	return rec
}

func TestEmbedResolveSuccess(t *testing.T) {
	res := photoResource()
	resolver := &resolverStub{res: &res}

	rec := serve(t, Dependencies{Resolver: resolver}, "/api/v1/embed?url=http%3A%2F%2Fwww.flickr.com%2Fphotos%2Fbees%2F1&maxwidth=300&maxheight=200")

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d (%s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if resolver.gotURL != "http://www.flickr.com/photos/bees/1" {
		t.Fatalf("unexpected url passed to resolver: %q", resolver.gotURL)
	}
	if resolver.gotSize != (oembed.Size{MaxWidth: 300, MaxHeight: 200}) {
		t.Fatalf("unexpected size: %+v", resolver.gotSize)
	}

	var body struct {
		Resource map[string]any `json:"resource"`
		HTML     string         `json:"html"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.HTML != `<img alt="Cat" src="http://x/cat.jpg" width="100" height="80" />` {
		t.Fatalf("unexpected html: %q", body.HTML)
	}
	if body.Resource["type"] != "photo" || body.Resource["id"] != "res-1" {
		t.Fatalf("unexpected resource: %v", body.Resource)
	}
}

func TestEmbedResolveBadInput(t *testing.T) {
	for _, target := range []string{
		"/api/v1/embed",
		"/api/v1/embed?url=%20",
		"/api/v1/embed?url=http%3A%2F%2Fx&maxwidth=wide",
		"/api/v1/embed?url=http%3A%2F%2Fx&maxheight=-1",
	} {
		resolver := &resolverStub{}
		rec := serve(t, Dependencies{Resolver: resolver}, target)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", target, rec.Code)
		}
		if resolver.calls != 0 {
			t.Fatalf("%s: resolver should not be called", target)
		}
	}
}

func TestEmbedResolveErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		reason string
	}{
		{err: oembed.ErrNoProvider, status: http.StatusNotFound, reason: "no_provider"},
		{err: fmt.Errorf("fetch: %w", oembed.ErrUnreachable), status: http.StatusNotFound, reason: "unreachable"},
		{err: fmt.Errorf("parse: %w", oembed.ErrMalformedDocument), status: http.StatusNotFound, reason: "malformed"},
		{err: &oembed.VersionError{Value: "2.0"}, status: http.StatusBadGateway, reason: "invalid_version"},
		{err: &oembed.TypeError{Value: "audio"}, status: http.StatusBadGateway, reason: "invalid_type"},
		{err: &oembed.MissingFieldsError{Type: models.ResourceTypeVideo, Fields: []string{"html"}}, status: http.StatusBadGateway, reason: "missing_fields"},
		{err: errors.New("connection reset"), status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := serve(t, Dependencies{Resolver: &resolverStub{err: tc.err}}, "/api/v1/embed?url=http%3A%2F%2Fx")
		if rec.Code != tc.status {
			t.Fatalf("%v: unexpected status: got %d want %d", tc.err, rec.Code, tc.status)
		}
		var body errorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Reason != tc.reason {
			t.Fatalf("%v: unexpected reason %q want %q", tc.err, body.Reason, tc.reason)
		}
	}
}

func TestEmbedResolveRateLimited(t *testing.T) {
	limiter := &limiterStub{allow: false}
	resolver := &resolverStub{}

	rec := serve(t, Dependencies{Resolver: resolver, Limiter: limiter}, "/api/v1/embed?url=http%3A%2F%2Fx")

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
	if resolver.calls != 0 {
		t.Fatal("resolver should not be called when rate limited")
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != "resolve:203.0.113.7" {
		t.Fatalf("unexpected limiter keys %v", limiter.keys)
	}
}

func TestEmbedResolveWithoutResolver(t *testing.T) {
	rec := serve(t, Dependencies{}, "/api/v1/embed?url=http%3A%2F%2Fx")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}

func TestEmbedGetAndHTML(t *testing.T) {
	video := models.EmbedResource{ID: "res-2", Type: models.ResourceTypeVideo, HTML: `<iframe src="http://v/1"></iframe>`}
	link := models.EmbedResource{ID: "res-3", Type: models.ResourceTypeLink}
	store := &embedStoreStub{byID: map[string]models.EmbedResource{
		"res-1": photoResource(),
		"res-2": video,
		"res-3": link,
	}}
	deps := Dependencies{Embeds: store}

	rec := serve(t, deps, "/api/v1/embeds/res-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	rec = serve(t, deps, "/api/v1/embeds/res-2/html")
	if rec.Code != http.StatusOK || rec.Body.String() != `<iframe src="http://v/1"></iframe>` {
		t.Fatalf("unexpected html response %d %q", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}

	rec = serve(t, deps, "/api/v1/embeds/res-3/html")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for resource without html got %d", rec.Code)
	}

	rec = serve(t, deps, "/api/v1/embeds/missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}

	failing := Dependencies{Embeds: &embedStoreStub{findErr: errors.New("db down")}}
	rec = serve(t, failing, "/api/v1/embeds/res-1")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}

func TestEmbedList(t *testing.T) {
	store := &embedStoreStub{recent: []models.EmbedResource{photoResource()}}

	rec := serve(t, Dependencies{Embeds: store}, "/api/v1/embeds?limit=1000")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if store.limit != maxListLimit {
		t.Fatalf("expected limit capped at %d got %d", maxListLimit, store.limit)
	}

	var body struct {
		Resources []struct {
			HTML string `json:"html"`
		} `json:"resources"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Resources) != 1 || body.Resources[0].HTML == "" {
		t.Fatalf("unexpected list body %+v", body)
	}

	rec = serve(t, Dependencies{Embeds: store}, "/api/v1/embeds?limit=x")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestProvidersList(t *testing.T) {
	rec := serve(t, Dependencies{Providers: oembed.DefaultProviders()}, "/api/v1/providers")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	var body struct {
		Providers []providerResponse `json:"providers"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Providers) != 7 || body.Providers[0].Name != "Flickr" || body.Providers[6].Endpoint != "http://www.vimeo.com/api/oembed.xml?" {
		t.Fatalf("unexpected providers %+v", body.Providers)
	}
}

func TestRoutesMetricsAndMethods(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("dboembed_resolutions_total 0\n"))
	})

	rec := serve(t, Dependencies{Metrics: metrics}, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "dboembed_resolutions_total") {
		t.Fatalf("unexpected metrics response %d %q", rec.Code, rec.Body.String())
	}

	rec = serve(t, Dependencies{}, "/metrics")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without metrics handler got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/embed?url=x", nil)
	rec = httptest.NewRecorder()
	NewRouter(Dependencies{}).ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.1:5555"
	if got := clientIP(req); got != "198.51.100.1" {
		t.Fatalf("unexpected ip %q", got)
	}

	req.Header.Set("X-Real-IP", "203.0.113.4")
	if got := clientIP(req); got != "203.0.113.4" {
		t.Fatalf("expected X-Real-IP to win over remote addr, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "192.0.2.9, 10.0.0.1")
	if got := rateLimitKey(req, scopeResolve); got != "resolve:192.0.2.9" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := rateLimitKey(req, ""); got != "192.0.2.9" {
		t.Fatalf("unexpected unscoped key %q", got)
	}
}
