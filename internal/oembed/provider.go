package oembed

import (
	"fmt"
	"regexp"
)

// Provider describes a third-party service exposing an oEmbed endpoint.
type Provider struct {
	Name     string
	Scheme   string
	Endpoint string

	pattern *regexp.Regexp
}

// NewProvider compiles scheme as a case-insensitive pattern anchored at the
// start of the URL. Trailing text after a match is irrelevant.
func NewProvider(name, scheme, endpoint string) (Provider, error) {
	pattern, err := regexp.Compile(`(?i)^(?:` + scheme + `)`)
	if err != nil {
		return Provider{}, fmt.Errorf("compile scheme for provider %s: %w", name, err)
	}
	return Provider{Name: name, Scheme: scheme, Endpoint: endpoint, pattern: pattern}, nil
}

// MustProvider is like NewProvider but panics on an invalid scheme.
func MustProvider(name, scheme, endpoint string) Provider {
	p, err := NewProvider(name, scheme, endpoint)
	if err != nil {
		panic(err)
	}
	return p
}

// Matches reports whether the URL starts with a match of the provider scheme.
func (p Provider) Matches(url string) bool {
	return p.pattern != nil && p.pattern.MatchString(url)
}

// DefaultProviders returns the built-in providers in priority order.
func DefaultProviders() []Provider {
	return []Provider{
		MustProvider("Flickr", `http://(.*?\.)?flickr\.com/.*`, "http://www.flickr.com/services/oembed/?format=xml&"),
		MustProvider("Viddler", `http://(.*?\.)?viddler\.com/.*`, "http://lab.viddler.com/services/oembed/?format=xml&"),
		MustProvider("Qik", `http://qik\.com/video/.*`, "http://qik.com/api/oembed.xml?"),
		MustProvider("Pownce", `http://(.*?\.)?pownce\.com/.*`, "http://api.pownce.com/2.1/oembed.xml?"),
		MustProvider("Revision3", `http://(.*?\.)?revision3\.com/.*`, "http://revision3.com/api/oembed/?format=xml&"),
		MustProvider("Hulu", `http://www\.hulu\.com/watch/.*`, "http://www.hulu.com/api/oembed.xml?"),
		MustProvider("Vimeo", `http://www.vimeo.com/.*`, "http://www.vimeo.com/api/oembed.xml?"),
	}
}

// Registry is an ordered, read-only list of providers. It is safe for concurrent use.
type Registry struct {
	providers []Provider
}

// NewRegistry builds a registry; earlier providers win when patterns overlap.
func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: append([]Provider(nil), providers...)}
}

// NewDefaultRegistry returns a registry holding DefaultProviders.
func NewDefaultRegistry() *Registry {
	return NewRegistry(DefaultProviders()...)
}

// Match returns the first provider whose scheme matches the URL.
func (r *Registry) Match(url string) (Provider, bool) {
	if r == nil {
		return Provider{}, false
	}
	for _, p := range r.providers {
		if p.Matches(url) {
			return p, true
		}
	}
	return Provider{}, false
}

// Providers returns a copy of the registered providers in priority order.
func (r *Registry) Providers() []Provider {
	if r == nil {
		return nil
	}
	return append([]Provider(nil), r.providers...)
}
