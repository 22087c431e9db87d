package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dboembed"

// Recorder exports resolution outcomes and provider fetch latency on its own
// registry.
type Recorder struct {
	registry      *prometheus.Registry
	resolutions   *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

// New builds a Recorder. Go runtime and process collectors are registered
// when withRuntime is set.
func New(withRuntime bool) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Resolutions attempted, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching oEmbed documents from providers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}

	r.registry.MustRegister(r.resolutions, r.fetchDuration)
	if withRuntime {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return r
}

// ObserveResolution counts one resolution attempt.
func (r *Recorder) ObserveResolution(provider, outcome string) {
	r.resolutions.WithLabelValues(provider, outcome).Inc()
}

// ObserveFetch records the latency of one provider request.
func (r *Recorder) ObserveFetch(provider string, d time.Duration) {
	r.fetchDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// Registry exposes the underlying registry for callers adding collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
