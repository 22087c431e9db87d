package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCountsResolutions(t *testing.T) {
	r := New(false)

	r.ObserveResolution("Flickr", "resolved")
	r.ObserveResolution("Flickr", "resolved")
	r.ObserveResolution("none", "no_provider")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.resolutions.WithLabelValues("Flickr", "resolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.resolutions.WithLabelValues("none", "no_provider")))
}

func TestRecorderObservesFetchDuration(t *testing.T) {
	r := New(false)

	r.ObserveFetch("Qik", 120*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(r.fetchDuration))
}

func TestRecorderHandler(t *testing.T) {
	r := New(true)
	r.ObserveResolution("Viddler", "missing_fields")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `dboembed_resolutions_total{outcome="missing_fields",provider="Viddler"} 1`))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}
