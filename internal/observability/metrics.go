package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const clientMetricPrefix = "blog_client_"

var (
	// Outgoing API client metrics
	ClientRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blog_client_request_duration_seconds",
			Help:    "Latency of requests sent to the blog API in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	ClientRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_client_requests_total",
			Help: "Total number of requests sent to the blog API",
		},
		[]string{"method", "endpoint", "status"},
	)

	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_client_token_refresh_total",
			Help: "Access token refresh attempts by result",
		},
		[]string{"result"},
	)

	AuthRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blog_client_auth_retries_total",
			Help: "Requests replayed after an authorization failure",
		},
	)

	SessionLogoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blog_client_session_logouts_total",
			Help: "Number of times the local session was cleared",
		},
	)

	// Dev API server metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	DevAPIPostsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "devapi_posts_stored",
			Help: "Number of posts held by the dev API",
		},
	)
)

// WriteClientMetrics writes the client-side collectors registered with g in
// the Prometheus text format. A nil g means the default registry.
func WriteClientMetrics(w io.Writer, g prometheus.Gatherer) error {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), clientMetricPrefix) {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
