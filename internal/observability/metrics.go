package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// venue resolution service.
type Metrics struct {
	// Resolver request sequencing.
	ResolverRequests *prometheus.CounterVec // labels: op={coordinate,text,select}, outcome={applied,stale,skipped,error}
	ProximityMatches prometheus.Counter
	VenuesUpserted   prometheus.Counter

	// Places provider.
	ProviderRequests *prometheus.CounterVec   // labels: method={nearby,text,details}, outcome={success,error,empty}
	ProviderDuration *prometheus.HistogramVec // labels: method={nearby,text,details}
	DetailsCache     *prometheus.CounterVec   // labels: result={hit,miss}
	ProviderEnabled  prometheus.Gauge

	// Service surface.
	ActiveSessions  prometheus.Gauge
	RateLimited     prometheus.Counter
	EventsPublished *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.ResolverRequests,
		m.ProximityMatches,
		m.VenuesUpserted,
		m.ProviderRequests,
		m.ProviderDuration,
		m.DetailsCache,
		m.ProviderEnabled,
		m.ActiveSessions,
		m.RateLimited,
		m.EventsPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ResolverRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mealtrail",
			Name:      "resolver_requests_total",
			Help:      "Resolver operations by type and outcome.",
		}, []string{"op", "outcome"}),
		ProximityMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mealtrail",
			Name:      "proximity_matches_total",
			Help:      "Coordinate hints short-circuited by a saved venue within the match radius.",
		}),
		VenuesUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mealtrail",
			Name:      "venues_upserted_total",
			Help:      "Confirmed venues written to the known-venues store.",
		}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mealtrail",
			Name:      "provider_requests_total",
			Help:      "Places provider requests by method and outcome.",
		}, []string{"method", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mealtrail",
			Name:      "provider_request_duration_seconds",
			Help:      "Places provider request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 8},
		}, []string{"method"}),
		DetailsCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mealtrail",
			Name:      "details_cache_total",
			Help:      "Place details cache lookups by result.",
		}, []string{"result"}),
		ProviderEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mealtrail",
			Name:      "provider_enabled",
			Help:      "1 when the places provider is configured, 0 otherwise.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mealtrail",
			Name:      "active_sessions",
			Help:      "Resolver sessions currently alive.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mealtrail",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-user rate limit.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mealtrail",
			Name:      "events_published_total",
			Help:      "Venue-confirmed events published to Kafka by outcome.",
		}, []string{"outcome"}),
	}
}
