package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RouteRequests   *prometheus.CounterVec
	RouteSeconds    *prometheus.HistogramVec
	RoutesInFlight  prometheus.Gauge
	StaleRoutes     prometheus.Counter
	NearestLookups  *prometheus.CounterVec
	FacilitiesTotal prometheus.Gauge
	OutgoingLatency *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RouteRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "routing_requests_total",
			Help: "Total number of route requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		RouteSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "routing_provider_request_duration_seconds",
			Help:    "Duration of requests to the routing provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		RoutesInFlight: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "routing_requests_in_flight",
			Help: "Current number of route requests awaiting a response.",
		}),
		StaleRoutes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "routing_stale_results_discarded_total",
			Help: "Total number of route results dropped because a newer request superseded them.",
		}),
		NearestLookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "locator_nearest_lookups_total",
			Help: "Total number of nearest-facility lookups by status.",
		}, []string{"status"}),
		FacilitiesTotal: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "facilities_loaded",
			Help: "Number of facilities currently loaded from the record source.",
		}),
		OutgoingLatency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_outgoing_request_duration_seconds",
			Help:    "Latency of outgoing HTTP requests by host, method and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"host", "method", "status"}),
	}
}
