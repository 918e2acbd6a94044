// Package server exposes nearest-facility lookups and route retrieval over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/UnknownOlympus/asclepius/internal/dispatch"
	"github.com/UnknownOlympus/asclepius/internal/facilities"
	"github.com/UnknownOlympus/asclepius/internal/metrics"
	"github.com/UnknownOlympus/asclepius/internal/routing"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	log        *slog.Logger
	facilities facilities.Source
	fetcher    *routing.Fetcher
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	session    *dispatch.Session
	health     func(ctx context.Context) error
}

// Options configures a Server. Session and Health are optional.
type Options struct {
	Logger     *slog.Logger
	Facilities facilities.Source
	Fetcher    *routing.Fetcher
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Session    *dispatch.Session               // tracking session exposed under /v1/session
	Health     func(ctx context.Context) error // extra readiness check, e.g. a database ping
}

func New(opts Options) *Server {
	return &Server{
		log:        opts.Logger,
		facilities: opts.Facilities,
		fetcher:    opts.Fetcher,
		metrics:    opts.Metrics,
		gatherer:   opts.Gatherer,
		session:    opts.Session,
		health:     opts.Health,
	}
}

// Routes sets up the HTTP routing configuration and returns the final http.Handler.
//
// Registered Routes:
//   - GET /healthz: readiness, 503 when the health check fails.
//   - GET /metrics: Prometheus exposition.
//   - GET /v1/facilities: every loaded facility.
//   - GET /v1/nearest?lat=&lon=: nearest facility and the ranked candidate list.
//   - GET /v1/route?from_lat=&from_lon=&to_lat=&to_lon= or &to=<name>: driving route.
//   - GET /v1/session, PUT /v1/session/observer, PUT /v1/session/selection: tracking session.
//
// Every route is wrapped with request IDs, Sentry and security headers.
func (s *Server) Routes() http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/healthz", s.healthHandler)
	router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	router.HandlerFunc(http.MethodGet, "/v1/facilities", s.facilitiesHandler)
	router.HandlerFunc(http.MethodGet, "/v1/nearest", s.nearestHandler)
	router.HandlerFunc(http.MethodGet, "/v1/route", s.routeHandler)
	router.HandlerFunc(http.MethodGet, "/v1/session", s.sessionHandler)
	router.HandlerFunc(http.MethodPut, "/v1/session/observer", s.sessionObserverHandler)
	router.HandlerFunc(http.MethodPut, "/v1/session/selection", s.sessionSelectionHandler)

	return SecurityHeaders(RequestID(SentryMiddleware(router)))
}
