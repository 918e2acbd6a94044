package routing

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// latencyTrackingRoundTripper wraps another RoundTripper and records the latency
// of every outgoing request. Labels never include the query string, which
// carries the provider API key.
type latencyTrackingRoundTripper struct {
	next    http.RoundTripper
	latency *prometheus.HistogramVec
}

func (rt *latencyTrackingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := rt.next.RoundTrip(req)
	duration := time.Since(start).Seconds()

	status := "error"
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}

	rt.latency.WithLabelValues(req.URL.Host, req.Method, status).Observe(duration)

	return resp, err
}

// NewPooledClient returns an HTTP client shared by all route requests.
//
// Connections are kept alive between requests; the client holds no per-request
// state, so it is safe to reuse concurrently. Dial and TLS timeouts fail fast when
// the routing service is unreachable, and timeout bounds the whole exchange.
// When latency is non-nil every request is observed in it.
func NewPooledClient(timeout time.Duration, latency *prometheus.HistogramVec) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	var roundTripper http.RoundTripper = transport
	if latency != nil {
		roundTripper = &latencyTrackingRoundTripper{next: transport, latency: latency}
	}

	return &http.Client{
		Transport: roundTripper,
		Timeout:   timeout,
	}
}
