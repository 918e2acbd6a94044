package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/UnknownOlympus/asclepius/internal/metrics"
	"github.com/UnknownOlympus/asclepius/internal/models"
)

// Result is the outcome of one route request. Exactly one of Route and Err is meaningful.
type Result struct {
	Token uint64       // Token identifies the request that produced this result
	Route models.Route // Route is set when Err is nil
	Err   error        // Err is one of the routing errors or *HTTPError
}

// Request is a handle on an in-flight route fetch.
type Request struct {
	Token  uint64 // Token is the generation number assigned by the Fetcher
	done   chan Result
	cancel context.CancelFunc

	mu        sync.Mutex // guards cancelled and the delivery of the result
	cancelled bool
}

// Done returns the completion channel. It yields exactly one Result and is then closed.
func (r *Request) Done() <-chan Result {
	return r.done
}

// Cancel withdraws interest in the request. A cancelled request never delivers a Route.
// Calling Cancel after completion is a no-op.
func (r *Request) Cancel() {
	r.mu.Lock()
	r.cancelled = true
	r.mu.Unlock()

	r.cancel()
}

// deliver sends the single result. Under the lock, a Cancel that already
// happened turns a success into ErrCancelled.
func (r *Request) deliver(ctx context.Context, route models.Route, err error) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if (r.cancelled || errors.Is(ctx.Err(), context.Canceled)) && !errors.Is(err, ErrCancelled) {
		err = fmt.Errorf("%w: %w", ErrCancelled, context.Canceled)
	}
	if err != nil {
		route = models.Route{}
	}

	result := Result{Token: r.Token, Route: route, Err: err}
	r.done <- result

	return result
}

// Fetcher runs route requests off the caller's goroutine and tags each with a
// monotonically increasing token, so callers can discard superseded results.
type Fetcher struct {
	log          *slog.Logger     // Logger for logging fetcher activities
	provider     Provider         // Routing provider used for every request
	providerName string           // Name of the provider for metrics labeling
	metrics      *metrics.Metrics // Metrics for tracking request outcomes
	generation   atomic.Uint64    // Last token handed out
	inflight     sync.WaitGroup
}

// NewFetcher creates a Fetcher that issues requests through provider.
func NewFetcher(
	log *slog.Logger,
	provider Provider,
	providerName string,
	metrics *metrics.Metrics,
) *Fetcher {
	return &Fetcher{
		log:          log,
		provider:     provider,
		providerName: providerName,
		metrics:      metrics,
	}
}

// Fetch starts retrieving a route from origin to destination and returns immediately.
// The request is bound to ctx: cancelling ctx has the same effect as Request.Cancel.
func (f *Fetcher) Fetch(ctx context.Context, origin, destination models.Coordinate) *Request {
	reqCtx, cancel := context.WithCancel(ctx)
	req := &Request{
		Token:  f.generation.Add(1),
		done:   make(chan Result, 1),
		cancel: cancel,
	}

	f.inflight.Add(1)
	go f.run(reqCtx, req, origin, destination)

	return req
}

// Latest returns the most recently issued token, or 0 if none was issued.
func (f *Fetcher) Latest() uint64 {
	return f.generation.Load()
}

// IsLatest reports whether token belongs to the most recent request.
func (f *Fetcher) IsLatest(token uint64) bool {
	return token == f.generation.Load()
}

// Wait blocks until every request started so far has delivered its result.
func (f *Fetcher) Wait() {
	f.inflight.Wait()
}

func (f *Fetcher) run(ctx context.Context, req *Request, origin, destination models.Coordinate) {
	defer f.inflight.Done()
	defer req.cancel()
	defer close(req.done)

	f.metrics.RoutesInFlight.Inc()
	defer f.metrics.RoutesInFlight.Dec()

	f.log.DebugContext(ctx, "Fetching route",
		"token", req.Token,
		"provider", f.providerName,
		"origin", origin.String(),
		"destination", destination.String())

	startTime := time.Now()
	route, err := f.provider.Route(ctx, origin, destination)
	f.metrics.RouteSeconds.WithLabelValues(f.providerName).Observe(time.Since(startTime).Seconds())

	result := req.deliver(ctx, route, err)
	f.metrics.RouteRequests.WithLabelValues(f.providerName, outcome(result.Err)).Inc()

	if result.Err != nil {
		f.log.WarnContext(ctx, "Route request failed", "token", req.Token, "error", result.Err)
		return
	}

	f.log.DebugContext(ctx, "Route request completed", "token", req.Token, "points", result.Route.Len())
}
