// Package dispatch keeps the state of one caller: where they are, which facility
// they are heading to and the route there. Route results that arrive after a
// newer request was issued are discarded.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/UnknownOlympus/asclepius/internal/locator"
	"github.com/UnknownOlympus/asclepius/internal/metrics"
	"github.com/UnknownOlympus/asclepius/internal/models"
	"github.com/UnknownOlympus/asclepius/internal/routing"
	"github.com/google/uuid"
)

var (
	ErrUnknownFacility = errors.New("unknown facility")
	ErrObserverUnknown = errors.New("observer location is not known yet")
	ErrSessionClosed   = errors.New("session is closed")
)

// Snapshot is an immutable view of a session for renderers.
type Snapshot struct {
	SessionID  string             `json:"session_id"`
	Version    uint64             `json:"version"`
	State      State              `json:"state"`
	Observer   *models.Coordinate `json:"observer,omitempty"`
	Selected   *models.Facility   `json:"selected,omitempty"`
	Manual     bool               `json:"manual"`
	DistanceKm float64            `json:"distance_km,omitempty"`
	Route      *models.Route      `json:"route,omitempty"`
	Error      string             `json:"error,omitempty"`

	err error
}

// Err returns the error of the last failed route fetch or nearest lookup.
func (s Snapshot) Err() error {
	return s.err
}

// Session tracks one caller. All methods are safe for concurrent use.
type Session struct {
	id       string
	log      *slog.Logger
	fetcher  *routing.Fetcher
	metrics  *metrics.Metrics
	onChange func(Snapshot)

	ctx    context.Context // bounds every route fetch of the session
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	version    uint64
	facilities []models.Facility
	observer   *models.Coordinate
	selected   *models.Facility
	manual     bool
	state      State
	route      models.Route
	err        error
	token      uint64
	pending    *routing.Request
}

// Option configures a Session.
type Option func(*Session)

// WithOnChange registers fn to receive a snapshot after every state change.
// Snapshots may arrive out of order; use Snapshot.Version to drop older ones.
func WithOnChange(fn func(Snapshot)) Option {
	return func(s *Session) {
		s.onChange = fn
	}
}

// NewSession creates a session over a fixed candidate list. The list is copied.
func NewSession(
	log *slog.Logger,
	fetcher *routing.Fetcher,
	appMetrics *metrics.Metrics,
	facilities []models.Facility,
	opts ...Option,
) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()

	s := &Session{
		id:         id,
		log:        log.With("session", id),
		fetcher:    fetcher,
		metrics:    appMetrics,
		ctx:        ctx,
		cancel:     cancel,
		facilities: append([]models.Facility(nil), facilities...),
		state:      NoNearestSelected,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// UpdateObserver records a new observer location and recomputes the nearest facility.
// A new route is requested when the nearest facility changed or no route is held or pending;
// any request still in flight is cancelled first. A manual selection is kept.
func (s *Session) UpdateObserver(ctx context.Context, location models.Coordinate) error {
	if err := location.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}

	s.observer = &location
	s.version++

	target := s.selected
	if !s.manual {
		nearest, err := locator.Nearest(location, s.facilities)
		if err != nil {
			s.metrics.NearestLookups.WithLabelValues("empty").Inc()
			s.resetLocked(err)
			snapshot := s.snapshotLocked()
			s.mu.Unlock()

			s.notify(snapshot)
			return fmt.Errorf("failed to find nearest facility: %w", err)
		}
		s.metrics.NearestLookups.WithLabelValues("found").Inc()
		target = &nearest
	}

	if !s.needsFetchLocked(target) {
		snapshot := s.snapshotLocked()
		s.mu.Unlock()

		s.notify(snapshot)
		return nil
	}

	s.log.DebugContext(ctx, "Nearest facility selected", "facility", target.Name)
	s.startFetchLocked(location, *target)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// Select picks a facility by name regardless of distance and fetches a route to it.
// An empty name returns the session to automatic nearest selection.
func (s *Session) Select(ctx context.Context, name string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}

	if name == "" {
		s.manual = false
		observer := s.observer
		s.mu.Unlock()

		if observer == nil {
			return nil
		}
		return s.UpdateObserver(ctx, *observer)
	}

	var target *models.Facility
	for i := range s.facilities {
		if s.facilities[i].Name == name {
			facility := s.facilities[i]
			target = &facility
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownFacility, name)
	}
	if s.observer == nil {
		s.mu.Unlock()
		return ErrObserverUnknown
	}

	s.manual = true
	s.log.DebugContext(ctx, "Facility selected manually", "facility", target.Name)
	s.startFetchLocked(*s.observer, *target)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// Snapshot returns the current state of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

// Wait blocks until every route result issued so far has been applied or discarded.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels any in-flight route fetch and waits for it to finish.
// Later calls to UpdateObserver and Select return ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Session) needsFetchLocked(target *models.Facility) bool {
	if s.selected == nil || s.selected.Name != target.Name || s.selected.Location != target.Location {
		return true
	}

	return s.state == RouteFetchFailed || s.state == NoNearestSelected
}

func (s *Session) resetLocked(err error) {
	if s.pending != nil {
		s.pending.Cancel()
		s.pending = nil
	}
	s.token = 0
	s.selected = nil
	s.manual = false
	s.route = models.Route{}
	s.state = NoNearestSelected
	s.err = err
	s.version++
}

func (s *Session) startFetchLocked(origin models.Coordinate, target models.Facility) {
	if s.pending != nil {
		s.pending.Cancel()
	}

	req := s.fetcher.Fetch(s.ctx, origin, target.Location)

	s.pending = req
	s.token = req.Token
	s.selected = &target
	s.route = models.Route{}
	s.state = RouteFetchPending
	s.err = nil
	s.version++

	s.wg.Add(1)
	go s.await(req)
}

func (s *Session) await(req *routing.Request) {
	defer s.wg.Done()

	result := <-req.Done()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if result.Token != s.token {
		s.mu.Unlock()

		s.metrics.StaleRoutes.Inc()
		s.log.Debug("Discarding superseded route result", "token", result.Token)
		return
	}

	s.pending = nil
	if result.Err != nil {
		s.state = RouteFetchFailed
		s.err = result.Err
		s.log.Warn("Route fetch failed", "facility", s.selected.Name, "error", result.Err)
	} else {
		s.state = RouteReady
		s.route = result.Route
	}
	s.version++
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snapshot)
}

func (s *Session) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		SessionID: s.id,
		Version:   s.version,
		State:     s.state,
		Manual:    s.manual,
		err:       s.err,
	}

	if s.observer != nil {
		observer := *s.observer
		snapshot.Observer = &observer
	}
	if s.selected != nil {
		selected := *s.selected
		snapshot.Selected = &selected
		if s.observer != nil {
			snapshot.DistanceKm = locator.Distance(*s.observer, selected.Location)
		}
	}
	if s.state == RouteReady {
		route := models.Route{Points: append([]models.Coordinate(nil), s.route.Points...)}
		snapshot.Route = &route
	}
	if s.err != nil {
		snapshot.Error = s.err.Error()
	}

	return snapshot
}

func (s *Session) notify(snapshot Snapshot) {
	if s.onChange != nil {
		s.onChange(snapshot)
	}
}
