package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/UnknownOlympus/asclepius/internal/dispatch"
	"github.com/UnknownOlympus/asclepius/internal/locator"
	"github.com/UnknownOlympus/asclepius/internal/models"
	"github.com/UnknownOlympus/asclepius/internal/report"
	"github.com/UnknownOlympus/asclepius/internal/routing"
)

// statusClientClosedRequest is the nginx convention for a client that went away.
const statusClientClosedRequest = 499

var (
	errMissingParameter = errors.New("missing query parameter")
	errNoSession        = errors.New("no tracking session configured")
)

type errorResponse struct {
	Error          string `json:"error"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}

type facilitiesResponse struct {
	Count      int               `json:"count"`
	Facilities []models.Facility `json:"facilities"`
}

type nearestResponse struct {
	Observer   models.Coordinate       `json:"observer"`
	Nearest    models.RankedFacility   `json:"nearest"`
	Candidates []models.RankedFacility `json:"candidates"`
}

type routeResponse struct {
	Origin      models.Coordinate `json:"origin"`
	Destination models.Coordinate `json:"destination"`
	Facility    *models.Facility  `json:"facility,omitempty"`
	DistanceKm  float64           `json:"distance_km"`
	Route       models.Route      `json:"route"`
}

type selectionRequest struct {
	Name string `json:"name"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.log.DebugContext(ctx, "Performing health checks...")

	status, body := http.StatusOK, "OK"
	if s.health != nil {
		if err := s.health(ctx); err != nil {
			s.log.WarnContext(ctx, "Health check failed", "error", err)
			status, body = http.StatusServiceUnavailable, "health check failed"
		}
	}

	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		s.log.ErrorContext(ctx, "failed to write reply", "error", err)
	}
}

func (s *Server) facilitiesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.loadFacilities(r)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, facilitiesResponse{Count: len(list), Facilities: list})
}

func (s *Server) nearestHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	observer, err := parseCoordinate(query, "lat", "lon")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
	}

	list, err := s.loadFacilities(r)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	ranked, err := locator.Rank(observer, list)
	if errors.Is(err, locator.ErrEmptyCandidateSet) {
		s.metrics.NearestLookups.WithLabelValues("empty").Inc()
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.metrics.NearestLookups.WithLabelValues("found").Inc()

	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}

	s.writeJSON(w, r, http.StatusOK, nearestResponse{
		Observer:   observer,
		Nearest:    ranked[0],
		Candidates: ranked,
	})
}

func (s *Server) routeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	origin, err := parseCoordinate(query, "from_lat", "from_lon")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	var facility *models.Facility
	var destination models.Coordinate
	if name := query.Get("to"); name != "" {
		list, errLoad := s.loadFacilities(r)
		if errLoad != nil {
			s.writeError(w, r, http.StatusInternalServerError, errLoad)
			return
		}
		for i := range list {
			if list[i].Name == name {
				facility = &list[i]
				break
			}
		}
		if facility == nil {
			s.writeError(w, r, http.StatusNotFound, fmt.Errorf("%w: %q", dispatch.ErrUnknownFacility, name))
			return
		}
		destination = facility.Location
	} else {
		destination, err = parseCoordinate(query, "to_lat", "to_lon")
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, err)
			return
		}
	}

	result := <-s.fetcher.Fetch(ctx, origin, destination).Done()
	if result.Err != nil {
		status := routeErrorStatus(result.Err)
		if status >= http.StatusInternalServerError {
			name := ""
			if facility != nil {
				name = facility.Name
			}
			report.ReportRouteError(result.Err, name)
		}
		s.writeError(w, r, status, result.Err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, routeResponse{
		Origin:      origin,
		Destination: destination,
		Facility:    facility,
		DistanceKm:  locator.Distance(origin, destination),
		Route:       result.Route,
	})
}

func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		s.writeError(w, r, http.StatusNotFound, errNoSession)
		return
	}

	s.writeJSON(w, r, http.StatusOK, s.session.Snapshot())
}

func (s *Server) sessionObserverHandler(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		s.writeError(w, r, http.StatusNotFound, errNoSession)
		return
	}

	var location models.Coordinate
	if err := json.NewDecoder(r.Body).Decode(&location); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("failed to decode observer: %w", err))
		return
	}

	if err := s.session.UpdateObserver(r.Context(), location); err != nil {
		s.writeError(w, r, sessionErrorStatus(err), err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, s.session.Snapshot())
}

func (s *Server) sessionSelectionHandler(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		s.writeError(w, r, http.StatusNotFound, errNoSession)
		return
	}

	var selection selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&selection); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("failed to decode selection: %w", err))
		return
	}

	if err := s.session.Select(r.Context(), selection.Name); err != nil {
		s.writeError(w, r, sessionErrorStatus(err), err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, s.session.Snapshot())
}

func (s *Server) loadFacilities(r *http.Request) ([]models.Facility, error) {
	list, err := s.facilities.Load(r.Context())
	if err != nil {
		report.ReportError(err)
		return nil, fmt.Errorf("failed to load facilities: %w", err)
	}

	s.metrics.FacilitiesTotal.Set(float64(len(list)))

	return list, nil
}

// routeErrorStatus maps routing failures onto response codes.
func routeErrorStatus(err error) int {
	if _, ok := routing.StatusCode(err); ok {
		return http.StatusBadGateway
	}

	switch {
	case errors.Is(err, routing.ErrCancelled):
		return statusClientClosedRequest
	case errors.Is(err, routing.ErrInvalidEndpoint):
		return http.StatusBadRequest
	case errors.Is(err, routing.ErrNetworkUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, routing.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func sessionErrorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidCoordinate):
		return http.StatusBadRequest
	case errors.Is(err, locator.ErrEmptyCandidateSet), errors.Is(err, dispatch.ErrUnknownFacility):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrObserverUnknown):
		return http.StatusConflict
	case errors.Is(err, dispatch.ErrSessionClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parseCoordinate(query url.Values, latKey, lonKey string) (models.Coordinate, error) {
	latText, lonText := query.Get(latKey), query.Get(lonKey)
	if latText == "" || lonText == "" {
		return models.Coordinate{}, fmt.Errorf("%w: %s and %s are required", errMissingParameter, latKey, lonKey)
	}

	return models.ParseCoordinate(latText + "," + lonText)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.ErrorContext(r.Context(), "failed to write reply", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	requestID := RequestIDFrom(r.Context())
	s.log.WarnContext(r.Context(), "Request failed",
		"path", r.URL.Path, "status", status, "request_id", requestID, "error", err)

	resp := errorResponse{Error: err.Error(), RequestID: requestID}
	if upstream, ok := routing.StatusCode(err); ok {
		resp.UpstreamStatus = upstream
	}

	s.writeJSON(w, r, status, resp)
}
