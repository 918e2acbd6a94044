package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/UnknownOlympus/asclepius/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleProvider is a struct that holds the client for Google Maps API
// and a logger for logging purposes. It is used to request driving
// directions from the Google Maps Directions service.
type GoogleProvider struct {
	client GoogleAPIClient // client is the Google Maps API client
	log    *slog.Logger    // log is the logger for logging operations
}

type GoogleAPIClient interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// googleStatusCodes maps Directions API status strings onto HTTP-like codes
// so both providers report upstream refusals the same way.
var googleStatusCodes = map[string]int{
	"INVALID_REQUEST":           http.StatusBadRequest,
	"MAX_WAYPOINTS_EXCEEDED":    http.StatusBadRequest,
	"MAX_ROUTE_LENGTH_EXCEEDED": http.StatusBadRequest,
	"REQUEST_DENIED":            http.StatusForbidden,
	"NOT_FOUND":                 http.StatusNotFound,
	"ZERO_RESULTS":              http.StatusNotFound,
	"OVER_DAILY_LIMIT":          http.StatusTooManyRequests,
	"OVER_QUERY_LIMIT":          http.StatusTooManyRequests,
	"UNKNOWN_ERROR":             http.StatusInternalServerError,
}

// NewGoogleProvider initializes a new GoogleProvider with the given Directions client and logger.
func NewGoogleProvider(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// Route requests driving directions from origin to destination and returns the
// decoded overview polyline of the first route.
func (gp *GoogleProvider) Route(
	ctx context.Context,
	origin, destination models.Coordinate,
) (models.Route, error) {
	if err := origin.Validate(); err != nil {
		return models.Route{}, fmt.Errorf("%w: origin: %w", ErrInvalidEndpoint, err)
	}
	if err := destination.Validate(); err != nil {
		return models.Route{}, fmt.Errorf("%w: destination: %w", ErrInvalidEndpoint, err)
	}

	gp.log.DebugContext(ctx, "Routing using Google Maps", "origin", origin.String(), "destination", destination.String())

	req := &maps.DirectionsRequest{
		Origin:      origin.String(),
		Destination: destination.String(),
		Mode:        maps.TravelModeDriving,
	}
	routes, _, err := gp.client.Directions(ctx, req)
	if err != nil {
		return models.Route{}, classifyGoogleError(ctx, err)
	}

	if len(routes) == 0 {
		return models.Route{}, &HTTPError{Status: http.StatusNotFound, Body: "ZERO_RESULTS"}
	}

	path, err := routes[0].OverviewPolyline.Decode()
	if err != nil {
		return models.Route{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if len(path) == 0 {
		return models.Route{}, fmt.Errorf("%w: route has no coordinates", ErrMalformedResponse)
	}

	points := make([]models.Coordinate, 0, len(path))
	for idx, latLng := range path {
		point := models.Coordinate{Latitude: latLng.Lat, Longitude: latLng.Lng}
		if err = point.Validate(); err != nil {
			return models.Route{}, fmt.Errorf("%w: coordinate %d: %w", ErrMalformedResponse, idx, err)
		}
		points = append(points, point)
	}

	return models.Route{Points: points}, nil
}

// classifyGoogleError maps errors from the maps client. The client reports API
// statuses as "maps: <STATUS> - <message>".
func classifyGoogleError(ctx context.Context, err error) error {
	redactURLError(err)

	msg := err.Error()
	if strings.HasPrefix(msg, "maps: ") {
		status, _, _ := strings.Cut(strings.TrimPrefix(msg, "maps: "), " ")
		if code, ok := googleStatusCodes[status]; ok {
			return &HTTPError{Status: code, Body: msg}
		}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	return classifyTransportError(ctx, err)
}

var _ Provider = (*GoogleProvider)(nil)
