package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/UnknownOlympus/asclepius/internal/models"
	"golang.org/x/time/rate"
)

// ORSBaseURL -- OpenRouteService driving directions endpoint.
const ORSBaseURL = "https://api.openrouteservice.org/v2/directions/driving-car"

// maxErrorBody caps how much of a failed response is kept for error messages.
const maxErrorBody = 4 << 10

// MaxRouteBody caps a successful directions response. Larger documents are malformed.
const MaxRouteBody = 8 << 20

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ORSProvider implements the Provider interface using the OpenRouteService directions API.
// It issues exactly one request per Route call and never retries.
type ORSProvider struct {
	client  HTTPClient    // HTTP client for making requests
	baseURL string        // Base URL for the directions endpoint
	apiKey  string        // API key, sent as the api_key query parameter
	log     *slog.Logger  // Logger for logging operations
	limiter *rate.Limiter // Rate limiter, nil disables pacing
}

// orsResponse is the GeoJSON document returned by the directions endpoint.
// Pointers distinguish absent fields from zero values.
type orsResponse struct {
	Features *[]struct {
		Geometry *struct {
			Coordinates [][]*float64 `json:"coordinates"` // [[lon, lat], ...]
		} `json:"geometry"`
	} `json:"features"`
}

// NewORSProviderWithClient allows injecting custom HTTP client.
func NewORSProviderWithClient(
	client HTTPClient,
	apiKey string,
	limiter *rate.Limiter,
	log *slog.Logger,
) *ORSProvider {
	return &ORSProvider{
		client:  client,
		baseURL: ORSBaseURL,
		apiKey:  apiKey,
		log:     log,
		limiter: limiter,
	}
}

// Route fetches a driving route from origin to destination.
func (op *ORSProvider) Route(
	ctx context.Context,
	origin, destination models.Coordinate,
) (models.Route, error) {
	if err := origin.Validate(); err != nil {
		return models.Route{}, fmt.Errorf("%w: origin: %w", ErrInvalidEndpoint, err)
	}
	if err := destination.Validate(); err != nil {
		return models.Route{}, fmt.Errorf("%w: destination: %w", ErrInvalidEndpoint, err)
	}

	if op.limiter != nil {
		if err := op.limiter.Wait(ctx); err != nil {
			return models.Route{}, classifyTransportError(ctx, fmt.Errorf("rate limit wait: %w", err))
		}
	}

	reqURL, err := op.requestURL(origin, destination)
	if err != nil {
		return models.Route{}, err
	}

	op.log.DebugContext(ctx, "OpenRouteService request", "url", redact(reqURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return models.Route{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json, application/geo+json")

	resp, err := op.client.Do(req)
	if err != nil {
		redactURLError(err)
		return models.Route{}, classifyTransportError(ctx, fmt.Errorf("failed to execute route request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		op.log.ErrorContext(ctx, "OpenRouteService API error", "status", resp.StatusCode, "body", string(body))
		return models.Route{}, &HTTPError{Status: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxRouteBody+1))
	if err != nil {
		return models.Route{}, classifyTransportError(ctx, fmt.Errorf("failed to read response body: %w", err))
	}
	if len(body) > MaxRouteBody {
		op.log.ErrorContext(ctx, "OpenRouteService response too large", "limit", MaxRouteBody)
		return models.Route{}, fmt.Errorf("%w: response exceeds %d bytes", ErrMalformedResponse, MaxRouteBody)
	}

	route, err := decodeORSRoute(body)
	if err != nil {
		op.log.ErrorContext(ctx, "Failed to parse OpenRouteService response", "error", err)
		return models.Route{}, err
	}

	op.log.DebugContext(ctx, "OpenRouteService returned route", "points", route.Len())

	return route, nil
}

func (op *ORSProvider) requestURL(origin, destination models.Coordinate) (*url.URL, error) {
	reqURL, err := url.Parse(op.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := reqURL.Query()
	query.Set("api_key", op.apiKey)
	query.Set("start", lonLatParam(origin))
	query.Set("end", lonLatParam(destination))
	reqURL.RawQuery = query.Encode()

	return reqURL, nil
}

// decodeORSRoute converts a directions document into a Route.
// Any deviation from the expected shape fails the whole decode.
func decodeORSRoute(body []byte) (models.Route, error) {
	const pairLength = 2

	var decoded orsResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return models.Route{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if decoded.Features == nil {
		return models.Route{}, fmt.Errorf("%w: missing features", ErrMalformedResponse)
	}
	if len(*decoded.Features) == 0 {
		return models.Route{}, fmt.Errorf("%w: empty features", ErrMalformedResponse)
	}

	geometry := (*decoded.Features)[0].Geometry
	if geometry == nil {
		return models.Route{}, fmt.Errorf("%w: missing geometry", ErrMalformedResponse)
	}
	if len(geometry.Coordinates) == 0 {
		return models.Route{}, fmt.Errorf("%w: route has no coordinates", ErrMalformedResponse)
	}

	points := make([]models.Coordinate, 0, len(geometry.Coordinates))
	for idx, pair := range geometry.Coordinates {
		if len(pair) != pairLength || pair[0] == nil || pair[1] == nil {
			return models.Route{}, fmt.Errorf("%w: coordinate %d is not a [lon, lat] pair", ErrMalformedResponse, idx)
		}

		point := models.Coordinate{Latitude: *pair[1], Longitude: *pair[0]}
		if err := point.Validate(); err != nil {
			return models.Route{}, fmt.Errorf("%w: coordinate %d: %w", ErrMalformedResponse, idx, err)
		}
		points = append(points, point)
	}

	return models.Route{Points: points}, nil
}

func lonLatParam(c models.Coordinate) string {
	return strconv.FormatFloat(c.Longitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Latitude, 'f', -1, 64)
}

// credentialParams are query parameters that carry provider keys.
var credentialParams = []string{"api_key", "key"}

// redact hides the API key before a URL is logged.
func redact(u *url.URL) string {
	clone := *u
	query := clone.Query()
	for _, param := range credentialParams {
		if query.Has(param) {
			query.Set(param, "REDACTED")
		}
	}
	clone.RawQuery = query.Encode()

	return clone.String()
}

// redactURLError rewrites the URL inside a transport error, which net/http
// includes verbatim in the error message.
func redactURLError(err error) {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return
	}

	if parsed, errParse := url.Parse(urlErr.URL); errParse == nil {
		urlErr.URL = redact(parsed)
	} else {
		urlErr.URL = "REDACTED"
	}
}

var _ Provider = (*ORSProvider)(nil)
