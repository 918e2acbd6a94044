package routing

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"
)

// ProviderType represents the type of routing provider.
type ProviderType string

const (
	// ProviderTypeORS represents the OpenRouteService directions provider.
	ProviderTypeORS ProviderType = "openrouteservice"
	// ProviderTypeGoogle represents the Google Maps Directions provider.
	ProviderTypeGoogle ProviderType = "google"
)

// ProviderConfig holds configuration for creating a routing provider.
type ProviderConfig struct {
	Type       ProviderType  // Type of provider to create
	APIKey     string        // API key, required by every provider
	BaseURL    string        // Overrides the provider endpoint when set
	RateLimit  int           // Requests per second, 0 disables pacing
	Timeout    time.Duration // Per-request timeout when HTTPClient is nil
	HTTPClient *http.Client  // Shared client, see NewPooledClient
	Logger     *slog.Logger  // Logger for the provider
}

// NewProvider creates a routing provider based on the provided configuration.
//
// Supported provider types:
// - "openrouteservice": OpenRouteService directions API (requires API key)
// - "google": Google Maps Directions API (requires API key)
//
// Returns an error if the provider type is unsupported or if provider creation fails.
func NewProvider(config ProviderConfig) (Provider, error) {
	switch config.Type {
	case ProviderTypeORS:
		return newORSProvider(config)
	case ProviderTypeGoogle:
		return newGoogleProvider(config)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}

// newORSProvider creates an OpenRouteService routing provider.
func newORSProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required for OpenRouteService provider")
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimit)
	}

	client := config.HTTPClient
	if client == nil {
		const defaultTimeout = 15 * time.Second
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	provider := NewORSProviderWithClient(client, config.APIKey, limiter, config.Logger)
	if config.BaseURL != "" {
		provider.baseURL = config.BaseURL
	}

	return provider, nil
}

// newGoogleProvider creates a Google Maps routing provider.
func newGoogleProvider(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("API key is required for Google provider")
	}

	clientOpts := []maps.ClientOption{
		maps.WithAPIKey(config.APIKey),
	}

	if config.RateLimit > 0 {
		clientOpts = append(clientOpts, maps.WithRateLimit(config.RateLimit))
	}
	if config.HTTPClient != nil {
		clientOpts = append(clientOpts, maps.WithHTTPClient(config.HTTPClient))
	}
	if config.BaseURL != "" {
		clientOpts = append(clientOpts, maps.WithBaseURL(config.BaseURL))
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return NewGoogleProvider(client, config.Logger), nil
}
