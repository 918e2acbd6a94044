package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/UnknownOlympus/asclepius/internal/facilities"
	"github.com/UnknownOlympus/asclepius/internal/models"
	"github.com/UnknownOlympus/asclepius/internal/routing"
	"github.com/spf13/cobra"
)

const (
	envProviderKey    = "ASCLEPIUS_PROVIDER_KEY"
	envProviderType   = "ASCLEPIUS_PROVIDER_TYPE"
	envFacilitiesPath = "ASCLEPIUS_FACILITIES_PATH"

	defaultFacilitiesPath = "data/facilities.csv"
	defaultTimeout        = 15 * time.Second
)

type outputFlags struct {
	Format string
}

func addOutputFlags(cmd *cobra.Command, flags *outputFlags) {
	cmd.Flags().StringVar(&flags.Format, "format", string(FormatText), "Output format: text, json, or yaml.")
}

type sourceFlags struct {
	Facilities string
}

func addSourceFlags(cmd *cobra.Command, flags *sourceFlags) {
	cmd.Flags().StringVar(&flags.Facilities, "facilities", "",
		"CSV file with name,latitude,longitude rows. Defaults to $"+envFacilitiesPath+" or "+defaultFacilitiesPath+".")
}

func (f sourceFlags) load(ctx context.Context, deps Dependencies) ([]models.Facility, error) {
	path := strings.TrimSpace(f.Facilities)
	if path == "" {
		path = deps.getenv(envFacilitiesPath)
	}
	if path == "" {
		path = defaultFacilitiesPath
	}

	newSource := deps.NewSource
	if newSource == nil {
		newSource = csvSource
	}

	list, err := newSource(path, deps.logger()).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load facilities: %w", err)
	}

	return list, nil
}

func csvSource(path string, log *slog.Logger) facilities.Source {
	return facilities.NewCSVSource(path, log)
}

type providerFlags struct {
	Key      string
	Provider string
	BaseURL  string
	Timeout  time.Duration
}

func addProviderFlags(cmd *cobra.Command, flags *providerFlags) {
	cmd.Flags().StringVar(&flags.Key, "key", "", "Routing provider API key. Defaults to $"+envProviderKey+".")
	cmd.Flags().StringVar(&flags.Provider, "provider", "",
		"Routing provider: openrouteservice or google. Defaults to $"+envProviderType+" or openrouteservice.")
	cmd.Flags().StringVar(&flags.BaseURL, "base-url", "", "Override the routing provider endpoint.")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", defaultTimeout, "Timeout for the route request.")
}

func (f providerFlags) build(deps Dependencies) (routing.Provider, routing.ProviderType, error) {
	key := strings.TrimSpace(f.Key)
	if key == "" {
		key = deps.getenv(envProviderKey)
	}
	if key == "" {
		return nil, "", usagef("a routing key is required: pass --key or set %s", envProviderKey)
	}

	providerType := strings.TrimSpace(f.Provider)
	if providerType == "" {
		providerType = deps.getenv(envProviderType)
	}
	if providerType == "" {
		providerType = string(routing.ProviderTypeORS)
	}

	newProvider := deps.NewProvider
	if newProvider == nil {
		newProvider = routing.NewProvider
	}

	provider, err := newProvider(routing.ProviderConfig{
		Type:    routing.ProviderType(providerType),
		APIKey:  key,
		BaseURL: f.BaseURL,
		Timeout: f.Timeout,
		Logger:  deps.logger(),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create routing provider: %w", err)
	}

	return provider, routing.ProviderType(providerType), nil
}

// fetchRoute calls the provider once, bounded by the flag timeout.
func (f providerFlags) fetchRoute(
	ctx context.Context,
	provider routing.Provider,
	origin, destination models.Coordinate,
) (models.Route, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	route, err := provider.Route(ctx, origin, destination)
	if err != nil {
		return models.Route{}, fmt.Errorf("failed to fetch route: %w", err)
	}

	return route, nil
}

func parseCoordinateFlag(name, value string) (models.Coordinate, error) {
	coord, err := models.ParseCoordinate(value)
	if err != nil {
		return models.Coordinate{}, usagef("invalid --%s %q: %v", name, value, err)
	}
	return coord, nil
}
