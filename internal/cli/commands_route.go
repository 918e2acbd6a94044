package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/UnknownOlympus/asclepius/internal/locator"
	"github.com/UnknownOlympus/asclepius/internal/models"
	"github.com/UnknownOlympus/asclepius/internal/routing"
	"github.com/spf13/cobra"
)

type routeResult struct {
	Provider    string              `json:"provider" yaml:"provider"`
	Points      int                 `json:"points" yaml:"points"`
	LengthKm    float64             `json:"length_km" yaml:"length_km"`
	Coordinates []models.Coordinate `json:"coordinates" yaml:"coordinates"`
}

// summarizeRoute measures the path as the sum of great-circle legs between waypoints.
func summarizeRoute(providerType routing.ProviderType, route models.Route) routeResult {
	length := 0.0
	for i := 1; i < len(route.Points); i++ {
		length += locator.Distance(route.Points[i-1], route.Points[i])
	}

	return routeResult{
		Provider:    string(providerType),
		Points:      route.Len(),
		LengthKm:    length,
		Coordinates: route.Points,
	}
}

func writeRouteText(w io.Writer, route routeResult, withPoints bool) {
	_, _ = fmt.Fprintf(w, "Route via %s: %d points, %.2f km\n", route.Provider, route.Points, route.LengthKm)
	if !withPoints {
		return
	}
	for _, point := range route.Coordinates {
		_, _ = fmt.Fprintln(w, point.String())
	}
}

func newRouteCommand(deps Dependencies) *cobra.Command {
	var (
		source   sourceFlags
		output   outputFlags
		provider providerFlags
		from     string
		to       string
		facility string
	)

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Fetch a driving route between two points.",
		Long: "Fetch a driving route from --from to either --to or the facility named by --facility.\n" +
			"Coordinates are given as lat,lon.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := ParseFormat(output.Format)
			if err != nil {
				return err
			}

			origin, err := parseCoordinateFlag("from", from)
			if err != nil {
				return err
			}

			var destination models.Coordinate
			switch {
			case to != "" && facility != "":
				return usagef("--to and --facility cannot be combined")
			case to != "":
				if destination, err = parseCoordinateFlag("to", to); err != nil {
					return err
				}
			case facility != "":
				list, errLoad := source.load(cmd.Context(), deps)
				if errLoad != nil {
					return errLoad
				}
				found := false
				for _, candidate := range list {
					if strings.EqualFold(candidate.Name, strings.TrimSpace(facility)) {
						destination, found = candidate.Location, true
						break
					}
				}
				if !found {
					return fmt.Errorf("no facility named %q", facility)
				}
			default:
				return usagef("one of --to or --facility is required")
			}

			routingProvider, providerType, err := provider.build(deps)
			if err != nil {
				return err
			}

			route, err := provider.fetchRoute(cmd.Context(), routingProvider, origin, destination)
			if err != nil {
				return err
			}

			summary := summarizeRoute(providerType, route)
			return writeResult(cmd.OutOrStdout(), format, deps.Version, summary, func(w io.Writer) {
				writeRouteText(w, summary, true)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Origin as lat,lon. (required)")
	cmd.Flags().StringVar(&to, "to", "", "Destination as lat,lon.")
	cmd.Flags().StringVar(&facility, "facility", "", "Destination facility name, looked up in --facilities.")
	_ = cmd.MarkFlagRequired("from")
	addSourceFlags(cmd, &source)
	addProviderFlags(cmd, &provider)
	addOutputFlags(cmd, &output)

	return cmd
}
