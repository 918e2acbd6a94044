package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/UnknownOlympus/asclepius/internal/locator"
	"github.com/UnknownOlympus/asclepius/internal/models"
	"github.com/spf13/cobra"
)

type nearestResult struct {
	Observer   models.Coordinate       `json:"observer" yaml:"observer"`
	Nearest    models.RankedFacility   `json:"nearest" yaml:"nearest"`
	Candidates []models.RankedFacility `json:"candidates" yaml:"candidates"`
	Route      *routeResult            `json:"route,omitempty" yaml:"route,omitempty"`
}

func newNearestCommand(deps Dependencies) *cobra.Command {
	var (
		source    sourceFlags
		output    outputFlags
		provider  providerFlags
		lat, lon  float64
		limit     int
		radiusKm  float64
		withRoute bool
	)

	cmd := &cobra.Command{
		Use:   "nearest",
		Short: "Find the facility closest to a location by great-circle distance.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := ParseFormat(output.Format)
			if err != nil {
				return err
			}
			observer, err := models.NewCoordinate(lat, lon)
			if err != nil {
				return usagef("invalid --lat/--lon: %v", err)
			}
			if limit < 0 {
				return usagef("--limit must not be negative")
			}
			if radiusKm < 0 {
				return usagef("--radius must not be negative")
			}

			list, err := source.load(cmd.Context(), deps)
			if err != nil {
				return err
			}

			var ranked []models.RankedFacility
			if radiusKm > 0 {
				ranked, err = locator.Within(observer, list, radiusKm)
			} else {
				ranked, err = locator.Rank(observer, list)
			}
			if errors.Is(err, locator.ErrEmptyCandidateSet) {
				return errors.New("no facilities loaded, nothing to search")
			}
			if err != nil {
				return err
			}
			if len(ranked) == 0 {
				return fmt.Errorf("no facility within %.1f km", radiusKm)
			}

			result := nearestResult{Observer: observer, Nearest: ranked[0], Candidates: ranked}
			if limit > 0 && len(result.Candidates) > limit {
				result.Candidates = result.Candidates[:limit]
			}

			if withRoute {
				routingProvider, providerType, errBuild := provider.build(deps)
				if errBuild != nil {
					return errBuild
				}
				route, errRoute := provider.fetchRoute(cmd.Context(), routingProvider, observer, result.Nearest.Facility.Location)
				if errRoute != nil {
					return errRoute
				}
				summary := summarizeRoute(providerType, route)
				result.Route = &summary
			}

			return writeResult(cmd.OutOrStdout(), format, deps.Version, result, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "Nearest: %s (%.2f km)\n\n", result.Nearest.Facility.Name, result.Nearest.DistanceKm)
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "#\tNAME\tDISTANCE_KM")
				for idx, candidate := range result.Candidates {
					_, _ = fmt.Fprintf(tw, "%d\t%s\t%.2f\n", idx+1, candidate.Facility.Name, candidate.DistanceKm)
				}
				_ = tw.Flush()
				if result.Route != nil {
					_, _ = fmt.Fprintln(w)
					writeRouteText(w, *result.Route, false)
				}
			})
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "Observer latitude in degrees. (required)")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Observer longitude in degrees. (required)")
	cmd.Flags().IntVar(&limit, "limit", 5, "Number of ranked candidates to print, 0 for all.")
	cmd.Flags().Float64Var(&radiusKm, "radius", 0, "Only consider facilities within this many kilometres.")
	cmd.Flags().BoolVar(&withRoute, "route", false, "Also fetch a driving route to the nearest facility.")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	addSourceFlags(cmd, &source)
	addProviderFlags(cmd, &provider)
	addOutputFlags(cmd, &output)

	return cmd
}
