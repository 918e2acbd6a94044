package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newFacilitiesCommand(deps Dependencies) *cobra.Command {
	var (
		source sourceFlags
		output outputFlags
	)

	cmd := &cobra.Command{
		Use:   "facilities",
		Short: "List the candidate facilities in file order.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := ParseFormat(output.Format)
			if err != nil {
				return err
			}

			list, err := source.load(cmd.Context(), deps)
			if err != nil {
				return err
			}

			return writeResult(cmd.OutOrStdout(), format, deps.Version, list, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "NAME\tLATITUDE\tLONGITUDE")
				for _, facility := range list {
					_, _ = fmt.Fprintf(tw, "%s\t%.6f\t%.6f\n",
						facility.Name, facility.Location.Latitude, facility.Location.Longitude)
				}
				_ = tw.Flush()
			})
		},
	}
	addSourceFlags(cmd, &source)
	addOutputFlags(cmd, &output)

	return cmd
}
