package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the complete command tree.
func NewRootCommand(deps Dependencies) *cobra.Command {
	root := &cobra.Command{
		Use:           "asclepiusctl",
		Short:         "Find the nearest medical facility and fetch a driving route to it.",
		Version:       deps.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("%s\n", deps.Version))

	root.AddCommand(newFacilitiesCommand(deps))
	root.AddCommand(newNearestCommand(deps))
	root.AddCommand(newRouteCommand(deps))
	root.AddCommand(newSeedCommand(deps))

	return root
}
