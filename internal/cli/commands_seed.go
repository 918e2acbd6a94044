package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newSeedCommand(deps Dependencies) *cobra.Command {
	var source sourceFlags

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import facilities from CSV into the postgres facilities table.",
		Long:  "Import facilities from CSV into postgres. Connection settings come from DB_HOST, DB_PORT, DB_USERNAME, DB_PASSWORD and DB_NAME.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.OpenSeeder == nil {
				return errors.New("database seeding is not available")
			}

			list, err := source.load(cmd.Context(), deps)
			if err != nil {
				return err
			}

			seeder, closeFn, err := deps.OpenSeeder(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer closeFn()

			if err = seeder.InitSchema(cmd.Context()); err != nil {
				return err
			}
			if err = seeder.Seed(cmd.Context(), list); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d facilities\n", len(list))
			return nil
		},
	}
	addSourceFlags(cmd, &source)

	return cmd
}
