package cli

import (
	"github.com/spf13/cobra"
)

var initSchemaCmd = &cobra.Command{
	Use:   "init-schema",
	Short: "Create the warehouse tables, indexes, and views",
	Long: `Create the warehouse schema. Every statement is idempotent, so the
command is safe to re-run against an existing database.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.store.InitSchema(ctx); err != nil {
			return err
		}
		a.logger.Info("schema initialized")
		return nil
	},
}
