package cli

import (
	"github.com/spf13/cobra"
)

var modelCmd = &cobra.Command{
	Use:   "model <model-run-id>",
	Short: "Ingest the harvest output of one model run",
	Long: `Ingest the harvest output of one ADCIRC model run. The run ID is
resolved against the run-configuration database; forecast and nowcast
sources are registered on first sight, their files ledgered and loaded,
and the run's station metadata ingested alongside.

Example:
  gauge-ingest model 4358-2024010106-gfsforecast`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		return a.pipeline.RunModel(ctx, args[0])
	},
}
