package cli

import (
	"github.com/spf13/cobra"
)

var obsCmd = &cobra.Command{
	Use:   "obs",
	Short: "Run one observation ingest pass",
	Long: `Run a single observation ingest pass: discover new station-data files
for every registered observation source, register them in the ledger,
and load what is pending.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		return a.pipeline.RunObs(ctx)
	},
}
