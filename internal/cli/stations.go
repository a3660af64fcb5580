package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var stationsDir string

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "Manage station geometry",
}

func init() {
	stationsIngestCmd.Flags().StringVar(&stationsDir, "dir", "",
		"directory holding geom_*.csv files (defaults to the harvest directory)")
	stationsCmd.AddCommand(stationsIngestCmd)
}

var stationsIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Bulk-load station geometry CSVs",
	Long: `Bulk-load every geom_*.csv in the station directory into the station
table. Each file is deleted after a successful load, so a re-run only
picks up files that failed or arrived since.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		dir := stationsDir
		if dir == "" {
			dir = a.cfg.HarvestDir
		}

		paths, err := filepath.Glob(filepath.Join(dir, "geom_*.csv"))
		if err != nil {
			return fmt.Errorf("glob station files: %w", err)
		}
		if len(paths) == 0 {
			a.logger.Info("no station geometry files found", "dir", dir)
			return nil
		}

		for _, path := range paths {
			rows, err := a.store.IngestStationGeom(ctx, path)
			if err != nil {
				return err
			}
			a.logger.Info("loaded station geometry", "file", filepath.Base(path), "rows", rows)
			if err := os.Remove(path); err != nil {
				a.logger.Warn("could not remove station file", "file", path, "error", err)
			}
		}
		return nil
	},
}
