package store

import (
	"context"
	"fmt"
)

// LedgerStatus summarizes the known-file ledgers for operators.
type LedgerStatus struct {
	ObsRegistered     int64 `json:"obs_registered"`
	ObsPending        int64 `json:"obs_pending"`
	ModelRegistered   int64 `json:"model_registered"`
	ModelPending      int64 `json:"model_pending"`
	StationRegistered int64 `json:"station_registered"`
	StationPending    int64 `json:"station_pending"`
}

// Status counts registered and pending files across all three ledgers.
func (s *Store) Status(ctx context.Context) (LedgerStatus, error) {
	var status LedgerStatus
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM harvest_obs_file),
			(SELECT count(*) FROM harvest_obs_file WHERE ingested = FALSE),
			(SELECT count(*) FROM harvest_model_file),
			(SELECT count(*) FROM harvest_model_file WHERE ingested = FALSE),
			(SELECT count(*) FROM harvest_station_file),
			(SELECT count(*) FROM harvest_station_file WHERE ingested = FALSE)`).
		Scan(&status.ObsRegistered, &status.ObsPending,
			&status.ModelRegistered, &status.ModelPending,
			&status.StationRegistered, &status.StationPending)
	if err != nil {
		return LedgerStatus{}, fmt.Errorf("ledger status: %w", err)
	}
	return status, nil
}
