// Package runconfig resolves model run identifiers against the external
// run-configuration database. Run properties live there as key/value rows per
// (instance_id, uid); this client folds them into a typed record and fails
// closed when the run is missing or ambiguous.
package runconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/gauge-data-ingest/internal/domain"
)

// Client reads run properties from the run-configuration database.
type Client struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Client, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse run-config url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect run-config: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping run-config: %w", err)
	}
	return &Client{pool: pool}, nil
}

// NewWithPool wraps an existing pool, for tests sharing a container.
func NewWithPool(pool *pgxpool.Pool) *Client {
	return &Client{pool: pool}
}

func (c *Client) Close() {
	c.pool.Close()
}

// Property keys a run must carry. Storm-specific keys are optional for
// synoptic runs.
var requiredKeys = []string{
	"suite.model",
	"ADCIRCgrid",
	"advisory",
	"forcing.ensemblename",
	"forcing.metclass",
	"instancename",
	"storm",
	"physical_location",
	"time.currentdate",
	"time.currentcycle",
}

// RunProperties resolves a model run ID ("<instance_id>-<uid>") to its
// configuration. Zero matching rows yield ErrNotFound; a key appearing more
// than once yields ErrAmbiguousRun. No guessing either way.
func (c *Client) RunProperties(ctx context.Context, modelRunID string) (domain.RunProperties, error) {
	instanceID, uid, ok := strings.Cut(modelRunID, "-")
	if !ok || instanceID == "" || uid == "" {
		return domain.RunProperties{}, fmt.Errorf("run id %q is not <instance_id>-<uid>", modelRunID)
	}

	rows, err := c.pool.Query(ctx,
		`SELECT key, value FROM run_property WHERE instance_id = $1 AND uid = $2`,
		instanceID, uid)
	if err != nil {
		return domain.RunProperties{}, fmt.Errorf("run properties %s: %w", modelRunID, err)
	}
	defer rows.Close()

	props := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return domain.RunProperties{}, fmt.Errorf("run properties %s: %w", modelRunID, err)
		}
		if _, dup := props[key]; dup {
			return domain.RunProperties{}, fmt.Errorf("run properties %s: key %q: %w",
				modelRunID, key, domain.ErrAmbiguousRun)
		}
		props[key] = value
	}
	if err := rows.Err(); err != nil {
		return domain.RunProperties{}, fmt.Errorf("run properties %s: %w", modelRunID, err)
	}
	if len(props) == 0 {
		return domain.RunProperties{}, fmt.Errorf("run properties %s: %w", modelRunID, domain.ErrNotFound)
	}
	for _, key := range requiredKeys {
		if props[key] == "" {
			return domain.RunProperties{}, fmt.Errorf("run properties %s: missing key %q: %w",
				modelRunID, key, domain.ErrNotFound)
		}
	}

	return domain.RunProperties{
		ModelRunID:    modelRunID,
		SourceName:    props["suite.model"],
		GridName:      props["ADCIRCgrid"],
		Advisory:      props["advisory"],
		EnsembleName:  props["forcing.ensemblename"],
		Metclass:      props["forcing.metclass"],
		Instance:      props["instancename"],
		Storm:         props["storm"],
		StormName:     props["stormname"],
		StormNumber:   props["stormnumber"],
		SourceArchive: props["physical_location"],
		CurrentDate:   props["time.currentdate"],
		CurrentCycle:  props["time.currentcycle"],
		WorkflowType:  props["workflow_type"],
	}, nil
}
