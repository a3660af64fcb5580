package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RunProperties are the configuration values of one ADCIRC model run, fetched
// from the run-configuration store by model run ID. Field names track the
// run-config keys they come from.
type RunProperties struct {
	ModelRunID    string
	SourceName    string // suite.model
	GridName      string // ADCIRCgrid
	Advisory      string
	EnsembleName  string // forcing.ensemblename
	Metclass      string // forcing.metclass, "synoptic" or "tropical"
	Instance      string // instancename
	Storm         string
	StormName     string
	StormNumber   string
	SourceArchive string // physical_location
	CurrentDate   string // YYMMDD
	CurrentCycle  string // cycle hour, "0".."23"
	WorkflowType  string
}

// ModelRunID joins an instance ID and uid into the run identifier used across
// the run-configuration store, the harvest directory, and the ledger.
func ModelRunID(instanceID, uid string) string {
	return instanceID + "-" + uid
}

// Synoptic reports whether the run is weather-driven rather than
// storm-driven. Anything that is not synoptic is treated as tropical.
func (r RunProperties) Synoptic() bool {
	return strings.EqualFold(r.Metclass, "synoptic")
}

// Timemark derives the run's logical epoch from its current date and cycle
// hour. The result is ISO without seconds ("2024-01-01T06:00"), which is what
// the ledger stores and what filename prefix matching uses.
func (r RunProperties) Timemark() (string, error) {
	if len(r.CurrentDate) != 6 {
		return "", fmt.Errorf("run %s: current date %q is not YYMMDD", r.ModelRunID, r.CurrentDate)
	}
	year, err := strconv.Atoi("20" + r.CurrentDate[0:2])
	if err != nil {
		return "", fmt.Errorf("run %s: current date %q: %w", r.ModelRunID, r.CurrentDate, err)
	}
	month, err := strconv.Atoi(r.CurrentDate[2:4])
	if err != nil {
		return "", fmt.Errorf("run %s: current date %q: %w", r.ModelRunID, r.CurrentDate, err)
	}
	day, err := strconv.Atoi(r.CurrentDate[4:6])
	if err != nil {
		return "", fmt.Errorf("run %s: current date %q: %w", r.ModelRunID, r.CurrentDate, err)
	}
	cycle, err := strconv.Atoi(r.CurrentCycle)
	if err != nil {
		return "", fmt.Errorf("run %s: current cycle %q: %w", r.ModelRunID, r.CurrentCycle, err)
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || cycle < 0 || cycle > 23 {
		return "", fmt.Errorf("run %s: date %q cycle %q out of range", r.ModelRunID, r.CurrentDate, r.CurrentCycle)
	}
	t := time.Date(year, time.Month(month), day, cycle, 0, 0, 0, time.UTC)
	return t.Format("2006-01-02T15:04"), nil
}

// RunSource is one data source of a model run: the tag under which its rows
// are registered, and the filename prefix that finds its harvest files.
type RunSource struct {
	DataSource string
	Prefix     string
}

// HarvestGlob is the pattern that finds all of a run's harvest files,
// regardless of forecast or nowcast, before the station type is known.
func (r RunProperties) HarvestGlob() string {
	return r.SourceName + "_" + r.Storm + "_" + strings.ToUpper(r.SourceArchive) + "_" +
		strings.ToUpper(r.EnsembleName) + "_*.csv"
}

// StationTypeFromFile pulls the station-type token out of a model harvest
// filename. The token sits fourth from the end, after the grid and mode
// segments and before the embedded timestamps.
func StationTypeFromFile(filename string) (string, error) {
	parts := strings.Split(filename, "_")
	if len(parts) < 4 {
		return "", fmt.Errorf("model harvest file %q has too few segments for a station type", filename)
	}
	return parts[len(parts)-4], nil
}

// Sources derives the forecast and nowcast run sources for one station type.
// Synoptic runs name sources by ensemble and grid alone; tropical runs fold
// the storm in, and keep the ensemble name's original case in the forecast
// prefix. Nowcast prefixes use NOWCAST in both positions for either class.
func (r RunProperties) Sources(stationType string) (forecast, nowcast RunSource) {
	grid := strings.ToUpper(r.GridName)
	archive := strings.ToUpper(r.SourceArchive)
	base := r.SourceName + "_" + r.Storm + "_" + archive + "_"

	if r.Synoptic() {
		forecast = RunSource{
			DataSource: strings.ToUpper(r.EnsembleName) + "_" + grid,
			Prefix:     base + strings.ToUpper(r.EnsembleName) + "_" + grid + "_FORECAST_" + stationType,
		}
		nowcast = RunSource{
			DataSource: "NOWCAST_" + grid,
			Prefix:     base + "NOWCAST_" + grid + "_NOWCAST_" + stationType,
		}
		return forecast, nowcast
	}
	forecast = RunSource{
		DataSource: r.Storm + "_" + r.EnsembleName + "_" + grid,
		Prefix:     base + r.EnsembleName + "_" + grid + "_FORECAST_" + stationType,
	}
	nowcast = RunSource{
		DataSource: r.Storm + "_NOWCAST_" + grid,
		Prefix:     base + "NOWCAST_" + grid + "_NOWCAST_" + stationType,
	}
	return forecast, nowcast
}

// StationMetaPrefix maps a model filename prefix (or full filename) to its
// companion station-metadata form: the model token is replaced by an
// "adcirc_meta" marker.
func StationMetaPrefix(prefix string) string {
	parts := strings.Split(prefix, "_")
	if len(parts) < 2 {
		return "adcirc_meta_" + prefix
	}
	return "adcirc_meta_" + strings.Join(parts[1:], "_")
}
