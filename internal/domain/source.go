package domain

import (
	"fmt"
	"strings"
)

// Scope separates the observation and model harvest pipelines. Every ledger
// row, source row, and data row belongs to exactly one scope, and the two
// pipelines never see each other's state.
type Scope string

const (
	ScopeObs   Scope = "obs"
	ScopeModel Scope = "model"
)

// Provenance classifies a data-source tag by the kind of run that produced
// it. It determines which embedded filename timestamp is the timemark.
type Provenance int

const (
	Observation Provenance = iota
	Forecast
	Nowcast
)

func (p Provenance) String() string {
	switch p {
	case Forecast:
		return "forecast"
	case Nowcast:
		return "nowcast"
	default:
		return "observation"
	}
}

// ProvenanceOf resolves a data-source tag to its provenance. Matching is
// case-insensitive on substring; tags naming neither forecast nor nowcast are
// observation sources.
func ProvenanceOf(dataSource string) Provenance {
	tag := strings.ToLower(dataSource)
	switch {
	case strings.Contains(tag, "forecast"):
		return Forecast
	case strings.Contains(tag, "nowcast"):
		return Nowcast
	default:
		return Observation
	}
}

// Observation inference. The filename's type segment embeds exactly one of
// these keywords; a name matching none is a configuration error and aborts
// the pipeline rather than mislabeling rows.
var obsVariables = []struct {
	keyword  string
	variable string
	units    string
}{
	{"gauge", "water_level", "m"},
	{"predictions", "tidal_predictions", "m"},
	{"barometer", "air_pressure", "mb"},
	{"buoy", "wave_height", "m"},
	{"anemometer", "wind_speed", "mps"},
}

// InferObservation maps an observation filename to its variable name and
// units by keyword. Keyword order matters: "predictions" is checked before
// "gauge" so tidal prediction files are not misread as gauge files.
func InferObservation(filename string) (variable, units string, err error) {
	name := strings.ToLower(filename)
	for _, v := range obsVariables {
		if strings.Contains(name, v.keyword) {
			return v.variable, v.units, nil
		}
	}
	return "", "", fmt.Errorf("infer observation variable for %q: %w", filename, ErrUnknownVariable)
}

// ObsStationMetaPrefix maps an observation filename prefix to its companion
// station-metadata form: the stationdata segment becomes stationdata_meta.
// Prefixes without the segment have no companion files and map to "".
func ObsStationMetaPrefix(prefix string) string {
	if !strings.Contains(prefix, "stationdata") {
		return ""
	}
	return strings.Replace(prefix, "stationdata", "stationdata_meta", 1)
}

// StationClass describes the variable semantics and location class of one
// model station type.
type StationClass struct {
	Variable string
	Location string
	Units    string
}

var modelStationClasses = map[string]StationClass{
	"NOAASTATIONS":     {Variable: "water_level", Location: "tidal", Units: "m"},
	"CONTRAILSCOASTAL": {Variable: "water_level", Location: "coastal", Units: "m"},
	"CONTRAILSRIVERS":  {Variable: "water_level", Location: "river", Units: "m"},
	"NDBCBUOYS":        {Variable: "wave_height", Location: "ocean", Units: "m"},
}

// ClassifyModelStations resolves a model station-type tag to its variable,
// location class, and units. Unknown tags are fatal: every supported type is
// enumerated above, so a miss means the run configuration is wrong.
func ClassifyModelStations(stationType string) (StationClass, error) {
	c, ok := modelStationClasses[strings.ToUpper(stationType)]
	if !ok {
		return StationClass{}, fmt.Errorf("classify model station type %q: %w", stationType, ErrUnknownVariable)
	}
	return c, nil
}
