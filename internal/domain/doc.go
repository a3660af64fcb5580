// Package domain models harvest files, measurement sources, and model run
// identities for the gauge data warehouse.
//
// # Data Sources
//
// Upstream collectors drop per-source, per-timewindow CSV files into a harvest
// directory. Observation files come from NOAA tide gauges, NDBC buoys, and
// NCEM/Contrails river and coastal gauges; model files come from ADCIRC
// forecast and nowcast runs. Every harvest CSV has a TIME column, a STATION
// column, and one observation column (water level, wave height, wind speed,
// air pressure, or stream elevation).
//
// # Filename Conventions
//
// Observation files are named
//
//	<archive>_stationdata_<type>_<YYYY-MM-DDTHH:MM:SS>.csv
//
// where <type> embeds a keyword (gauge, predictions, barometer, buoy,
// anemometer) that determines the observation variable and units. The embedded
// timestamp is the file's logical data date. See [InferObservation].
//
// ADCIRC model files carry a data-source tag plus up to three embedded
// timestamps: harvest time, forecast initialization time, and nowcast
// timemark. Which one identifies the run depends on the tag's provenance:
// forecast tags use the second, nowcast tags the third, observation tags the
// first. See [SelectTimemark].
//
// # Timemarks and Model Run IDs
//
// A timemark is the logical epoch of a harvest file, the stable key under
// which all of its rows are queried. For observation sources it comes from the
// filename; for model sources it is derived from the run configuration's
// current date and cycle hour. A model run ID is "<instance_id>-<uid>" and
// names one execution of the model pipeline; it scopes the harvest and ingest
// state for that run. See [ModelRunID] and [RunProperties.Timemark].
package domain
