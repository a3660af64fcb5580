package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelRunID(t *testing.T) {
	assert.Equal(t, "4358-2024010106-gfsforecast", ModelRunID("4358", "2024010106-gfsforecast"))
}

func TestRunPropertiesTimemark(t *testing.T) {
	t.Run("derives epoch from date and cycle", func(t *testing.T) {
		props := RunProperties{ModelRunID: "4358-x", CurrentDate: "240101", CurrentCycle: "6"}
		got, err := props.Timemark()
		require.NoError(t, err)
		assert.Equal(t, "2024-01-01T06:00", got)
	})

	t.Run("zero cycle", func(t *testing.T) {
		props := RunProperties{CurrentDate: "231231", CurrentCycle: "0"}
		got, err := props.Timemark()
		require.NoError(t, err)
		assert.Equal(t, "2023-12-31T00:00", got)
	})

	t.Run("rejects malformed date", func(t *testing.T) {
		_, err := RunProperties{CurrentDate: "2024-01-01", CurrentCycle: "6"}.Timemark()
		assert.Error(t, err)
	})

	t.Run("rejects out of range cycle", func(t *testing.T) {
		_, err := RunProperties{CurrentDate: "240101", CurrentCycle: "24"}.Timemark()
		assert.Error(t, err)
	})
}

func TestRunPropertiesSources(t *testing.T) {
	t.Run("synoptic", func(t *testing.T) {
		props := RunProperties{
			SourceName:    "adcirc",
			Storm:         "gfs",
			SourceArchive: "renci",
			EnsembleName:  "gfsforecast",
			GridName:      "ec95d",
			Metclass:      "synoptic",
		}
		forecast, nowcast := props.Sources("NOAASTATIONS")

		assert.Equal(t, "GFSFORECAST_EC95D", forecast.DataSource)
		assert.Equal(t, "adcirc_gfs_RENCI_GFSFORECAST_EC95D_FORECAST_NOAASTATIONS", forecast.Prefix)
		assert.Equal(t, "NOWCAST_EC95D", nowcast.DataSource)
		assert.Equal(t, "adcirc_gfs_RENCI_NOWCAST_EC95D_NOWCAST_NOAASTATIONS", nowcast.Prefix)
	})

	t.Run("tropical keeps ensemble case and folds in the storm", func(t *testing.T) {
		props := RunProperties{
			SourceName:    "adcirc",
			Storm:         "al09",
			SourceArchive: "renci",
			EnsembleName:  "ofcl",
			GridName:      "ec95d",
			Metclass:      "tropical",
		}
		forecast, nowcast := props.Sources("NDBCBUOYS")

		assert.Equal(t, "al09_ofcl_EC95D", forecast.DataSource)
		assert.Equal(t, "adcirc_al09_RENCI_ofcl_EC95D_FORECAST_NDBCBUOYS", forecast.Prefix)
		assert.Equal(t, "al09_NOWCAST_EC95D", nowcast.DataSource)
		assert.Equal(t, "adcirc_al09_RENCI_NOWCAST_EC95D_NOWCAST_NDBCBUOYS", nowcast.Prefix)
	})

	t.Run("derived tags resolve to the right provenance", func(t *testing.T) {
		props := RunProperties{EnsembleName: "gfsforecast", GridName: "ec95d", Metclass: "synoptic"}
		forecast, nowcast := props.Sources("NOAASTATIONS")

		assert.Equal(t, Forecast, ProvenanceOf(forecast.DataSource))
		assert.Equal(t, Nowcast, ProvenanceOf(nowcast.DataSource))
	})
}

func TestStationTypeFromFile(t *testing.T) {
	got, err := StationTypeFromFile("adcirc_gfs_RENCI_GFSFORECAST_EC95D_FORECAST_NOAASTATIONS_2024-01-01T06:12:30_2024-01-01T06:00_2023-12-31T18:00.csv")
	require.NoError(t, err)
	assert.Equal(t, "NOAASTATIONS", got)

	_, err = StationTypeFromFile("short.csv")
	assert.Error(t, err)
}

func TestStationMetaPrefix(t *testing.T) {
	got := StationMetaPrefix("adcirc_gfs_RENCI_GFSFORECAST_EC95D_FORECAST_NOAASTATIONS")
	assert.Equal(t, "adcirc_meta_gfs_RENCI_GFSFORECAST_EC95D_FORECAST_NOAASTATIONS", got)
}
