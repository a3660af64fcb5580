package store

import (
	"context"
	"fmt"
)

// Schema bootstrap. Statements are ordered so foreign keys resolve; the whole
// bootstrap is idempotent via IF NOT EXISTS and can be re-run on deploy.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS gauge_station (
		station_id    BIGSERIAL PRIMARY KEY,
		station_name  TEXT NOT NULL UNIQUE,
		lat           DOUBLE PRECISION,
		lon           DOUBLE PRECISION,
		tz            TEXT,
		gauge_owner   TEXT,
		location_name TEXT,
		location_type TEXT,
		country       TEXT,
		state         TEXT,
		county        TEXT,
		geom          TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS obs_source_meta (
		meta_id         BIGSERIAL PRIMARY KEY,
		data_source     TEXT NOT NULL,
		source_name     TEXT NOT NULL,
		source_archive  TEXT NOT NULL,
		source_variable TEXT NOT NULL,
		filename_prefix TEXT NOT NULL UNIQUE,
		location_type   TEXT NOT NULL,
		units           TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS obs_source (
		source_id       BIGSERIAL PRIMARY KEY,
		station_id      BIGINT NOT NULL REFERENCES gauge_station (station_id),
		data_source     TEXT NOT NULL,
		source_name     TEXT NOT NULL,
		source_archive  TEXT NOT NULL,
		source_variable TEXT NOT NULL,
		units           TEXT NOT NULL,
		UNIQUE (station_id, data_source, source_name, source_archive, source_variable)
	)`,

	`CREATE TABLE IF NOT EXISTS obs_data (
		obs_id            BIGSERIAL PRIMARY KEY,
		source_id         BIGINT NOT NULL REFERENCES obs_source (source_id),
		timemark          TIMESTAMP,
		time              TIMESTAMP NOT NULL,
		water_level       DOUBLE PRECISION,
		tidal_predictions DOUBLE PRECISION,
		air_pressure      DOUBLE PRECISION,
		wave_height       DOUBLE PRECISION,
		wind_speed        DOUBLE PRECISION,
		stream_elevation  DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS obs_data_source_time_idx ON obs_data (source_id, time)`,

	`CREATE TABLE IF NOT EXISTS harvest_obs_file (
		file_id                    BIGSERIAL PRIMARY KEY,
		dir_path                   TEXT NOT NULL,
		file_name                  TEXT NOT NULL UNIQUE,
		processing_datetime        TEXT,
		data_date_time             TEXT,
		data_begin_time            TEXT,
		data_end_time              TEXT,
		data_source                TEXT NOT NULL,
		source_name                TEXT NOT NULL,
		source_archive             TEXT NOT NULL,
		source_variable            TEXT,
		location_type              TEXT,
		timemark                   TEXT,
		ingested                   BOOLEAN NOT NULL DEFAULT FALSE,
		overlap_past_file_date_time BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE TABLE IF NOT EXISTS model_source_meta (
		meta_id          BIGSERIAL PRIMARY KEY,
		data_source      TEXT NOT NULL,
		source_name      TEXT NOT NULL,
		source_archive   TEXT NOT NULL,
		source_instance  TEXT NOT NULL,
		forcing_metclass TEXT NOT NULL,
		source_variable  TEXT NOT NULL,
		filename_prefix  TEXT NOT NULL,
		location_type    TEXT NOT NULL,
		units            TEXT NOT NULL,
		UNIQUE (filename_prefix, source_instance)
	)`,

	`CREATE TABLE IF NOT EXISTS model_source (
		source_id        BIGSERIAL PRIMARY KEY,
		station_id       BIGINT NOT NULL REFERENCES gauge_station (station_id),
		data_source      TEXT NOT NULL,
		source_name      TEXT NOT NULL,
		source_archive   TEXT NOT NULL,
		source_instance  TEXT NOT NULL,
		forcing_metclass TEXT NOT NULL,
		source_variable  TEXT NOT NULL,
		units            TEXT NOT NULL,
		UNIQUE (station_id, data_source, source_name, source_archive, source_instance, source_variable)
	)`,

	`CREATE TABLE IF NOT EXISTS model_data (
		model_id    BIGSERIAL PRIMARY KEY,
		source_id   BIGINT NOT NULL REFERENCES model_source (source_id),
		timemark    TIMESTAMP,
		time        TIMESTAMP NOT NULL,
		water_level DOUBLE PRECISION,
		wave_height DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS model_data_source_time_idx ON model_data (source_id, time)`,

	`CREATE TABLE IF NOT EXISTS harvest_model_file (
		file_id                    BIGSERIAL PRIMARY KEY,
		dir_path                   TEXT NOT NULL,
		file_name                  TEXT NOT NULL UNIQUE,
		processing_datetime        TEXT,
		data_date_time             TEXT,
		data_begin_time            TEXT,
		data_end_time              TEXT,
		data_source                TEXT NOT NULL,
		source_name                TEXT NOT NULL,
		source_archive             TEXT NOT NULL,
		source_instance            TEXT NOT NULL,
		timemark                   TEXT,
		ingested                   BOOLEAN NOT NULL DEFAULT FALSE,
		overlap_past_file_date_time BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE TABLE IF NOT EXISTS model_station (
		meta_id       BIGSERIAL PRIMARY KEY,
		station_name  TEXT NOT NULL,
		lat           DOUBLE PRECISION,
		lon           DOUBLE PRECISION,
		location_name TEXT,
		location_type TEXT,
		model_run_id  TEXT NOT NULL,
		data_source   TEXT NOT NULL,
		timemark      TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS model_station_run_idx ON model_station (model_run_id)`,

	`CREATE TABLE IF NOT EXISTS harvest_station_file (
		file_id         BIGSERIAL PRIMARY KEY,
		dir_path        TEXT NOT NULL,
		file_name       TEXT NOT NULL UNIQUE,
		data_date_time  TEXT,
		data_source     TEXT NOT NULL,
		source_name     TEXT NOT NULL,
		source_archive  TEXT NOT NULL,
		source_instance TEXT NOT NULL,
		timemark        TEXT,
		location_type   TEXT,
		model_run_id    TEXT NOT NULL,
		ingested        BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE TABLE IF NOT EXISTS retain_obs_station_file (
		file_id        BIGSERIAL PRIMARY KEY,
		dir_path       TEXT NOT NULL,
		file_name      TEXT NOT NULL UNIQUE,
		data_date_time TEXT,
		data_source    TEXT NOT NULL,
		source_name    TEXT NOT NULL,
		source_archive TEXT NOT NULL,
		location_type  TEXT,
		timemark       TEXT,
		ingested       BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE TABLE IF NOT EXISTS retain_obs_station (
		obs_station_id BIGSERIAL PRIMARY KEY,
		station_name   TEXT NOT NULL,
		lat            DOUBLE PRECISION,
		lon            DOUBLE PRECISION,
		location_name  TEXT,
		tz             TEXT,
		gauge_owner    TEXT,
		country        TEXT,
		state          TEXT,
		county         TEXT,
		geom           TEXT,
		timemark       TEXT,
		data_source    TEXT NOT NULL,
		source_name    TEXT NOT NULL,
		source_archive TEXT NOT NULL,
		location_type  TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS retain_obs_station_name_idx ON retain_obs_station (station_name)`,

	`CREATE OR REPLACE VIEW obs_station_view AS
	 SELECT d.obs_id, s.station_id, st.station_name, st.lat, st.lon, st.location_name,
	        s.source_id, s.data_source, s.source_name, s.source_archive,
	        s.source_variable, s.units, d.timemark, d.time,
	        d.water_level, d.tidal_predictions, d.air_pressure, d.wave_height,
	        d.wind_speed, d.stream_elevation
	 FROM obs_data d
	 JOIN obs_source s ON s.source_id = d.source_id
	 JOIN gauge_station st ON st.station_id = s.station_id`,

	`CREATE OR REPLACE VIEW model_station_view AS
	 SELECT d.model_id, s.station_id, st.station_name, st.lat, st.lon, st.location_name,
	        s.source_id, s.data_source, s.source_name, s.source_archive,
	        s.source_instance, s.forcing_metclass, s.source_variable, s.units,
	        d.timemark, d.time, d.water_level, d.wave_height
	 FROM model_data d
	 JOIN model_source s ON s.source_id = d.source_id
	 JOIN gauge_station st ON st.station_id = s.station_id`,
}

// InitSchema creates every warehouse table, index, and view.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
