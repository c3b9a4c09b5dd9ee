package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"aquafarm"
)

type ReadingSQLite struct {
	db *sql.DB
}

func NewReadingSQLite(db *sql.DB) *ReadingSQLite { return &ReadingSQLite{db: db} }

const insertReadingSQL = `
	INSERT INTO sensor_readings (sensor_id, value, measured_at, warning)
	VALUES (?, ?, ?, ?)
`

// resolveContextSQL joins the sensor to its tank's active farming batch.
// A sensor on a tank with no active batch has no automation context.
const resolveContextSQL = `
	SELECT s.id, s.sensor_type_id, s.tank_id, b.id, b.species_id, b.growth_stage_id
	FROM sensors s
	JOIN farming_batches b ON b.tank_id = s.tank_id AND b.active = 1
	WHERE s.id = ?
`

// Append inserts a reading and returns its generated id. Zero MeasuredAt is
// replaced with now; times are persisted as UTC.
func (r *ReadingSQLite) Append(ctx context.Context, reading aquafarm.SensorReading) (int64, error) {
	ts := reading.MeasuredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	res, err := r.db.ExecContext(ctx, insertReadingSQL,
		reading.SensorID,
		reading.Value,
		ts,
		reading.Warning,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ResolveContext returns the tank/batch/species scope of a sensor, or
// ErrNotFound when the sensor is unknown or its tank has no active batch.
func (r *ReadingSQLite) ResolveContext(ctx context.Context, sensorID int) (aquafarm.SensorContext, error) {
	row := r.db.QueryRowContext(ctx, resolveContextSQL, sensorID)

	var sc aquafarm.SensorContext
	if err := row.Scan(&sc.SensorID, &sc.SensorTypeID, &sc.TankID, &sc.BatchID, &sc.SpeciesID, &sc.GrowthStageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return aquafarm.SensorContext{}, ErrNotFound
		}
		return aquafarm.SensorContext{}, err
	}
	return sc, nil
}
