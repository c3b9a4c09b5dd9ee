package repository

import (
	"context"
	"database/sql"
	"errors"

	"aquafarm"
)

type ThresholdSQLite struct {
	db *sql.DB
}

func NewThresholdSQLite(db *sql.DB) *ThresholdSQLite { return &ThresholdSQLite{db: db} }

const selectThresholdSQL = `
	SELECT id, species_id, growth_stage_id, sensor_type_id, min_value, max_value
	FROM species_thresholds
	WHERE species_id = ? AND growth_stage_id = ? AND sensor_type_id = ?
`

// Lookup returns the configured band for the triple, or ErrNotFound when no
// automation is configured for it.
func (r *ThresholdSQLite) Lookup(ctx context.Context, speciesID, growthStageID, sensorTypeID int) (aquafarm.SpeciesThreshold, error) {
	row := r.db.QueryRowContext(ctx, selectThresholdSQL, speciesID, growthStageID, sensorTypeID)

	var t aquafarm.SpeciesThreshold
	if err := row.Scan(&t.ID, &t.SpeciesID, &t.GrowthStageID, &t.SensorTypeID, &t.Min, &t.Max); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return aquafarm.SpeciesThreshold{}, ErrNotFound
		}
		return aquafarm.SpeciesThreshold{}, err
	}
	return t, nil
}
