package repository

import (
	"context"
	"database/sql"
	"errors"

	"aquafarm"
)

type JobSQLite struct {
	db *sql.DB
}

func NewJobSQLite(db *sql.DB) *JobSQLite { return &JobSQLite{db: db} }

const (
	selectSensorJobsSQL = `
		SELECT id, name, kind, sensor_id, min_value, max_value, default_state,
		       is_active, start_time, end_time, repeat_minutes, days
		FROM jobs
		WHERE kind = 'SENSOR_BASED' AND sensor_id = ? AND is_active = 1
	`

	selectScheduledJobsSQL = `
		SELECT id, name, kind, sensor_id, min_value, max_value, default_state,
		       is_active, start_time, end_time, repeat_minutes, days
		FROM jobs
		WHERE kind = 'SCHEDULED' AND is_active = 1
	`

	selectJobByIDSQL = `
		SELECT id, name, kind, sensor_id, min_value, max_value, default_state,
		       is_active, start_time, end_time, repeat_minutes, days
		FROM jobs WHERE id = ?
	`

	selectAllJobsSQL = `
		SELECT id, name, kind, sensor_id, min_value, max_value, default_state,
		       is_active, start_time, end_time, repeat_minutes, days
		FROM jobs ORDER BY id
	`

	updateJobActiveSQL = `UPDATE jobs SET is_active = ? WHERE id = ?`

	selectMappingsSQL = `
		SELECT job_id, device_id, target_state, condition
		FROM job_control_mappings WHERE job_id = ?
	`
)

func scanJob(row interface{ Scan(...any) error }) (aquafarm.Job, error) {
	var (
		j        aquafarm.Job
		sensorID sql.NullInt64
		minVal   sql.NullFloat64
		maxVal   sql.NullFloat64
		start    sql.NullString
		end      sql.NullString
		repeat   sql.NullInt64
		days     int
	)
	err := row.Scan(
		&j.ID, &j.Name, &j.Kind,
		&sensorID, &minVal, &maxVal,
		&j.DefaultState, &j.IsActive,
		&start, &end, &repeat, &days,
	)
	if err != nil {
		return aquafarm.Job{}, err
	}
	if sensorID.Valid {
		v := int(sensorID.Int64)
		j.SensorID = &v
	}
	if minVal.Valid {
		v := minVal.Float64
		j.MinValue = &v
	}
	if maxVal.Valid {
		v := maxVal.Float64
		j.MaxValue = &v
	}
	j.StartTime = start.String
	j.EndTime = end.String
	if repeat.Valid {
		j.RepeatMinutes = int(repeat.Int64)
	}
	j.Days = aquafarm.DayMask(days)
	return j, nil
}

func (r *JobSQLite) queryJobs(ctx context.Context, q string, args ...any) ([]aquafarm.Job, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]aquafarm.Job, 0, 16)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSensorJobs returns active SENSOR_BASED jobs referencing the sensor.
func (r *JobSQLite) ListSensorJobs(ctx context.Context, sensorID int) ([]aquafarm.Job, error) {
	return r.queryJobs(ctx, selectSensorJobsSQL, sensorID)
}

// ListScheduledJobs returns all active SCHEDULED jobs.
func (r *JobSQLite) ListScheduledJobs(ctx context.Context) ([]aquafarm.Job, error) {
	return r.queryJobs(ctx, selectScheduledJobsSQL)
}

func (r *JobSQLite) GetByID(ctx context.Context, jobID int) (*aquafarm.Job, error) {
	row := r.db.QueryRowContext(ctx, selectJobByIDSQL, jobID)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}

func (r *JobSQLite) List(ctx context.Context) ([]aquafarm.Job, error) {
	return r.queryJobs(ctx, selectAllJobsSQL)
}

func (r *JobSQLite) MappingsByJob(ctx context.Context, jobID int) ([]aquafarm.JobControlMapping, error) {
	rows, err := r.db.QueryContext(ctx, selectMappingsSQL, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]aquafarm.JobControlMapping, 0, 4)
	for rows.Next() {
		var m aquafarm.JobControlMapping
		if err := rows.Scan(&m.JobID, &m.DeviceID, &m.TargetState, &m.Condition); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *JobSQLite) SetActive(ctx context.Context, jobID int, active bool) error {
	res, err := r.db.ExecContext(ctx, updateJobActiveSQL, active, jobID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
