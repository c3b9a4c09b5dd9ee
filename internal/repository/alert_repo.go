package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"aquafarm"
)

type AlertSQLite struct {
	db *sql.DB
}

func NewAlertSQLite(db *sql.DB) *AlertSQLite { return &AlertSQLite{db: db} }

const (
	selectOpenByScopeSQL = `
		SELECT id, reading_id, threshold_id, batch_id, tank_id, sensor_type_id,
		       value, last_value, status, raised_at, resolved_at
		FROM alerts
		WHERE tank_id = ? AND batch_id = ? AND sensor_type_id = ? AND threshold_id = ?
		  AND status != 'RESOLVED'
	`

	insertAlertSQL = `
		INSERT INTO alerts (id, reading_id, threshold_id, batch_id, tank_id, sensor_type_id,
		                    value, last_value, status, raised_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	touchAlertValueSQL = `
		UPDATE alerts SET last_value = ? WHERE id = ? AND status != 'RESOLVED'
	`

	selectAlertByIDSQL = `
		SELECT id, reading_id, threshold_id, batch_id, tank_id, sensor_type_id,
		       value, last_value, status, raised_at, resolved_at
		FROM alerts WHERE id = ?
	`

	updateAlertStatusSQL = `
		UPDATE alerts SET status = ?, resolved_at = ? WHERE id = ? AND status != 'RESOLVED'
	`

	insertCorrectiveActionSQL = `
		INSERT INTO corrective_actions (id, alert_id, description, performed_by, performed_at)
		VALUES (?, ?, ?, ?, ?)
	`
)

func scanAlert(row interface{ Scan(...any) error }) (aquafarm.Alert, error) {
	var (
		a          aquafarm.Alert
		resolvedAt sql.NullTime
	)
	err := row.Scan(
		&a.ID,
		&a.ReadingID,
		&a.ThresholdID,
		&a.BatchID,
		&a.TankID,
		&a.SensorTypeID,
		&a.Value,
		&a.LastValue,
		&a.Status,
		&a.RaisedAt,
		&resolvedAt,
	)
	if err != nil {
		return aquafarm.Alert{}, err
	}
	a.RaisedAt = a.RaisedAt.UTC()
	if resolvedAt.Valid {
		t := resolvedAt.Time.UTC()
		a.ResolvedAt = &t
	}
	return a, nil
}

// GetOpenByScope returns the single non-RESOLVED alert for the scope, or nil
// when none exists.
func (r *AlertSQLite) GetOpenByScope(ctx context.Context, scope aquafarm.AlertScope) (*aquafarm.Alert, error) {
	row := r.db.QueryRowContext(ctx, selectOpenByScopeSQL,
		scope.TankID, scope.BatchID, scope.SensorTypeID, scope.ThresholdID)
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *AlertSQLite) Create(ctx context.Context, a aquafarm.Alert) error {
	raisedAt := a.RaisedAt
	if raisedAt.IsZero() {
		raisedAt = time.Now().UTC()
	} else {
		raisedAt = raisedAt.UTC()
	}
	_, err := r.db.ExecContext(ctx, insertAlertSQL,
		a.ID,
		a.ReadingID,
		a.ThresholdID,
		a.BatchID,
		a.TankID,
		a.SensorTypeID,
		a.Value,
		a.LastValue,
		a.Status,
		raisedAt,
	)
	return err
}

// TouchValue records the latest breaching value on a still-open alert.
func (r *AlertSQLite) TouchValue(ctx context.Context, alertID string, value float64) error {
	_, err := r.db.ExecContext(ctx, touchAlertValueSQL, value, alertID)
	return err
}

func (r *AlertSQLite) GetByID(ctx context.Context, alertID string) (*aquafarm.Alert, error) {
	row := r.db.QueryRowContext(ctx, selectAlertByIDSQL, alertID)
	a, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// SetStatus writes the new status and resolved_at. The WHERE guard keeps
// RESOLVED terminal even when a concurrent writer got there first.
func (r *AlertSQLite) SetStatus(ctx context.Context, alertID, status string, resolvedAt *time.Time) error {
	var at any
	if resolvedAt != nil {
		at = resolvedAt.UTC()
	}
	res, err := r.db.ExecContext(ctx, updateAlertStatusSQL, status, at, alertID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

func (r *AlertSQLite) AddCorrectiveAction(ctx context.Context, ca aquafarm.CorrectiveAction) error {
	performedAt := ca.PerformedAt
	if performedAt.IsZero() {
		performedAt = time.Now().UTC()
	} else {
		performedAt = performedAt.UTC()
	}
	var by any
	if ca.PerformedBy != 0 {
		by = ca.PerformedBy
	}
	_, err := r.db.ExecContext(ctx, insertCorrectiveActionSQL,
		ca.ID, ca.AlertID, ca.Description, by, performedAt)
	return err
}

// List returns alerts, optionally filtered by status, newest first.
func (r *AlertSQLite) List(ctx context.Context, status string) ([]aquafarm.Alert, error) {
	q := `SELECT id, reading_id, threshold_id, batch_id, tank_id, sensor_type_id,
	             value, last_value, status, raised_at, resolved_at
	      FROM alerts`
	var args []any
	if status = strings.ToUpper(strings.TrimSpace(status)); status != "" {
		q += " WHERE status = ?"
		args = append(args, status)
	}
	q += " ORDER BY raised_at DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]aquafarm.Alert, 0, 32)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
