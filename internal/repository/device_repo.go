package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"aquafarm"
)

type DeviceSQLite struct {
	db *sql.DB
}

func NewDeviceSQLite(db *sql.DB) *DeviceSQLite { return &DeviceSQLite{db: db} }

const (
	selectDeviceSQL = `
		SELECT id, name, state, command_on, command_off, updated_at
		FROM control_devices WHERE id = ?
	`

	selectDevicesSQL = `
		SELECT id, name, state, command_on, command_off, updated_at
		FROM control_devices ORDER BY id
	`

	updateDeviceStateSQL = `
		UPDATE control_devices SET state = ?, updated_at = ? WHERE id = ?
	`
)

func scanDevice(row interface{ Scan(...any) error }) (aquafarm.ControlDevice, error) {
	var (
		d         aquafarm.ControlDevice
		updatedAt sql.NullTime
	)
	if err := row.Scan(&d.ID, &d.Name, &d.State, &d.CommandOn, &d.CommandOff, &updatedAt); err != nil {
		return aquafarm.ControlDevice{}, err
	}
	if updatedAt.Valid {
		d.UpdatedAt = updatedAt.Time.UTC()
	}
	return d, nil
}

func (r *DeviceSQLite) GetByID(ctx context.Context, deviceID int) (*aquafarm.ControlDevice, error) {
	row := r.db.QueryRowContext(ctx, selectDeviceSQL, deviceID)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// SetState persists the dispatcher-confirmed state. The dispatcher is the
// only caller; administrative code never writes this column.
func (r *DeviceSQLite) SetState(ctx context.Context, deviceID int, state bool, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	res, err := r.db.ExecContext(ctx, updateDeviceStateSQL, state, at.UTC(), deviceID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DeviceSQLite) List(ctx context.Context) ([]aquafarm.ControlDevice, error) {
	rows, err := r.db.QueryContext(ctx, selectDevicesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]aquafarm.ControlDevice, 0, 16)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
