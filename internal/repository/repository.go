package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"aquafarm"
)

// ErrNotFound is returned when a lookup matches no row. Callers decide
// whether that is a fault or a skip.
var ErrNotFound = errors.New("not found")

// ErrAlreadyResolved is returned when a status write targets an alert that
// is already RESOLVED.
var ErrAlreadyResolved = errors.New("alert already resolved")

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*aquafarm.User, error)
}

// ThresholdRepo resolves the configured band for a (species, stage, sensor
// type) triple.
type ThresholdRepo interface {
	Lookup(ctx context.Context, speciesID, growthStageID, sensorTypeID int) (aquafarm.SpeciesThreshold, error)
}

// ReadingRepo is append-only: readings are immutable once written.
type ReadingRepo interface {
	Append(ctx context.Context, r aquafarm.SensorReading) (int64, error)
	ResolveContext(ctx context.Context, sensorID int) (aquafarm.SensorContext, error)
}

type AlertRepo interface {
	GetOpenByScope(ctx context.Context, scope aquafarm.AlertScope) (*aquafarm.Alert, error)
	Create(ctx context.Context, a aquafarm.Alert) error
	TouchValue(ctx context.Context, alertID string, value float64) error
	GetByID(ctx context.Context, alertID string) (*aquafarm.Alert, error)
	SetStatus(ctx context.Context, alertID, status string, resolvedAt *time.Time) error
	AddCorrectiveAction(ctx context.Context, ca aquafarm.CorrectiveAction) error
	List(ctx context.Context, status string) ([]aquafarm.Alert, error)
}

type JobRepo interface {
	ListSensorJobs(ctx context.Context, sensorID int) ([]aquafarm.Job, error)
	ListScheduledJobs(ctx context.Context) ([]aquafarm.Job, error)
	GetByID(ctx context.Context, jobID int) (*aquafarm.Job, error)
	MappingsByJob(ctx context.Context, jobID int) ([]aquafarm.JobControlMapping, error)
	SetActive(ctx context.Context, jobID int, active bool) error
	List(ctx context.Context) ([]aquafarm.Job, error)
}

// DeviceRepo reads device rows and persists dispatcher-confirmed state.
// Nothing else writes control_devices.state.
type DeviceRepo interface {
	GetByID(ctx context.Context, deviceID int) (*aquafarm.ControlDevice, error)
	SetState(ctx context.Context, deviceID int, state bool, at time.Time) error
	List(ctx context.Context) ([]aquafarm.ControlDevice, error)
}

type EventRepo interface {
	Append(ctx context.Context, e aquafarm.EngineEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]aquafarm.EngineEvent, error)
}

type Repository struct {
	Thresholds ThresholdRepo
	Readings   ReadingRepo
	Alerts     AlertRepo
	Jobs       JobRepo
	Devices    DeviceRepo
	Events     EventRepo
	Auth       Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Thresholds: NewThresholdSQLite(db),
		Readings:   NewReadingSQLite(db),
		Alerts:     NewAlertSQLite(db),
		Jobs:       NewJobSQLite(db),
		Devices:    NewDeviceSQLite(db),
		Events:     NewEventSQLite(db),
		Auth:       NewUserRepository(db),
	}
}
