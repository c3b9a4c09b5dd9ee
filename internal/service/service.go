package service

import (
	"context"
	"time"

	"aquafarm"
	"aquafarm/internal/logger"
	"aquafarm/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Thresholds is the read-only registry of species/growth-stage bands.
type Thresholds interface {
	Lookup(ctx context.Context, speciesID, growthStageID, sensorTypeID int) (aquafarm.SpeciesThreshold, error)
}

// Ingest consumes a single sensor reading: persists it, evaluates it against
// the threshold registry and fans out to sensor-based jobs.
type Ingest interface {
	HandleReading(ctx context.Context, p ReadingParams) (aquafarm.SensorReading, error)
}

// Alerts owns the alert state machine and its dedup invariant.
type Alerts interface {
	OpenOrTouch(ctx context.Context, scope aquafarm.AlertScope, reading aquafarm.SensorReading, threshold aquafarm.SpeciesThreshold) (aquafarm.Alert, bool, error)
	Acknowledge(ctx context.Context, alertID string, p CorrectiveActionParams) error
	Resolve(ctx context.Context, alertID string) error
	List(ctx context.Context, status string) ([]aquafarm.Alert, error)
}

// Jobs evaluates trigger conditions and schedule windows, and computes the
// desired state for every mapped device. It performs no device I/O itself.
type Jobs interface {
	EvaluateReading(ctx context.Context, reading aquafarm.SensorReading) error
	EvaluateTick(ctx context.Context, now time.Time) error
	List(ctx context.Context) ([]aquafarm.Job, error)
	SetActive(ctx context.Context, jobID int, active bool) error
}

// Dispatcher reconciles a desired device state against the last-known state
// and sends at most one idempotent command.
type Dispatcher interface {
	Apply(ctx context.Context, deviceID int, desired bool) error
	Devices(ctx context.Context) ([]aquafarm.ControlDevice, error)
}

// Scheduler drives time-windowed jobs. Stop via context cancellation in
// main() for graceful shutdown.
type Scheduler interface {
	Run(ctx context.Context, tick time.Duration)
}

// EventLog exposes append-only engine events with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]aquafarm.EngineEvent, error)
}

// Simulator runs the background loop that generates drifting telemetry for
// development setups.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates all sub-services.
type Service struct {
	Thresholds
	Ingest
	Alerts
	Jobs
	Dispatcher
	Scheduler
	EventLog
	Simulator
	Authorization
}

// Options carries wiring knobs that come from configuration.
type Options struct {
	Sender        CommandSender // device transport; nil selects the loopback sender
	JWTSigningKey string
	WorkerSlots   int // bound on concurrent tick evaluations
}

// NewService wires the repository layer into concrete services.
func NewService(repos *repository.Repository, log *logger.Logger, opts Options) *Service {
	thresholds := NewThresholdService(repos.Thresholds)
	dispatcher := NewDispatcherService(repos.Devices, repos.Events, log, opts.Sender)
	alerts := NewAlertService(repos.Alerts, repos.Events, log)
	jobs := NewJobService(repos.Jobs, dispatcher, log)
	ingest := NewIngestService(repos.Readings, thresholds, alerts, jobs, log)

	return &Service{
		Thresholds:    thresholds,
		Ingest:        ingest,
		Alerts:        alerts,
		Jobs:          jobs,
		Dispatcher:    dispatcher,
		Scheduler:     NewSchedulerService(jobs, repos.Events, log, opts.WorkerSlots),
		EventLog:      NewEventLogService(repos.Events),
		Simulator:     NewSimulatorService(ingest, log),
		Authorization: NewAuthService(repos.Auth, opts.JWTSigningKey),
	}
}

// ReadingParams is the telemetry push payload.
type ReadingParams struct {
	SensorID   int
	Value      float64
	MeasuredAt time.Time // zero means "now"
	Warning    bool
}

// CorrectiveActionParams describes the human action acknowledging an alert.
type CorrectiveActionParams struct {
	Description string
	PerformedBy int
}

// LogFilter supports event history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "ALERT_RAISED", "DEVICE_COMMAND", ...
}
