package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"aquafarm"
	"aquafarm/internal/logger"
	"aquafarm/internal/repository"
)

var errInvalidSensorID = errors.New("sensor id must be positive")

// tankScope serializes evaluations per (tank, sensor type): alert dedup and
// device-state comparison are check-then-act sequences that must not race
// within one scope. Distinct scopes evaluate in parallel.
type tankScope struct {
	TankID       int
	SensorTypeID int
}

// IngestService is the entry point for telemetry: it persists the reading,
// compares it against the configured band and drives the alert manager, then
// fans out to sensor-based jobs.
type IngestService struct {
	readingRepo repository.ReadingRepo
	thresholds  Thresholds
	alerts      Alerts
	jobs        Jobs
	log         *logger.Logger

	mu    sync.Mutex
	locks map[tankScope]*sync.Mutex
}

func NewIngestService(readingRepo repository.ReadingRepo, thresholds Thresholds, alerts Alerts, jobs Jobs, log *logger.Logger) *IngestService {
	return &IngestService{
		readingRepo: readingRepo,
		thresholds:  thresholds,
		alerts:      alerts,
		jobs:        jobs,
		log:         log,
		locks:       make(map[tankScope]*sync.Mutex),
	}
}

func (s *IngestService) scopeLock(scope tankScope) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[scope]
	if !ok {
		m = &sync.Mutex{}
		s.locks[scope] = m
	}
	return m
}

// HandleReading processes one sensor reading end to end. A sensor without a
// resolvable context or a configured threshold is not a fault: the reading is
// stored and evaluation simply ends there.
func (s *IngestService) HandleReading(ctx context.Context, p ReadingParams) (aquafarm.SensorReading, error) {
	if p.SensorID <= 0 {
		return aquafarm.SensorReading{}, errInvalidSensorID
	}

	reading := aquafarm.SensorReading{
		SensorID:   p.SensorID,
		Value:      p.Value,
		MeasuredAt: normalizeReadingTime(p.MeasuredAt),
		Warning:    p.Warning,
	}
	id, err := s.readingRepo.Append(ctx, reading)
	if err != nil {
		return aquafarm.SensorReading{}, fmt.Errorf("store reading: %w", err)
	}
	reading.ID = id

	sc, err := s.readingRepo.ResolveContext(ctx, p.SensorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// No tank/batch context: telemetry only, nothing to automate.
			s.log.Debugw("reading_without_context", "sensor_id", p.SensorID)
			return reading, nil
		}
		return reading, fmt.Errorf("resolve sensor context: %w", err)
	}

	lock := s.scopeLock(tankScope{TankID: sc.TankID, SensorTypeID: sc.SensorTypeID})
	lock.Lock()
	if err := s.evaluateThreshold(ctx, reading, sc); err != nil {
		lock.Unlock()
		return reading, err
	}
	lock.Unlock()

	// Sensor-based jobs run on the same reading, same dispatch path as
	// scheduled jobs. Device actuation is job-driven, never alert-driven.
	if err := s.jobs.EvaluateReading(ctx, reading); err != nil {
		return reading, fmt.Errorf("evaluate jobs: %w", err)
	}
	return reading, nil
}

// evaluateThreshold implements the alert half of the fan-out: out-of-range
// opens or touches the scope's alert, in-range takes no alert action
// (resolution is a deliberate human act, never automatic recovery).
func (s *IngestService) evaluateThreshold(ctx context.Context, reading aquafarm.SensorReading, sc aquafarm.SensorContext) error {
	threshold, err := s.thresholds.Lookup(ctx, sc.SpeciesID, sc.GrowthStageID, sc.SensorTypeID)
	if err != nil {
		if errors.Is(err, ErrThresholdNotFound) {
			return nil // automation not configured for this combination
		}
		if errors.Is(err, ErrMisconfiguredThreshold) {
			s.log.Warnw("threshold_misconfigured",
				"species_id", sc.SpeciesID, "growth_stage_id", sc.GrowthStageID,
				"sensor_type_id", sc.SensorTypeID)
			return nil
		}
		return err
	}

	// Equality to a bound counts as in-range.
	if reading.Value >= threshold.Min && reading.Value <= threshold.Max {
		return nil
	}

	scope := aquafarm.AlertScope{
		TankID:       sc.TankID,
		BatchID:      sc.BatchID,
		SensorTypeID: sc.SensorTypeID,
		ThresholdID:  threshold.ID,
	}
	alert, created, err := s.alerts.OpenOrTouch(ctx, scope, reading, threshold)
	if err != nil {
		return fmt.Errorf("open or touch alert: %w", err)
	}
	if created {
		s.log.Infow("alert_opened",
			"alert_id", alert.ID, "tank_id", sc.TankID, "value", reading.Value,
			"min", threshold.Min, "max", threshold.Max)
	}
	return nil
}

func normalizeReadingTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
