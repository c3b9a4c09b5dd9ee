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

	"github.com/google/uuid"
)

// Domain errors for the alert state machine.
var (
	ErrAlertNotFound      = errors.New("alert not found")
	ErrInvalidTransition  = errors.New("invalid alert status transition")
	ErrEmptyActionMessage = errors.New("corrective action description is empty")
)

// scopeLocks hands out one mutex per alert scope so that check-then-create
// in OpenOrTouch is atomic per scope.
type scopeLocks struct {
	mu    sync.Mutex
	locks map[aquafarm.AlertScope]*sync.Mutex
}

func newScopeLocks() *scopeLocks {
	return &scopeLocks{locks: make(map[aquafarm.AlertScope]*sync.Mutex)}
}

func (l *scopeLocks) get(scope aquafarm.AlertScope) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[scope]
	if !ok {
		m = &sync.Mutex{}
		l.locks[scope] = m
	}
	return m
}

// AlertService owns the alert state machine: OPEN -> ACKNOWLEDGED -> RESOLVED,
// with at most one non-RESOLVED alert per scope.
type AlertService struct {
	alertRepo repository.AlertRepo
	eventRepo repository.EventRepo
	log       *logger.Logger
	scopes    *scopeLocks
}

func NewAlertService(alertRepo repository.AlertRepo, eventRepo repository.EventRepo, log *logger.Logger) *AlertService {
	return &AlertService{
		alertRepo: alertRepo,
		eventRepo: eventRepo,
		log:       log,
		scopes:    newScopeLocks(),
	}
}

// OpenOrTouch creates an OPEN alert for the scope, or, when a non-RESOLVED
// alert already exists, updates its last-seen value and creates nothing.
// Returns the alert and whether it was newly created.
func (s *AlertService) OpenOrTouch(ctx context.Context, scope aquafarm.AlertScope, reading aquafarm.SensorReading, threshold aquafarm.SpeciesThreshold) (aquafarm.Alert, bool, error) {
	mu := s.scopes.get(scope)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.alertRepo.GetOpenByScope(ctx, scope)
	if err != nil {
		return aquafarm.Alert{}, false, fmt.Errorf("check open alert: %w", err)
	}
	if existing != nil {
		// Dedup no-op; keep the last breaching value for observability.
		if err := s.alertRepo.TouchValue(ctx, existing.ID, reading.Value); err != nil {
			return aquafarm.Alert{}, false, fmt.Errorf("touch alert %s: %w", existing.ID, err)
		}
		existing.LastValue = reading.Value
		return *existing, false, nil
	}

	now := time.Now().UTC()
	alert := aquafarm.Alert{
		ID:           uuid.NewString(),
		ReadingID:    reading.ID,
		ThresholdID:  scope.ThresholdID,
		BatchID:      scope.BatchID,
		TankID:       scope.TankID,
		SensorTypeID: scope.SensorTypeID,
		Value:        reading.Value,
		LastValue:    reading.Value,
		Status:       aquafarm.AlertOpen,
		RaisedAt:     now,
	}
	if err := s.alertRepo.Create(ctx, alert); err != nil {
		return aquafarm.Alert{}, false, fmt.Errorf("create alert: %w", err)
	}

	s.appendEvent(ctx, aquafarm.EventAlertRaised, fmt.Sprintf("Alert raised for tank %d", scope.TankID), map[string]any{
		"alert_id":       alert.ID,
		"tank_id":        scope.TankID,
		"batch_id":       scope.BatchID,
		"sensor_type_id": scope.SensorTypeID,
		"value":          reading.Value,
		"min":            threshold.Min,
		"max":            threshold.Max,
	})
	return alert, true, nil
}

// Acknowledge attaches a corrective action and moves OPEN -> ACKNOWLEDGED.
// Idempotent when already ACKNOWLEDGED; rejected when RESOLVED.
func (s *AlertService) Acknowledge(ctx context.Context, alertID string, p CorrectiveActionParams) error {
	if p.Description == "" {
		return ErrEmptyActionMessage
	}

	alert, err := s.alertRepo.GetByID(ctx, alertID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAlertNotFound
		}
		return err
	}
	if alert.Status == aquafarm.AlertResolved {
		return fmt.Errorf("%w: alert %s is RESOLVED", ErrInvalidTransition, alertID)
	}

	if alert.Status == aquafarm.AlertOpen {
		if err := s.alertRepo.SetStatus(ctx, alertID, aquafarm.AlertAcknowledged, nil); err != nil {
			// A resolve may have committed between our read and this write.
			if errors.Is(err, repository.ErrAlreadyResolved) {
				return fmt.Errorf("%w: alert %s is RESOLVED", ErrInvalidTransition, alertID)
			}
			return fmt.Errorf("acknowledge alert %s: %w", alertID, err)
		}
	}
	// The corrective action is recorded even on an idempotent re-acknowledge;
	// each human action is part of the audit trail.
	action := aquafarm.CorrectiveAction{
		ID:          uuid.NewString(),
		AlertID:     alertID,
		Description: p.Description,
		PerformedBy: p.PerformedBy,
		PerformedAt: time.Now().UTC(),
	}
	if err := s.alertRepo.AddCorrectiveAction(ctx, action); err != nil {
		return fmt.Errorf("record corrective action: %w", err)
	}

	s.appendEvent(ctx, aquafarm.EventAlertAcknowledged, "Alert acknowledged", map[string]any{
		"alert_id": alertID,
		"action":   p.Description,
	})
	return nil
}

// Resolve moves the alert to the terminal RESOLVED state and sets resolvedAt.
func (s *AlertService) Resolve(ctx context.Context, alertID string) error {
	alert, err := s.alertRepo.GetByID(ctx, alertID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAlertNotFound
		}
		return err
	}
	if alert.Status == aquafarm.AlertResolved {
		return fmt.Errorf("%w: alert %s already RESOLVED", ErrInvalidTransition, alertID)
	}

	now := time.Now().UTC()
	if err := s.alertRepo.SetStatus(ctx, alertID, aquafarm.AlertResolved, &now); err != nil {
		if errors.Is(err, repository.ErrAlreadyResolved) {
			return fmt.Errorf("%w: alert %s already RESOLVED", ErrInvalidTransition, alertID)
		}
		return fmt.Errorf("resolve alert %s: %w", alertID, err)
	}

	s.appendEvent(ctx, aquafarm.EventAlertResolved, "Alert resolved", map[string]any{
		"alert_id": alertID,
	})
	return nil
}

func (s *AlertService) List(ctx context.Context, status string) ([]aquafarm.Alert, error) {
	return s.alertRepo.List(ctx, status)
}

// appendEvent is best-effort: a failed audit write must not fail the
// lifecycle operation it describes.
func (s *AlertService) appendEvent(ctx context.Context, typ, msg string, meta map[string]any) {
	err := s.eventRepo.Append(ctx, aquafarm.EngineEvent{
		Type:        typ,
		Description: msg,
		Metadata:    meta,
	})
	if err != nil && s.log != nil {
		s.log.Warnw("event_append_failed", "type", typ, "err", err)
	}
}
