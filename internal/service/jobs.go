package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aquafarm"
	"aquafarm/internal/logger"
	"aquafarm/internal/repository"
)

// JobService evaluates trigger conditions for sensor-based jobs and schedule
// windows for scheduled jobs, then hands (device, desired state) pairs to the
// dispatcher. It performs no device I/O itself.
type JobService struct {
	jobRepo    repository.JobRepo
	dispatcher Dispatcher
	log        *logger.Logger
}

func NewJobService(jobRepo repository.JobRepo, dispatcher Dispatcher, log *logger.Logger) *JobService {
	return &JobService{jobRepo: jobRepo, dispatcher: dispatcher, log: log}
}

// desiredState is one job's vote for a device within a single evaluation pass.
type desiredState struct {
	jobID int
	state bool
}

// EvaluateReading evaluates all active SENSOR_BASED jobs referencing the
// reading's sensor and dispatches the resulting desired device states.
func (s *JobService) EvaluateReading(ctx context.Context, reading aquafarm.SensorReading) error {
	jobs, err := s.jobRepo.ListSensorJobs(ctx, reading.SensorID)
	if err != nil {
		return fmt.Errorf("list sensor jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	votes := make(map[int][]desiredState)
	for _, job := range jobs {
		if !s.validSensorJob(job) {
			continue
		}
		mappings, err := s.jobRepo.MappingsByJob(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("mappings for job %d: %w", job.ID, err)
		}
		for _, m := range mappings {
			fn, ok := lookupCondition(m.Condition)
			if !ok {
				s.log.Warnw("unknown_trigger_condition", "job_id", job.ID, "condition", m.Condition)
				continue
			}
			desired := job.DefaultState
			if fn(reading.Value, job.MinValue, job.MaxValue) {
				desired = m.TargetState
			}
			votes[m.DeviceID] = append(votes[m.DeviceID], desiredState{jobID: job.ID, state: desired})
		}
	}

	return s.dispatch(ctx, votes)
}

// EvaluateTick evaluates all active SCHEDULED jobs at the given instant.
// Inside the schedule window every mapping's target state applies (implicit
// ALWAYS); outside it, the job's default state.
func (s *JobService) EvaluateTick(ctx context.Context, now time.Time) error {
	jobs, err := s.jobRepo.ListScheduledJobs(ctx)
	if err != nil {
		return fmt.Errorf("list scheduled jobs: %w", err)
	}

	votes := make(map[int][]desiredState)
	for _, job := range jobs {
		inWindow, ok := s.scheduleHolds(job, now)
		if !ok {
			continue // misconfigured, logged and skipped
		}
		mappings, err := s.jobRepo.MappingsByJob(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("mappings for job %d: %w", job.ID, err)
		}
		for _, m := range mappings {
			desired := job.DefaultState
			if inWindow {
				desired = m.TargetState
			}
			votes[m.DeviceID] = append(votes[m.DeviceID], desiredState{jobID: job.ID, state: desired})
		}
	}

	return s.dispatch(ctx, votes)
}

// dispatch reconciles aggregated votes into one command per device.
//
// When several jobs vote conflicting states for the same device within one
// pass, OFF wins: a device is switched on only if every vote agrees. Each
// contributing job's active flag is re-checked just before dispatch so that
// a job deactivated mid-evaluation issues no command.
func (s *JobService) dispatch(ctx context.Context, votes map[int][]desiredState) error {
	var firstErr error
	for deviceID, list := range votes {
		desired := true
		live := 0
		for _, v := range list {
			active, err := s.jobStillActive(ctx, v.jobID)
			if err != nil {
				s.log.Warnw("job_recheck_failed", "job_id", v.jobID, "err", err)
				continue
			}
			if !active {
				continue
			}
			live++
			if !v.state {
				desired = false
			}
		}
		if live == 0 {
			continue
		}
		if err := s.dispatcher.Apply(ctx, deviceID, desired); err != nil {
			s.log.Errorw("device_apply_failed", "device_id", deviceID, "desired", desired, "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *JobService) jobStillActive(ctx context.Context, jobID int) (bool, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return job.IsActive, nil
}

// validSensorJob rejects a sensor job with min >= max when both bounds are
// set. The administrative layer should have caught it; skip it here too.
func (s *JobService) validSensorJob(job aquafarm.Job) bool {
	if job.MinValue != nil && job.MaxValue != nil && *job.MinValue >= *job.MaxValue {
		s.log.Warnw("job_misconfigured", "job_id", job.ID, "reason", "min >= max")
		return false
	}
	return true
}

// scheduleHolds reports whether now falls inside the job's schedule window.
// The second return is false when the job is misconfigured.
func (s *JobService) scheduleHolds(job aquafarm.Job, now time.Time) (inWindow bool, ok bool) {
	if !job.Days.Contains(now.Weekday()) {
		return false, true
	}
	if job.StartTime == "" || job.EndTime == "" {
		// No bounded window configured: the active job holds all day.
		return true, true
	}

	start, err := parseTimeOfDay(job.StartTime)
	if err != nil {
		s.log.Warnw("job_misconfigured", "job_id", job.ID, "reason", "bad start_time", "err", err)
		return false, false
	}
	end, err := parseTimeOfDay(job.EndTime)
	if err != nil {
		s.log.Warnw("job_misconfigured", "job_id", job.ID, "reason", "bad end_time", "err", err)
		return false, false
	}
	if start > end {
		s.log.Warnw("job_misconfigured", "job_id", job.ID, "reason", "start_time after end_time")
		return false, false
	}

	minuteOfDay := now.Hour()*60 + now.Minute()
	if minuteOfDay < start || minuteOfDay > end {
		return false, true
	}
	if job.RepeatMinutes > 0 {
		// Repeating window: the job holds during one-minute sub-windows at
		// startTime, startTime+repeat, startTime+2*repeat, ... up to endTime.
		return (minuteOfDay-start)%job.RepeatMinutes == 0, true
	}
	return true, true
}

func (s *JobService) List(ctx context.Context) ([]aquafarm.Job, error) {
	return s.jobRepo.List(ctx)
}

// SetActive flips the only job field the engine may write: the active flag
// gating evaluation.
func (s *JobService) SetActive(ctx context.Context, jobID int, active bool) error {
	if err := s.jobRepo.SetActive(ctx, jobID, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("job %d: %w", jobID, err)
		}
		return err
	}
	s.log.Infow("job_active_changed", "job_id", jobID, "active", active)
	return nil
}

// parseTimeOfDay converts "HH:MM" into minutes since midnight.
func parseTimeOfDay(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", v, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
