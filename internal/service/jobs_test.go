package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"aquafarm"
	"aquafarm/internal/logger"
	"aquafarm/internal/repository"
)

// ---- Test doubles ----

type fakeJobRepo struct {
	sensorJobs    []aquafarm.Job
	scheduledJobs []aquafarm.Job
	mappings      map[int][]aquafarm.JobControlMapping
	byID          map[int]*aquafarm.Job
	setActiveErr  error
}

func (f *fakeJobRepo) ListSensorJobs(ctx context.Context, sensorID int) ([]aquafarm.Job, error) {
	return f.sensorJobs, nil
}
func (f *fakeJobRepo) ListScheduledJobs(ctx context.Context) ([]aquafarm.Job, error) {
	return f.scheduledJobs, nil
}
func (f *fakeJobRepo) GetByID(ctx context.Context, jobID int) (*aquafarm.Job, error) {
	j, ok := f.byID[jobID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return j, nil
}
func (f *fakeJobRepo) MappingsByJob(ctx context.Context, jobID int) ([]aquafarm.JobControlMapping, error) {
	return f.mappings[jobID], nil
}
func (f *fakeJobRepo) SetActive(ctx context.Context, jobID int, active bool) error {
	return f.setActiveErr
}
func (f *fakeJobRepo) List(ctx context.Context) ([]aquafarm.Job, error) { return nil, nil }

type appliedState struct {
	deviceID int
	desired  bool
}

type dispatcherStub struct {
	applies  []appliedState
	applyErr error
}

func (d *dispatcherStub) Apply(ctx context.Context, deviceID int, desired bool) error {
	d.applies = append(d.applies, appliedState{deviceID: deviceID, desired: desired})
	return d.applyErr
}
func (d *dispatcherStub) Devices(ctx context.Context) ([]aquafarm.ControlDevice, error) {
	return nil, nil
}

func fptr(v float64) *float64 { return &v }

func iptr(v int) *int { return &v }

func newJobTestService(repo *fakeJobRepo, disp *dispatcherStub) *JobService {
	return NewJobService(repo, disp, logger.Get(logger.ErrorLevel))
}

// activeSensorJob returns a job wired to sensor 1 with the [24, 30] band.
func activeSensorJob(id int) aquafarm.Job {
	return aquafarm.Job{
		ID:           id,
		Kind:         aquafarm.JobSensorBased,
		SensorID:     iptr(1),
		MinValue:     fptr(24),
		MaxValue:     fptr(30),
		DefaultState: false,
		IsActive:     true,
	}
}

// ---- Trigger conditions ----

func TestTriggerConditions(t *testing.T) {
	min, max := fptr(24), fptr(30)
	cases := []struct {
		cond  aquafarm.TriggerCondition
		value float64
		want  bool
	}{
		{aquafarm.CondAlways, 0, true},
		{aquafarm.CondAboveMax, 31.2, true},
		{aquafarm.CondAboveMax, 29.0, false},
		{aquafarm.CondAboveMax, 30.0, false}, // bound itself is in range
		{aquafarm.CondBelowMin, 23.5, true},
		{aquafarm.CondBelowMin, 24.0, false},
		{aquafarm.CondWithinRange, 27.0, true},
		{aquafarm.CondWithinRange, 24.0, true},
		{aquafarm.CondWithinRange, 30.0, true},
		{aquafarm.CondWithinRange, 31.0, false},
	}
	for _, tc := range cases {
		fn, ok := lookupCondition(tc.cond)
		if !ok {
			t.Fatalf("condition %s not registered", tc.cond)
		}
		if got := fn(tc.value, min, max); got != tc.want {
			t.Fatalf("%s(%.1f): got %v, want %v", tc.cond, tc.value, got, tc.want)
		}
	}

	// conditions needing bounds never fire with nil bounds
	fn, _ := lookupCondition(aquafarm.CondAboveMax)
	if fn(100, nil, nil) {
		t.Fatalf("ABOVE_MAX with nil max must not fire")
	}
	fn, _ = lookupCondition(aquafarm.CondWithinRange)
	if fn(27, min, nil) {
		t.Fatalf("WITHIN_RANGE with nil max must not fire")
	}
}

func TestRegisterCondition(t *testing.T) {
	if err := RegisterCondition("", nil); err == nil {
		t.Fatalf("expected error for empty registration")
	}
	custom := aquafarm.TriggerCondition("TEST_NEGATIVE")
	if err := RegisterCondition(custom, func(v float64, _, _ *float64) bool { return v < 0 }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fn, ok := lookupCondition(custom)
	if !ok || !fn(-1, nil, nil) || fn(1, nil, nil) {
		t.Fatalf("custom condition not usable")
	}
}

// ---- Sensor-based evaluation ----

func TestJobService_EvaluateReading_TargetOnTriggerDefaultOtherwise(t *testing.T) {
	job := activeSensorJob(1)
	repo := &fakeJobRepo{
		sensorJobs: []aquafarm.Job{job},
		mappings: map[int][]aquafarm.JobControlMapping{
			1: {{JobID: 1, DeviceID: 5, TargetState: true, Condition: aquafarm.CondAboveMax}},
		},
		byID: map[int]*aquafarm.Job{1: &job},
	}

	// 31.2 > max 30 → trigger holds → target state
	disp := &dispatcherStub{}
	svc := newJobTestService(repo, disp)
	if err := svc.EvaluateReading(context.Background(), aquafarm.SensorReading{SensorID: 1, Value: 31.2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(disp.applies) != 1 || disp.applies[0] != (appliedState{deviceID: 5, desired: true}) {
		t.Fatalf("expected Apply(5, true), got %+v", disp.applies)
	}

	// 29.0 in range → trigger does not hold → default state
	disp = &dispatcherStub{}
	svc = newJobTestService(repo, disp)
	if err := svc.EvaluateReading(context.Background(), aquafarm.SensorReading{SensorID: 1, Value: 29.0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(disp.applies) != 1 || disp.applies[0] != (appliedState{deviceID: 5, desired: false}) {
		t.Fatalf("expected Apply(5, false), got %+v", disp.applies)
	}
}

func TestJobService_EvaluateReading_OffWinsOnConflict(t *testing.T) {
	jobOn := activeSensorJob(1)
	jobOff := activeSensorJob(2)
	repo := &fakeJobRepo{
		sensorJobs: []aquafarm.Job{jobOn, jobOff},
		mappings: map[int][]aquafarm.JobControlMapping{
			1: {{JobID: 1, DeviceID: 5, TargetState: true, Condition: aquafarm.CondAlways}},
			2: {{JobID: 2, DeviceID: 5, TargetState: false, Condition: aquafarm.CondAlways}},
		},
		byID: map[int]*aquafarm.Job{1: &jobOn, 2: &jobOff},
	}
	disp := &dispatcherStub{}
	svc := newJobTestService(repo, disp)

	if err := svc.EvaluateReading(context.Background(), aquafarm.SensorReading{SensorID: 1, Value: 27}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(disp.applies) != 1 || disp.applies[0].desired != false {
		t.Fatalf("conflicting votes must switch the device off, got %+v", disp.applies)
	}
}

func TestJobService_EvaluateReading_DeactivatedJobIssuesNoCommand(t *testing.T) {
	job := activeSensorJob(1)
	deactivated := job
	deactivated.IsActive = false
	repo := &fakeJobRepo{
		sensorJobs: []aquafarm.Job{job}, // listed before the flag flipped
		mappings: map[int][]aquafarm.JobControlMapping{
			1: {{JobID: 1, DeviceID: 5, TargetState: true, Condition: aquafarm.CondAlways}},
		},
		byID: map[int]*aquafarm.Job{1: &deactivated}, // re-check sees it inactive
	}
	disp := &dispatcherStub{}
	svc := newJobTestService(repo, disp)

	if err := svc.EvaluateReading(context.Background(), aquafarm.SensorReading{SensorID: 1, Value: 27}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(disp.applies) != 0 {
		t.Fatalf("deactivated job must not reach the dispatcher, got %+v", disp.applies)
	}
}

func TestJobService_EvaluateReading_SkipsMisconfiguredAndUnknown(t *testing.T) {
	bad := activeSensorJob(1)
	bad.MinValue, bad.MaxValue = fptr(30), fptr(24) // min >= max
	unknown := activeSensorJob(2)
	repo := &fakeJobRepo{
		sensorJobs: []aquafarm.Job{bad, unknown},
		mappings: map[int][]aquafarm.JobControlMapping{
			1: {{JobID: 1, DeviceID: 5, TargetState: true, Condition: aquafarm.CondAlways}},
			2: {{JobID: 2, DeviceID: 6, TargetState: true, Condition: "NO_SUCH_CONDITION"}},
		},
		byID: map[int]*aquafarm.Job{1: &bad, 2: &unknown},
	}
	disp := &dispatcherStub{}
	svc := newJobTestService(repo, disp)

	if err := svc.EvaluateReading(context.Background(), aquafarm.SensorReading{SensorID: 1, Value: 27}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(disp.applies) != 0 {
		t.Fatalf("misconfigured and unknown-condition mappings must be skipped, got %+v", disp.applies)
	}
}

// ---- Scheduled evaluation ----

// mondayAt builds an instant on Monday 2024-01-01 at the given wall time.
func mondayAt(hour, minute int) time.Time {
	return time.Date(2024, 1, 1, hour, minute, 0, 0, time.UTC)
}

func scheduledJob(id int, start, end string, repeat int, days aquafarm.DayMask) aquafarm.Job {
	return aquafarm.Job{
		ID:            id,
		Kind:          aquafarm.JobScheduled,
		DefaultState:  false,
		IsActive:      true,
		StartTime:     start,
		EndTime:       end,
		RepeatMinutes: repeat,
		Days:          days,
	}
}

func TestJobService_EvaluateTick_Window(t *testing.T) {
	job := scheduledJob(1, "06:00", "06:05", 0, aquafarm.AllDays)
	repo := &fakeJobRepo{
		scheduledJobs: []aquafarm.Job{job},
		mappings: map[int][]aquafarm.JobControlMapping{
			1: {{JobID: 1, DeviceID: 7, TargetState: true}},
		},
		byID: map[int]*aquafarm.Job{1: &job},
	}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"inside window", mondayAt(6, 2), true},
		{"window start", mondayAt(6, 0), true},
		{"window end", mondayAt(6, 5), true},
		{"outside window", mondayAt(7, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			disp := &dispatcherStub{}
			svc := newJobTestService(repo, disp)
			if err := svc.EvaluateTick(context.Background(), tc.now); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(disp.applies) != 1 || disp.applies[0] != (appliedState{deviceID: 7, desired: tc.want}) {
				t.Fatalf("expected Apply(7, %v), got %+v", tc.want, disp.applies)
			}
		})
	}
}

func TestJobService_EvaluateTick_DayMask(t *testing.T) {
	mondayOnly := aquafarm.DayMask(1 << 0)
	job := scheduledJob(1, "06:00", "06:05", 0, mondayOnly)
	repo := &fakeJobRepo{
		scheduledJobs: []aquafarm.Job{job},
		mappings: map[int][]aquafarm.JobControlMapping{
			1: {{JobID: 1, DeviceID: 7, TargetState: true}},
		},
		byID: map[int]*aquafarm.Job{1: &job},
	}

	// Monday inside the window → on
	disp := &dispatcherStub{}
	svc := newJobTestService(repo, disp)
	if err := svc.EvaluateTick(context.Background(), mondayAt(6, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(disp.applies) != 1 || !disp.applies[0].desired {
		t.Fatalf("expected on during Monday window, got %+v", disp.applies)
	}

	// Tuesday, same wall time → day not in mask → default state
	disp = &dispatcherStub{}
	svc = newJobTestService(repo, disp)
	tuesday := time.Date(2024, 1, 2, 6, 2, 0, 0, time.UTC)
	if err := svc.EvaluateTick(context.Background(), tuesday); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(disp.applies) != 1 || disp.applies[0].desired {
		t.Fatalf("expected default off outside day mask, got %+v", disp.applies)
	}
}

func TestJobService_EvaluateTick_RepeatingWindow(t *testing.T) {
	job := scheduledJob(1, "06:00", "18:00", 120, aquafarm.AllDays)
	repo := &fakeJobRepo{
		scheduledJobs: []aquafarm.Job{job},
		mappings: map[int][]aquafarm.JobControlMapping{
			1: {{JobID: 1, DeviceID: 7, TargetState: true}},
		},
		byID: map[int]*aquafarm.Job{1: &job},
	}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"first pulse", mondayAt(6, 0), true},
		{"second pulse", mondayAt(8, 0), true},
		{"between pulses", mondayAt(8, 1), false},
		{"last pulse", mondayAt(18, 0), true},
		{"after window", mondayAt(19, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			disp := &dispatcherStub{}
			svc := newJobTestService(repo, disp)
			if err := svc.EvaluateTick(context.Background(), tc.now); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(disp.applies) != 1 || disp.applies[0].desired != tc.want {
				t.Fatalf("expected desired=%v, got %+v", tc.want, disp.applies)
			}
		})
	}
}

func TestJobService_EvaluateTick_StartAfterEndSkipped(t *testing.T) {
	job := scheduledJob(1, "18:00", "06:00", 0, aquafarm.AllDays)
	repo := &fakeJobRepo{
		scheduledJobs: []aquafarm.Job{job},
		mappings: map[int][]aquafarm.JobControlMapping{
			1: {{JobID: 1, DeviceID: 7, TargetState: true}},
		},
		byID: map[int]*aquafarm.Job{1: &job},
	}
	disp := &dispatcherStub{}
	svc := newJobTestService(repo, disp)

	if err := svc.EvaluateTick(context.Background(), mondayAt(20, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(disp.applies) != 0 {
		t.Fatalf("misconfigured schedule must issue no command, got %+v", disp.applies)
	}
}

func TestJobService_SetActive_NotFound(t *testing.T) {
	repo := &fakeJobRepo{setActiveErr: repository.ErrNotFound}
	svc := newJobTestService(repo, &dispatcherStub{})

	err := svc.SetActive(context.Background(), 99, false)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
