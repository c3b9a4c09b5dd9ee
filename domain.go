package aquafarm

import "time"

// Alert lifecycle statuses. Transitions are strictly forward:
// OPEN -> ACKNOWLEDGED -> RESOLVED.
const (
	AlertOpen         = "OPEN"
	AlertAcknowledged = "ACKNOWLEDGED"
	AlertResolved     = "RESOLVED"
)

// Job kinds.
const (
	JobScheduled   = "SCHEDULED"
	JobSensorBased = "SENSOR_BASED"
	JobManual      = "MANUAL"
)

// TriggerCondition selects the predicate a JobControlMapping applies to a
// sensor value. The set is extensible; see service.RegisterCondition.
type TriggerCondition string

const (
	CondAlways      TriggerCondition = "ALWAYS"
	CondAboveMax    TriggerCondition = "ABOVE_MAX"
	CondBelowMin    TriggerCondition = "BELOW_MIN"
	CondWithinRange TriggerCondition = "WITHIN_RANGE"
)

// DayMask is a bitmask of weekdays a scheduled job runs on (bit 0 = Monday).
type DayMask uint8

const AllDays DayMask = 0x7F

// Contains reports whether the given weekday is set in the mask.
func (m DayMask) Contains(d time.Weekday) bool {
	// time.Weekday counts Sunday=0; the mask counts Monday=bit 0.
	idx := (int(d) + 6) % 7
	return m&(1<<idx) != 0
}

// SensorReading is a single telemetry sample. Create-only, never updated.
type SensorReading struct {
	ID         int64     `json:"id"`
	SensorID   int       `json:"sensor_id"`
	Value      float64   `json:"value"`
	MeasuredAt time.Time `json:"measured_at"`
	Warning    bool      `json:"warning"`
}

// SpeciesThreshold is the allowed [Min, Max] band for a sensor type given a
// species and growth stage. Administrative data, read-only to the engine.
type SpeciesThreshold struct {
	ID            int     `json:"id"`
	SpeciesID     int     `json:"species_id"`
	GrowthStageID int     `json:"growth_stage_id"`
	SensorTypeID  int     `json:"sensor_type_id"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
}

// AlertScope deduplicates open alerts: at most one non-RESOLVED alert may
// exist per scope at any time.
type AlertScope struct {
	TankID       int `json:"tank_id"`
	BatchID      int `json:"batch_id"`
	SensorTypeID int `json:"sensor_type_id"`
	ThresholdID  int `json:"threshold_id"`
}

// Alert is a threshold-breach record. Never deleted; kept as audit history.
type Alert struct {
	ID           string     `json:"id"`
	ReadingID    int64      `json:"reading_id"`
	ThresholdID  int        `json:"threshold_id"`
	BatchID      int        `json:"batch_id"`
	TankID       int        `json:"tank_id"`
	SensorTypeID int        `json:"sensor_type_id"`
	Value        float64    `json:"value"`      // value of the first breaching reading
	LastValue    float64    `json:"last_value"` // most recent breaching value seen
	Status       string     `json:"status"`     // OPEN | ACKNOWLEDGED | RESOLVED
	RaisedAt     time.Time  `json:"raised_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// Scope returns the dedup key of the alert.
func (a Alert) Scope() AlertScope {
	return AlertScope{
		TankID:       a.TankID,
		BatchID:      a.BatchID,
		SensorTypeID: a.SensorTypeID,
		ThresholdID:  a.ThresholdID,
	}
}

// CorrectiveAction records the human response that acknowledges an alert.
type CorrectiveAction struct {
	ID          string    `json:"id"`
	AlertID     string    `json:"alert_id"`
	Description string    `json:"description"`
	PerformedBy int       `json:"performed_by,omitempty"`
	PerformedAt time.Time `json:"performed_at"`
}

// Job is an automation rule. Administrative and read-only to the engine
// except for IsActive, which gates evaluation.
type Job struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	Kind          string   `json:"kind"` // SCHEDULED | SENSOR_BASED | MANUAL
	SensorID      *int     `json:"sensor_id,omitempty"`
	MinValue      *float64 `json:"min_value,omitempty"`
	MaxValue      *float64 `json:"max_value,omitempty"`
	DefaultState  bool     `json:"default_state"`
	IsActive      bool     `json:"is_active"`
	StartTime     string   `json:"start_time,omitempty"` // "HH:MM", empty = unbounded
	EndTime       string   `json:"end_time,omitempty"`   // "HH:MM", empty = unbounded
	RepeatMinutes int      `json:"repeat_minutes,omitempty"`
	Days          DayMask  `json:"days"`
}

// JobControlMapping binds a job to a control device with a trigger predicate.
type JobControlMapping struct {
	JobID       int              `json:"job_id"`
	DeviceID    int              `json:"device_id"`
	TargetState bool             `json:"target_state"`
	Condition   TriggerCondition `json:"condition"`
}

// ControlDevice is an actuated device (pump, aerator, feeder). State is the
// last state the dispatcher confirmed to the hardware; it is written only by
// the dispatcher.
type ControlDevice struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	State      bool      `json:"state"`
	CommandOn  string    `json:"command_on"`
	CommandOff string    `json:"command_off"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SensorContext is the tank/batch/species resolution for a reading's sensor,
// taken from the active farming batch on the sensor's tank.
type SensorContext struct {
	SensorID      int `json:"sensor_id"`
	SensorTypeID  int `json:"sensor_type_id"`
	TankID        int `json:"tank_id"`
	BatchID       int `json:"batch_id"`
	SpeciesID     int `json:"species_id"`
	GrowthStageID int `json:"growth_stage_id"`
}

// EngineEvent is a single audit log entry.
type EngineEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // ALERT_RAISED | DEVICE_COMMAND | ...
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

// Engine event types.
const (
	EventAlertRaised       = "ALERT_RAISED"
	EventAlertAcknowledged = "ALERT_ACKNOWLEDGED"
	EventAlertResolved     = "ALERT_RESOLVED"
	EventDeviceCommand     = "DEVICE_COMMAND"
	EventDeviceError       = "DEVICE_ERROR"
	EventTickSkipped       = "TICK_SKIPPED"
)

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // don’t expose hash
}
