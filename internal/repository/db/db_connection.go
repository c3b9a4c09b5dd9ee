package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// Conservative pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is not great with many writers
	db.SetMaxIdleConns(1)

	// Pragmas to improve reliability
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA journal_mode=WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA foreign_keys=ON: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA busy_timeout=5000: %w", err)
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

const schemaSensors = `
CREATE TABLE IF NOT EXISTS sensors (
    id INTEGER PRIMARY KEY,
    tank_id INTEGER NOT NULL,
    sensor_type_id INTEGER NOT NULL
);
`

const schemaBatches = `
CREATE TABLE IF NOT EXISTS farming_batches (
    id INTEGER PRIMARY KEY,
    tank_id INTEGER NOT NULL,
    species_id INTEGER NOT NULL,
    growth_stage_id INTEGER NOT NULL,
    active BOOLEAN NOT NULL DEFAULT 1
);
`

const schemaReadings = `
CREATE TABLE IF NOT EXISTS sensor_readings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sensor_id INTEGER NOT NULL,
    value REAL NOT NULL,
    measured_at TIMESTAMP NOT NULL,
    warning BOOLEAN NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_readings_sensor_time ON sensor_readings (sensor_id, measured_at);
`

const schemaThresholds = `
CREATE TABLE IF NOT EXISTS species_thresholds (
    id INTEGER PRIMARY KEY,
    species_id INTEGER NOT NULL,
    growth_stage_id INTEGER NOT NULL,
    sensor_type_id INTEGER NOT NULL,
    min_value REAL NOT NULL,
    max_value REAL NOT NULL,
    UNIQUE (species_id, growth_stage_id, sensor_type_id)
);
`

// The partial unique index backs the "one non-RESOLVED alert per scope"
// invariant at the storage level, on top of the per-scope locking in the
// service layer.
const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    reading_id INTEGER NOT NULL,
    threshold_id INTEGER NOT NULL,
    batch_id INTEGER NOT NULL,
    tank_id INTEGER NOT NULL,
    sensor_type_id INTEGER NOT NULL,
    value REAL NOT NULL,
    last_value REAL NOT NULL,
    status TEXT NOT NULL,
    raised_at TIMESTAMP NOT NULL,
    resolved_at TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_open_scope
    ON alerts (tank_id, batch_id, sensor_type_id, threshold_id)
    WHERE status != 'RESOLVED';
`

const schemaCorrectiveActions = `
CREATE TABLE IF NOT EXISTS corrective_actions (
    id TEXT PRIMARY KEY,
    alert_id TEXT NOT NULL REFERENCES alerts(id),
    description TEXT NOT NULL,
    performed_by INTEGER,
    performed_at TIMESTAMP NOT NULL
);
`

const schemaDevices = `
CREATE TABLE IF NOT EXISTS control_devices (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    state BOOLEAN NOT NULL DEFAULT 0,
    command_on TEXT NOT NULL,
    command_off TEXT NOT NULL,
    updated_at TIMESTAMP
);
`

const schemaJobs = `
CREATE TABLE IF NOT EXISTS jobs (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    sensor_id INTEGER,
    min_value REAL,
    max_value REAL,
    default_state BOOLEAN NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT 1,
    start_time TEXT,
    end_time TEXT,
    repeat_minutes INTEGER,
    days INTEGER NOT NULL DEFAULT 127
);
CREATE INDEX IF NOT EXISTS idx_jobs_kind_active ON jobs (kind, is_active);
CREATE INDEX IF NOT EXISTS idx_jobs_sensor ON jobs (sensor_id) WHERE sensor_id IS NOT NULL;
`

const schemaJobMappings = `
CREATE TABLE IF NOT EXISTS job_control_mappings (
    job_id INTEGER NOT NULL REFERENCES jobs(id),
    device_id INTEGER NOT NULL REFERENCES control_devices(id),
    target_state BOOLEAN NOT NULL,
    condition TEXT NOT NULL,
    PRIMARY KEY (job_id, device_id)
);
`

const schemaEngineEvents = `
CREATE TABLE IF NOT EXISTS engine_events (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    message TEXT NOT NULL,
    meta TEXT
);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		// In case of panic, rollback to avoid leaving an open transaction
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaSensors,
		schemaBatches,
		schemaReadings,
		schemaThresholds,
		schemaAlerts,
		schemaCorrectiveActions,
		schemaDevices,
		schemaJobs,
		schemaJobMappings,
		schemaEngineEvents,
		schemaUsers,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
