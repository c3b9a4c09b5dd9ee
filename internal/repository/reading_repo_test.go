package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"aquafarm"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestReadingSQLite_Append_DefaultsZeroTimeToUTCNow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := NewReadingSQLite(db)

	isUTCRecent := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		if !ok || tm.Location() != time.UTC {
			return false
		}
		now := time.Now().UTC()
		return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sensor_readings")).
		WithArgs(1, 31.2, isUTCRecent, false).
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := repo.Append(context.Background(), aquafarm.SensorReading{SensorID: 1, Value: 31.2})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if id != 7 {
		t.Fatalf("expected generated id 7, got %d", id)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReadingSQLite_ResolveContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()

	repo := NewReadingSQLite(db)

	rows := sqlmock.NewRows([]string{"id", "sensor_type_id", "tank_id", "id", "species_id", "growth_stage_id"}).
		AddRow(1, 2, 3, 9, 5, 6)
	mock.ExpectQuery(regexp.QuoteMeta("JOIN farming_batches")).
		WithArgs(1).
		WillReturnRows(rows)

	sc, err := repo.ResolveContext(context.Background(), 1)
	if err != nil {
		t.Fatalf("ResolveContext() error = %v", err)
	}
	want := aquafarm.SensorContext{SensorID: 1, SensorTypeID: 2, TankID: 3, BatchID: 9, SpeciesID: 5, GrowthStageID: 6}
	if sc != want {
		t.Fatalf("got %+v, want %+v", sc, want)
	}

	// sensor without an active batch has no context
	mock.ExpectQuery(regexp.QuoteMeta("JOIN farming_batches")).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows(nil))

	if _, err := repo.ResolveContext(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
