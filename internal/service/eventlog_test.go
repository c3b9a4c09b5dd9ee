package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"aquafarm"
)

// fakeEventRepo is a minimal stub that satisfies the repository.EventRepo interface.
type fakeEventRepo struct {
	// captured inputs
	gotFrom time.Time
	gotTo   time.Time
	gotType string

	// configured outputs
	events []aquafarm.EngineEvent
	err    error

	calls int
}

func (f *fakeEventRepo) List(ctx context.Context, from, to time.Time, typ string) ([]aquafarm.EngineEvent, error) {
	f.calls++
	f.gotFrom = from
	f.gotTo = to
	f.gotType = typ
	return f.events, f.err
}

func (f *fakeEventRepo) Append(ctx context.Context, e aquafarm.EngineEvent) error {
	return nil
}

func Test_normalizeToUTC(t *testing.T) {
	t.Parallel()

	if !normalizeToUTC(time.Time{}).IsZero() {
		t.Fatalf("zero time must stay zero")
	}

	in := time.Date(2025, time.August, 1, 12, 34, 56, 0, time.FixedZone("UTC+3", 3*3600))
	got := normalizeToUTC(in)
	exp := time.Date(2025, time.August, 1, 9, 34, 56, 0, time.UTC)
	if got.Location() != time.UTC || !got.Equal(exp) {
		t.Fatalf("unexpected normalizeToUTC result: %v (loc=%v)", got, got.Location())
	}
}

func Test_normalizeEventType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		exp  string
	}{
		{name: "empty stays empty", in: "", exp: ""},
		{name: "trim spaces", in: "  ALERT_RAISED ", exp: "ALERT_RAISED"},
		{name: "uppercase", in: "device_command", exp: "DEVICE_COMMAND"},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			got := normalizeEventType(c.in)
			if got != c.exp {
				t.Fatalf("normalizeEventType(%q) = %q; want %q", c.in, got, c.exp)
			}
		})
	}
}

func TestEventLogService_List(t *testing.T) {
	repo := &fakeEventRepo{events: []aquafarm.EngineEvent{{Type: aquafarm.EventAlertRaised}}}
	svc := NewEventLogService(repo)

	from := time.Date(2025, time.August, 1, 12, 0, 0, 0, time.FixedZone("UTC+3", 3*3600))
	to := time.Date(2025, time.August, 2, 12, 0, 0, 0, time.UTC)
	out, err := svc.List(context.Background(), LogFilter{From: from, To: to, Type: " alert_raised "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected repo events passed through, got %d", len(out))
	}
	if repo.gotType != "ALERT_RAISED" {
		t.Fatalf("expected normalized type, got %q", repo.gotType)
	}
	if repo.gotFrom.Location() != time.UTC {
		t.Fatalf("expected from normalized to UTC")
	}

	// inverted range rejected without touching the repo
	repo.calls = 0
	_, err = svc.List(context.Background(), LogFilter{From: to, To: from.UTC().Add(-48 * time.Hour)})
	if !errors.Is(err, errInvalidTimeRange) {
		t.Fatalf("expected errInvalidTimeRange, got %v", err)
	}
	if repo.calls != 0 {
		t.Fatalf("invalid filter must not hit the repo")
	}
}
