package service

import (
	"context"
	"math"
	"math/rand"
	"time"

	"aquafarm/internal/logger"
)

// ----------- Simulation constants -----------
const (
	simBaseTempC    = 27.0 // center of the simulated temperature drift
	simTempSwingC   = 4.0  // amplitude of the slow sine drift
	simNoiseC       = 0.4  // random jitter added per sample
	simDriftPeriod  = 40 * time.Minute
	simTempSensorID = 1 // sensor seeded for development databases
)

// SimulatorService feeds synthetic drifting telemetry through the real
// ingest path. It exists for development setups without hardware; enable it
// via the simulator.enabled config flag.
type SimulatorService struct {
	ingest Ingest
	log    *logger.Logger
	rng    *rand.Rand
	start  time.Time
}

func NewSimulatorService(ingest Ingest, log *logger.Logger) *SimulatorService {
	return &SimulatorService{
		ingest: ingest,
		log:    log,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		start:  time.Now(),
	}
}

// Run ticks at the given interval until ctx is canceled, emitting one
// temperature reading per tick.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()

	s.log.Infow("simulator_started", "tick", tick.String(), "sensor_id", simTempSensorID)
	for {
		select {
		case <-ctx.Done():
			s.log.Infow("simulator_stopped")
			return
		case now := <-t.C:
			value := s.nextValue(now)
			_, err := s.ingest.HandleReading(ctx, ReadingParams{
				SensorID:   simTempSensorID,
				Value:      value,
				MeasuredAt: now.UTC(),
			})
			if err != nil {
				s.log.Warnw("simulated_reading_rejected", "value", value, "err", err)
			}
		}
	}
}

// nextValue follows a slow sine drift around the base temperature with a
// little jitter, so thresholds get crossed now and then.
func (s *SimulatorService) nextValue(now time.Time) float64 {
	elapsed := now.Sub(s.start).Seconds()
	phase := 2 * math.Pi * elapsed / simDriftPeriod.Seconds()
	noise := (s.rng.Float64()*2 - 1) * simNoiseC
	return simBaseTempC + simTempSwingC*math.Sin(phase) + noise
}
