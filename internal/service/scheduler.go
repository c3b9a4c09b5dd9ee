package service

import (
	"context"
	"time"

	"aquafarm"
	"aquafarm/internal/logger"
	"aquafarm/internal/repository"
)

const defaultWorkerSlots = 4

// SchedulerService is the periodic tick source for time-windowed jobs. Ticks
// fan out to a bounded set of worker slots; a tick that cannot acquire a slot
// before firing is dropped with a warning instead of queueing backlog.
type SchedulerService struct {
	jobs      Jobs
	eventRepo repository.EventRepo
	log       *logger.Logger
	slots     chan struct{}
}

func NewSchedulerService(jobs Jobs, eventRepo repository.EventRepo, log *logger.Logger, workerSlots int) *SchedulerService {
	if workerSlots <= 0 {
		workerSlots = defaultWorkerSlots
	}
	return &SchedulerService{
		jobs:      jobs,
		eventRepo: eventRepo,
		log:       log,
		slots:     make(chan struct{}, workerSlots),
	}
}

// Run ticks at the given interval until ctx is canceled.
func (s *SchedulerService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()

	s.log.Infow("scheduler_started", "tick", tick.String(), "worker_slots", cap(s.slots))
	for {
		select {
		case <-ctx.Done():
			s.log.Infow("scheduler_stopped")
			return
		case now := <-t.C:
			select {
			case s.slots <- struct{}{}:
				go func(at time.Time) {
					defer func() { <-s.slots }()
					if err := s.jobs.EvaluateTick(ctx, at); err != nil {
						s.log.Errorw("tick_evaluation_failed", "at", at.UTC(), "err", err)
					}
				}(now)
			default:
				// All slots busy: skip rather than pile up work behind a
				// slow evaluation.
				s.log.Warnw("tick_skipped", "at", now.UTC())
				s.appendSkip(ctx, now)
			}
		}
	}
}

func (s *SchedulerService) appendSkip(ctx context.Context, at time.Time) {
	err := s.eventRepo.Append(ctx, aquafarm.EngineEvent{
		Type:        aquafarm.EventTickSkipped,
		Description: "Scheduler tick skipped: all worker slots busy",
		Metadata:    map[string]any{"at": at.UTC().Format(time.RFC3339)},
	})
	if err != nil && s.log != nil {
		s.log.Warnw("event_append_failed", "type", aquafarm.EventTickSkipped, "err", err)
	}
}
