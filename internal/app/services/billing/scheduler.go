package billing

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/providerdesk/backoffice/internal/app/system"
	"github.com/providerdesk/backoffice/internal/logging"
)

// Scheduler triggers drawdown runs on a cron schedule. It is the same
// idempotent run the HTTP cron endpoint invokes, so overlapping triggers
// only ever bill a day once.
type Scheduler struct {
	service  *Service
	schedule string
	log      *logging.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

var _ system.Service = (*Scheduler)(nil)

// NewScheduler creates a scheduler. The default expression ticks on the
// hour so that each organization is billed at its configured RunHourUTC.
func NewScheduler(service *Service, schedule string, log *logging.Logger) *Scheduler {
	if log == nil {
		log = logging.NewDefault("billing-scheduler")
	}
	if schedule == "" {
		schedule = "0 * * * *"
	}
	return &Scheduler{service: service, schedule: schedule, log: log}
}

func (s *Scheduler) Name() string { return "billing-scheduler" }

func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := s.service.Run(ctx, TriggerSchedule); err != nil {
			s.log.WithError(err).Warn("scheduled billing run failed")
		}
	})
	if err != nil {
		return err
	}

	c.Start()
	s.cron = c
	s.running = true
	s.log.WithField("schedule", s.schedule).Info("billing scheduler started")
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	done := c.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
