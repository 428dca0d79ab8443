package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// #region scheduler
// Scheduler runs a Cycle on a cron schedule. Runs never overlap: a tick that
// fires while a cycle is running is skipped, and Trigger waits its turn.
type Scheduler struct {
	cron     *cron.Cron
	cycle    *Cycle
	schedule string
	entry    cron.EntryID

	runMu sync.Mutex // held for the duration of a cycle

	mu         sync.Mutex
	running    bool
	lastRun    *time.Time
	runCount   int
	lastReport *Report
}

// NewScheduler creates a scheduler for cycle. An empty schedule means
// DefaultSchedule.
func NewScheduler(cycle *Cycle, schedule string) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	logger := cronLogger{}
	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		cycle:    cycle,
		schedule: schedule,
	}
	id, err := s.cron.AddFunc(schedule, func() {
		s.run(context.Background())
	})
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", schedule, err)
	}
	s.entry = id
	return s, nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	log.Info().Str("component", "maintenance").Str("schedule", s.schedule).Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Str("component", "maintenance").Msg("scheduler stopped")
}

// Trigger runs a cycle now and returns its report.
func (s *Scheduler) Trigger(ctx context.Context) Report {
	return s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) Report {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	report := s.cycle.Run(ctx)

	s.mu.Lock()
	now := time.Now().UTC()
	s.lastRun = &now
	s.runCount++
	s.lastReport = &report
	s.mu.Unlock()
	return report
}

// Status reports scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:  s.running,
		Schedule: s.schedule,
		LastRun:  s.lastRun,
		RunCount: s.runCount,
	}
	if s.running {
		if next := s.cron.Entry(s.entry).Next; !next.IsZero() {
			st.NextRun = &next
		}
	}
	return st
}

// LastReport returns the report of the most recent cycle, if any.
func (s *Scheduler) LastReport() (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastReport == nil {
		return Report{}, false
	}
	return *s.lastReport, true
}

// #endregion scheduler

// #region cron-logger
// cronLogger routes cron's internal logging through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Str("component", "cron").Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Str("component", "cron").Fields(keysAndValues).Msg(msg)
}

// #endregion cron-logger
