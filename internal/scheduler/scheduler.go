package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nba_salaries/ingestion/internal/pipeline"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Runner executes one salary sync
type Runner interface {
	Run(ctx context.Context) (pipeline.Summary, error)
}

// Scheduler triggers salary syncs on a cron schedule. A run that is still
// in progress when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	spec     string
	runner   Runner
	afterRun func(context.Context)
	cron     *cron.Cron
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewScheduler creates a scheduler running runner on spec (standard 5-field
// cron). afterRun, if non-nil, is called after every successful run.
func NewScheduler(spec string, runner Runner, afterRun func(context.Context)) *Scheduler {
	return &Scheduler{
		spec:     spec,
		runner:   runner,
		afterRun: afterRun,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{}))),
		stopChan: make(chan struct{}),
	}
}

// Start registers the refresh job and starts the cron loop
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.spec, func() {
		select {
		case <-s.stopChan:
			return
		default:
		}
		log.Info().Msg("Running scheduled salary refresh...")
		s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule salary refresh: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.spec).
		Msg("Salary refresh scheduled")

	return nil
}

// RunOnce runs the pipeline immediately on the caller's goroutine
func (s *Scheduler) RunOnce(ctx context.Context) {
	summary, err := s.runner.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Salary refresh failed")
		return
	}

	log.Info().
		Int("players_written", summary.Players.Written).
		Dur("duration", summary.Duration).
		Msg("Salary refresh finished")

	if s.afterRun != nil {
		s.afterRun(ctx)
	}
}

// Stop stops the cron loop and waits for a running job to finish
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
	})

	log.Info().Msg("Scheduler stopped")
}

// Next returns the next scheduled run time, or the zero time if no job is
// registered
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// cronLogger routes robfig/cron messages into zerolog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
