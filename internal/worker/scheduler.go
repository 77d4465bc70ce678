package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs a CollectJob on a cron schedule. Runs never overlap.
type Scheduler struct {
	job      *CollectJob
	schedule cron.Schedule
	spec     string
	logger   zerolog.Logger
	cron     *cron.Cron

	mu      sync.Mutex
	cancel  context.CancelFunc
	entryID cron.EntryID
	lastRun *CollectResult
}

// NewScheduler validates the job's schedule and creates a stopped scheduler.
func NewScheduler(job *CollectJob, logger zerolog.Logger) (*Scheduler, error) {
	spec := job.Config().Schedule
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
	}

	cl := cronLogger{logger: logger}
	return &Scheduler{
		job:      job,
		schedule: schedule,
		spec:     spec,
		logger:   logger,
		cron: cron.New(cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
	}, nil
}

// Start schedules the job. Runs stop receiving new work once ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return fmt.Errorf("scheduler already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.entryID = s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		s.RunNow(runCtx)
	}))
	s.cron.Start()

	s.logger.Info().
		Str("schedule", s.spec).
		Time("next_run", s.Next()).
		Msg("collect scheduler started")
	return nil
}

// Stop halts scheduling and cancels a run in progress. The returned context
// is done once the running job has returned.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.logger.Info().Msg("collect scheduler stopping")
	return s.cron.Stop()
}

// Next returns the next scheduled run, or the zero time when not started.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// RunNow runs the job immediately in the calling goroutine.
func (s *Scheduler) RunNow(ctx context.Context) *CollectResult {
	result := s.job.Run(ctx)

	s.mu.Lock()
	s.lastRun = result
	s.mu.Unlock()

	return result
}

// LastRun returns the result of the most recent run, or nil.
func (s *Scheduler) LastRun() *CollectResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
