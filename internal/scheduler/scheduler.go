package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability/logctx"
	"github.com/robfig/cron/v3"
)

const componentScheduler = "scheduler"

// Maintenance is the part of the reconciliation pipeline run on a schedule.
type Maintenance interface {
	PurgeReconciledBefore(ctx context.Context, cutoff time.Time) (int, error)
	CleanupEmptyIndexes(ctx context.Context) (int, error)
}

// Options configures the maintenance jobs.
type Options struct {
	Location         *time.Location
	PurgeCron        string
	PurgeRetention   time.Duration
	IndexCleanupCron string
	JobTimeout       time.Duration
}

// Scheduler runs the archive purge and the index cleanup on cron schedules.
type Scheduler struct {
	cron *cron.Cron
	jobs Maintenance
	opts Options
	now  func() time.Time
	log  observability.Logger
}

func New(jobs Maintenance, opts Options, tel observability.Observability) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 5 * time.Minute
	}
	logger, _, _ := observability.Resolve(tel)
	logger = logger.With(observability.F("component", componentScheduler))

	cl := cronLogger{log: logger}
	c := cron.New(
		cron.WithLocation(opts.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{cron: c, jobs: jobs, opts: opts, now: time.Now, log: logger}
}

// Start registers the jobs and starts the cron loop. A job with an empty schedule is skipped.
func (s *Scheduler) Start() error {
	if s.opts.PurgeCron != "" {
		if _, err := s.cron.AddFunc(s.opts.PurgeCron, func() { _, _ = s.RunPurge(context.Background()) }); err != nil {
			return fmt.Errorf("scheduler: purge schedule %q: %w", s.opts.PurgeCron, err)
		}
	}
	if s.opts.IndexCleanupCron != "" {
		if _, err := s.cron.AddFunc(s.opts.IndexCleanupCron, func() { _, _ = s.RunIndexCleanup(context.Background()) }); err != nil {
			return fmt.Errorf("scheduler: index cleanup schedule %q: %w", s.opts.IndexCleanupCron, err)
		}
	}
	s.cron.Start()
	s.log.Info("scheduler_started",
		observability.F("purge_cron", s.opts.PurgeCron),
		observability.F("index_cleanup_cron", s.opts.IndexCleanupCron),
	)
	return nil
}

// Stop prevents new runs and waits for a running job to finish, or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler_stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler_stop_timeout")
	}
}

// RunPurge deletes reconciled archive rows older than the retention window.
func (s *Scheduler) RunPurge(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.JobTimeout)
	defer cancel()
	ctx, logger := logctx.Enrich(ctx, s.log, observability.F("job", "purge_reconciled"))

	cutoff := s.now().Add(-s.opts.PurgeRetention)
	n, err := s.jobs.PurgeReconciledBefore(ctx, cutoff)
	if err != nil {
		logger.Error("scheduled_job_failed", observability.F("error", err))
		return 0, err
	}
	logger.Info("scheduled_job_done",
		observability.F("deleted", n),
		observability.F("cutoff", cutoff.UTC().Format(time.RFC3339)),
	)
	return n, nil
}

// RunIndexCleanup prunes dangling record index members.
func (s *Scheduler) RunIndexCleanup(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.JobTimeout)
	defer cancel()
	ctx, logger := logctx.Enrich(ctx, s.log, observability.F("job", "cleanup_record_indexes"))

	n, err := s.jobs.CleanupEmptyIndexes(ctx)
	if err != nil {
		logger.Error("scheduled_job_failed", observability.F("error", err), observability.F("dropped", n))
		return n, err
	}
	logger.Info("scheduled_job_done", observability.F("dropped", n))
	return n, nil
}

// cronLogger adapts the logger port to cron.Logger.
type cronLogger struct {
	log observability.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron_"+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron_"+msg, append(kvFields(keysAndValues), observability.F("error", err))...)
}

func kvFields(kv []any) []observability.Field {
	fields := make([]observability.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, observability.F(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
