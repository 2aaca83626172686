package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"anoa.com/yamdb/internal/logging"
	"anoa.com/yamdb/internal/metrics"
)

// Job is a unit of background work run on a cron schedule.
type Job interface {
	// Name identifies the job in logs and metrics.
	Name() string

	// Schedule returns a cron expression. An empty schedule registers the
	// job for on-demand runs only.
	Schedule() string

	Execute(ctx context.Context) error
}

type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	timeout time.Duration
}

func NewScheduler(timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		timeout: timeout,
	}
}

// Register adds a job and schedules it when it has a schedule.
func (s *Scheduler) Register(job Job) error {
	schedule := job.Schedule()
	if schedule == "" {
		s.jobs = append(s.jobs, job)
		logging.Info().Str("job", job.Name()).Msg("registered on-demand job")
		return nil
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		_ = s.run(context.Background(), job)
	}); err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name(), err)
	}
	s.jobs = append(s.jobs, job)

	logging.Info().Str("job", job.Name()).Str("schedule", schedule).Msg("scheduled job")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logging.Info().Int("jobs", len(s.jobs)).Msg("job scheduler started")
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		logging.Warn().Msg("job scheduler stop timed out")
	}
	logging.Info().Msg("job scheduler stopped")
}

// RunByName runs a registered job immediately.
func (s *Scheduler) RunByName(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name() == name {
			return s.run(ctx, job)
		}
	}
	return fmt.Errorf("job %q not registered", name)
}

func (s *Scheduler) Names() []string {
	names := make([]string, len(s.jobs))
	for i, job := range s.jobs {
		names[i] = job.Name()
	}
	return names
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := job.Execute(ctx)
	elapsed := time.Since(start)
	metrics.RecordJobRun(job.Name(), elapsed, err)

	if err != nil {
		logging.Error().Err(err).Str("job", job.Name()).Dur("elapsed", elapsed).Msg("job failed")
		return err
	}
	logging.Info().Str("job", job.Name()).Dur("elapsed", elapsed).Msg("job completed")
	return nil
}
