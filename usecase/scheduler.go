package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"content-pipeline/domain/dto"
	"content-pipeline/domain/repository"
	"content-pipeline/infrastructure/logger"
	"content-pipeline/infrastructure/utils"
)

var (
	ErrJobRunning = errors.New("job is already running")
	ErrUnknownJob = errors.New("unknown job")
)

type Runner interface {
	Run(ctx context.Context) (dto.JobReport, error)
}

// ScheduledJob fires once an hour at Minute past the hour (UTC).
type ScheduledJob struct {
	Name   string
	Minute int
	Runner Runner
}

type Scheduler struct {
	jobs     map[string]ScheduledJob
	lock     repository.IRunLock
	now      func() time.Time
	wait     func(ctx context.Context, d time.Duration) error
	mu       sync.RWMutex
	reporter func(dto.JobReport)
}

func NewScheduler(lock repository.IRunLock, now func() time.Time, jobs ...ScheduledJob) *Scheduler {
	if now == nil {
		now = utils.GetCurrentTime
	}
	m := make(map[string]ScheduledJob, len(jobs))
	for _, j := range jobs {
		m[j.Name] = j
	}
	return &Scheduler{jobs: m, lock: lock, now: now, wait: sleepContext}
}

// WithReporter registers a callback that receives every finished run.
func (s *Scheduler) WithReporter(fn func(dto.JobReport)) *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reporter = fn
	return s
}

// Trigger runs a job now. The run is detached from ctx cancellation so an
// impatient caller cannot abort it halfway.
func (s *Scheduler) Trigger(ctx context.Context, name string) (dto.JobReport, error) {
	job, ok := s.jobs[name]
	if !ok {
		return dto.JobReport{Job: name}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(context.WithoutCancel(ctx), job, dto.TriggerManual)
}

// Start runs every job on its hourly slot until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job ScheduledJob) {
			defer wg.Done()
			s.loop(ctx, job)
		}(job)
	}
	wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context, job ScheduledJob) {
	lg := logger.GetLogger().WithField("job", job.Name)
	for {
		next := NextRun(s.now(), job.Minute)
		lg.WithField("next_run", next.Format(time.RFC3339)).Debug("Job scheduled")
		if err := s.wait(ctx, next.Sub(s.now())); err != nil {
			return
		}
		if _, err := s.run(ctx, job, dto.TriggerSchedule); err != nil {
			if errors.Is(err, ErrJobRunning) {
				lg.Warn("Previous run still in progress, skipping this slot")
				continue
			}
			lg.WithField("error", err.Error()).Error("Scheduled run failed")
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job ScheduledJob, trigger string) (dto.JobReport, error) {
	report := dto.JobReport{Job: job.Name, Trigger: trigger}
	release, ok, err := s.lock.TryAcquire(ctx, job.Name)
	if err != nil {
		return report, fmt.Errorf("acquire run lock for %s: %w", job.Name, err)
	}
	if !ok {
		return report, ErrJobRunning
	}
	defer release()

	runID := utils.NewRunID()
	logger.GetLogger().WithField("job", job.Name).WithField("run_id", runID).WithField("trigger", trigger).Info("Job fired")
	report, err = job.Runner.Run(ctx)
	report.RunID = runID
	report.Trigger = trigger

	s.mu.RLock()
	reporter := s.reporter
	s.mu.RUnlock()
	if reporter != nil {
		reporter(report)
	}
	return report, err
}

// NextRun is the first instant strictly after now at minute past an hour.
func NextRun(now time.Time, minute int) time.Time {
	next := now.Truncate(time.Hour).Add(time.Duration(minute) * time.Minute)
	if !next.After(now) {
		next = next.Add(time.Hour)
	}
	return next
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
