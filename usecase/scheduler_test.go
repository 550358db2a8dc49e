package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"content-pipeline/domain/dto"
	"content-pipeline/infrastructure/cache"
	"content-pipeline/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	calls   int
	mu      sync.Mutex
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 10), release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context) (dto.JobReport, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	r.started <- struct{}{}
	<-r.release
	return dto.JobReport{Job: "sources-poll", Created: 1}, nil
}

type funcRunner func(ctx context.Context) (dto.JobReport, error)

func (f funcRunner) Run(ctx context.Context) (dto.JobReport, error) { return f(ctx) }

func TestNextRun(t *testing.T) {
	at := func(h, m, s int) time.Time { return time.Date(2024, 3, 1, h, m, s, 0, time.UTC) }

	assert.Equal(t, at(10, 5, 0), usecase.NextRun(at(10, 0, 0), 5))
	assert.Equal(t, at(11, 5, 0), usecase.NextRun(at(10, 5, 0), 5))
	assert.Equal(t, at(11, 5, 0), usecase.NextRun(at(10, 30, 12), 5))
	assert.Equal(t, at(11, 0, 0), usecase.NextRun(at(10, 0, 0), 0))
	assert.Equal(t, at(11, 0, 0), usecase.NextRun(at(10, 59, 59), 0))
}

func TestScheduler_TriggerRejectsOverlap(t *testing.T) {
	runner := newBlockingRunner()
	s := usecase.NewScheduler(cache.NewLocalRunLock(), clock, usecase.ScheduledJob{Name: "sources-poll", Minute: 5, Runner: runner})

	done := make(chan error, 1)
	go func() {
		_, err := s.Trigger(context.Background(), "sources-poll")
		done <- err
	}()
	<-runner.started

	_, err := s.Trigger(context.Background(), "sources-poll")
	assert.ErrorIs(t, err, usecase.ErrJobRunning)

	close(runner.release)
	require.NoError(t, <-done)

	report, err := s.Trigger(context.Background(), "sources-poll")
	require.NoError(t, err)
	assert.Equal(t, dto.TriggerManual, report.Trigger)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, runner.calls)
}

func TestScheduler_TriggerUnknownJob(t *testing.T) {
	s := usecase.NewScheduler(cache.NewLocalRunLock(), clock)

	_, err := s.Trigger(context.Background(), "nope")

	assert.ErrorIs(t, err, usecase.ErrUnknownJob)
}

func TestScheduler_ReportsFailedRuns(t *testing.T) {
	failing := funcRunner(func(ctx context.Context) (dto.JobReport, error) {
		return dto.JobReport{Job: "cron-check", Error: "list queue: timeout"}, errors.New("list queue: timeout")
	})
	var got []dto.JobReport
	s := usecase.NewScheduler(cache.NewLocalRunLock(), clock, usecase.ScheduledJob{Name: "cron-check", Runner: failing}).
		WithReporter(func(r dto.JobReport) { got = append(got, r) })

	_, err := s.Trigger(context.Background(), "cron-check")

	require.Error(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "list queue: timeout", got[0].Error)
}

func TestScheduler_TriggerSurvivesCallerCancel(t *testing.T) {
	var sawCancel bool
	runner := funcRunner(func(ctx context.Context) (dto.JobReport, error) {
		sawCancel = ctx.Err() != nil
		return dto.JobReport{}, nil
	})
	s := usecase.NewScheduler(cache.NewLocalRunLock(), clock, usecase.ScheduledJob{Name: "cron-check", Runner: runner})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Trigger(ctx, "cron-check")

	require.NoError(t, err)
	assert.False(t, sawCancel)
}

func TestScheduler_StartRunsJobsAndStops(t *testing.T) {
	fired := make(chan string, 4)
	mk := func(name string) usecase.Runner {
		return funcRunner(func(ctx context.Context) (dto.JobReport, error) {
			select {
			case fired <- name:
			default:
			}
			return dto.JobReport{Job: name}, nil
		})
	}
	s := usecase.NewScheduler(cache.NewLocalRunLock(), clock,
		usecase.ScheduledJob{Name: "sources-poll", Minute: 5, Runner: mk("sources-poll")},
		usecase.ScheduledJob{Name: "cron-check", Minute: 0, Runner: mk("cron-check")},
	)
	usecase.SetWait(s, func(ctx context.Context, d time.Duration) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
			return nil
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()

	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case name := <-fired:
			seen[name] = true
		case <-time.After(2 * time.Second):
			t.Fatal("scheduled jobs did not fire")
		}
	}
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}
