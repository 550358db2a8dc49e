package usecase

import (
	"context"
	"fmt"
	"time"

	"content-pipeline/domain/dto"
	"content-pipeline/domain/model"
	"content-pipeline/domain/repository"
	"content-pipeline/infrastructure/logger"
	"content-pipeline/infrastructure/utils"
)

const (
	JobPublish      = "cron-check"
	jobPublishEntry = "publish"

	unknownField = "(unknown)"
)

// FilterDue keeps the entries that are due at now, in store order.
func FilterDue(entries []model.QueueEntry, now time.Time) []model.QueueEntry {
	due := make([]model.QueueEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDue(now) {
			due = append(due, e)
		}
	}
	return due
}

// DuePoller reads the queue and selects what should be published now.
type DuePoller struct {
	queue repository.IQueueStore
}

func NewDuePoller(queue repository.IQueueStore) *DuePoller {
	return &DuePoller{queue: queue}
}

func (p *DuePoller) Due(ctx context.Context, now time.Time) ([]model.QueueEntry, error) {
	entries, err := p.queue.ListQueue(ctx)
	if err != nil {
		return nil, err
	}
	return FilterDue(entries, now), nil
}

type IPublishUsecase interface {
	Run(ctx context.Context) (dto.JobReport, error)
}

type publishUsecase struct {
	poller    *DuePoller
	queue     repository.IQueueStore
	publisher repository.IPublisher
	audit     *AuditTrail
	now       func() time.Time
}

func NewPublishUsecase(queue repository.IQueueStore, publisher repository.IPublisher, audit *AuditTrail, now func() time.Time) IPublishUsecase {
	if now == nil {
		now = utils.GetCurrentTime
	}
	return &publishUsecase{
		poller:    NewDuePoller(queue),
		queue:     queue,
		publisher: publisher,
		audit:     audit,
		now:       now,
	}
}

// Run publishes every due entry and marks it complete. Each entry succeeds or
// fails on its own; a failed entry keeps its status and is picked up again
// by a later run.
func (u *publishUsecase) Run(ctx context.Context) (dto.JobReport, error) {
	lg := logger.GetLogger().WithField("job", JobPublish)
	report := dto.JobReport{Job: JobPublish, StartedAt: u.now()}

	due, err := u.poller.Due(ctx, report.StartedAt)
	if err != nil {
		err = fmt.Errorf("list queue: %w", err)
		report.FinishedAt = u.now()
		report.Error = err.Error()
		lg.WithField("error", err.Error()).Error("Publish run failed")
		u.audit.Log(ctx, JobPublish, model.LogStatusError, err.Error())
		return report, err
	}
	report.Due = len(due)
	lg.WithField("due", len(due)).Info("Queue due count")

	for _, entry := range due {
		if err := u.publishOne(ctx, entry); err != nil {
			report.Failed++
			lg.WithField("post_id", entry.PostID).WithField("error", err.Error()).Warn("Publish flow failed")
			u.audit.Log(ctx, jobPublishEntry, model.LogStatusError,
				fmt.Sprintf("Failed post_id=%s: %s", orUnknown(entry.PostID.String()), err.Error()))
			continue
		}
		report.Published++
		u.audit.Log(ctx, jobPublishEntry, model.LogStatusOK,
			fmt.Sprintf("Published post_id=%s to %s", orUnknown(entry.PostID.String()), orUnknown(entry.Platform)))
		u.audit.Revenue(ctx, model.RevenueEntry{
			PostID:       entry.PostID,
			Platform:     entry.Platform,
			AffiliateURL: entry.AffiliateURL,
		})
	}

	report.FinishedAt = u.now()
	u.audit.Log(ctx, JobPublish, model.LogStatusOK, fmt.Sprintf("Found %d scheduled posts", len(due)))
	return report, nil
}

func (u *publishUsecase) publishOne(ctx context.Context, entry model.QueueEntry) error {
	if err := u.publisher.Publish(ctx, entry); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	entry.Status = model.QueueStatusComplete
	entry.LastAttempt = model.NewTimestamp(u.now())
	if err := u.queue.UpdateQueueEntry(ctx, entry); err != nil {
		return fmt.Errorf("update queue entry: %w", err)
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return unknownField
	}
	return s
}

// NoopPublisher is the placeholder publisher: it accepts every entry.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, entry model.QueueEntry) error {
	logger.GetLogger().
		WithField("post_id", entry.PostID).
		WithField("platform", entry.Platform).
		Debug("Publish placeholder accepted entry")
	return nil
}
