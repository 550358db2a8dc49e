package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"content-pipeline/domain/model"
	"content-pipeline/domain/repository"
	"content-pipeline/infrastructure/logger"
	"content-pipeline/infrastructure/utils"
)

// AuditTrail writes log and revenue records on a best-effort basis. A failed
// write is reported to the process logger and counted, never returned.
type AuditTrail struct {
	store    repository.IAuditStore
	now      func() time.Time
	failures atomic.Int64
}

func NewAuditTrail(store repository.IAuditStore, now func() time.Time) *AuditTrail {
	if now == nil {
		now = utils.GetCurrentTime
	}
	return &AuditTrail{store: store, now: now}
}

func (a *AuditTrail) Log(ctx context.Context, job string, status model.LogStatus, details string) {
	entry := model.LogEntry{
		Timestamp: model.NewTimestamp(a.now()),
		Job:       job,
		Status:    status,
		Details:   details,
	}
	if err := a.store.AppendLog(ctx, entry); err != nil {
		a.failures.Add(1)
		logger.GetLogger().
			WithField("job", job).
			WithField("details", details).
			WithField("error", err.Error()).
			Error("writeLog failed")
	}
}

func (a *AuditTrail) Revenue(ctx context.Context, entry model.RevenueEntry) {
	entry.Timestamp = model.NewTimestamp(a.now())
	if err := a.store.AppendRevenue(ctx, entry); err != nil {
		a.failures.Add(1)
		logger.GetLogger().
			WithField("post_id", entry.PostID).
			WithField("error", err.Error()).
			Error("writeRevenue failed")
	}
}

// Failures is the number of audit writes dropped since start.
func (a *AuditTrail) Failures() int64 {
	return a.failures.Load()
}
