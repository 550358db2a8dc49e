package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"content-pipeline/domain/model"
	"content-pipeline/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func queued(id, postID string, scheduleAt time.Time) model.QueueEntry {
	return model.QueueEntry{
		ID:           model.FlexString(id),
		PostID:       model.FlexString(postID),
		Platform:     "twitter",
		Status:       model.QueueStatusPending,
		ScheduleAt:   model.NewTimestamp(scheduleAt),
		AffiliateURL: "https://x/" + postID,
	}
}

func TestFilterDue(t *testing.T) {
	entries := []model.QueueEntry{
		queued("1", "a", fixedNow),
		queued("2", "b", fixedNow.Add(time.Second)),
		{ID: "3", Status: "Scheduled", ScheduleAt: model.NewTimestamp(fixedNow.Add(-time.Hour))},
		{ID: "4", Status: "complete", ScheduleAt: model.NewTimestamp(fixedNow.Add(-time.Hour))},
	}

	due := usecase.FilterDue(entries, fixedNow)

	require.Len(t, due, 2)
	assert.Equal(t, model.FlexString("1"), due[0].ID)
	assert.Equal(t, model.FlexString("3"), due[1].ID)
}

func TestPublish_PartialFailure(t *testing.T) {
	store := new(MockRecordStore)
	publisher := new(MockPublisher)
	past := fixedNow.Add(-time.Minute)
	entries := []model.QueueEntry{queued("1", "p1", past), queued("2", "p2", past), queued("3", "p3", past), queued("4", "p4", fixedNow.Add(time.Hour))}

	store.On("ListQueue", mock.Anything).Return(entries, nil)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
	store.On("UpdateQueueEntry", mock.Anything, mock.MatchedBy(func(e model.QueueEntry) bool { return e.ID == "2" })).Return(errors.New("HTTP 500"))
	store.On("UpdateQueueEntry", mock.Anything, mock.Anything).Return(nil)
	store.On("AppendLog", mock.Anything, mock.Anything).Return(nil)
	store.On("AppendRevenue", mock.Anything, mock.Anything).Return(nil)

	uc := usecase.NewPublishUsecase(store, publisher, usecase.NewAuditTrail(store, clock), clock)
	report, err := uc.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, report.Due)
	assert.Equal(t, 2, report.Published)
	assert.Equal(t, 1, report.Failed)

	updates := store.callsTo("UpdateQueueEntry")
	require.Len(t, updates, 3)
	for _, c := range updates {
		e := c.Arguments.Get(1).(model.QueueEntry)
		assert.Equal(t, model.QueueStatusComplete, e.Status)
		assert.Equal(t, fixedNow, e.LastAttempt.Time)
	}

	logs := store.logs()
	require.Len(t, logs, 4)
	assert.Equal(t, model.LogEntry{Timestamp: model.NewTimestamp(fixedNow), Job: "publish", Status: model.LogStatusOK, Details: "Published post_id=p1 to twitter"}, logs[0])
	assert.Equal(t, "publish", logs[1].Job)
	assert.Equal(t, model.LogStatusError, logs[1].Status)
	assert.Contains(t, logs[1].Details, "Failed post_id=p2: ")
	assert.Contains(t, logs[1].Details, "HTTP 500")
	assert.Equal(t, "Published post_id=p3 to twitter", logs[2].Details)
	assert.Equal(t, model.LogEntry{Timestamp: model.NewTimestamp(fixedNow), Job: "cron-check", Status: model.LogStatusOK, Details: "Found 3 scheduled posts"}, logs[3])

	revenue := store.callsTo("AppendRevenue")
	require.Len(t, revenue, 2)
	assert.Equal(t, model.RevenueEntry{
		Timestamp:    model.NewTimestamp(fixedNow),
		PostID:       "p1",
		Platform:     "twitter",
		AffiliateURL: "https://x/p1",
	}, revenue[0].Arguments.Get(1).(model.RevenueEntry))
}

func TestPublish_PublisherFailureLeavesEntryUntouched(t *testing.T) {
	store := new(MockRecordStore)
	publisher := new(MockPublisher)
	store.On("ListQueue", mock.Anything).Return([]model.QueueEntry{{Status: "pending", ScheduleAt: model.NewTimestamp(fixedNow)}}, nil)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))
	store.On("AppendLog", mock.Anything, mock.Anything).Return(nil)

	report, err := usecase.NewPublishUsecase(store, publisher, usecase.NewAuditTrail(store, clock), clock).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	store.AssertNotCalled(t, "UpdateQueueEntry", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "AppendRevenue", mock.Anything, mock.Anything)
	logs := store.logs()
	require.Len(t, logs, 2)
	assert.Equal(t, "Failed post_id=(unknown): publish: broker unavailable", logs[0].Details)
}

func TestPublish_QueueListFailure(t *testing.T) {
	store := new(MockRecordStore)
	store.On("ListQueue", mock.Anything).Return(nil, errors.New("timeout"))
	store.On("AppendLog", mock.Anything, mock.Anything).Return(nil)

	_, err := usecase.NewPublishUsecase(store, usecase.NoopPublisher{}, usecase.NewAuditTrail(store, clock), clock).Run(context.Background())

	require.Error(t, err)
	logs := store.logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "cron-check", logs[0].Job)
	assert.Equal(t, model.LogStatusError, logs[0].Status)
}

func TestAuditTrail_FailuresAreCountedNotReturned(t *testing.T) {
	store := new(MockRecordStore)
	store.On("AppendLog", mock.Anything, mock.Anything).Return(errors.New("store down"))
	store.On("AppendRevenue", mock.Anything, mock.Anything).Return(nil)
	audit := usecase.NewAuditTrail(store, clock)

	audit.Log(context.Background(), "publish", model.LogStatusOK, "x")
	audit.Revenue(context.Background(), model.RevenueEntry{PostID: "1"})

	assert.Equal(t, int64(1), audit.Failures())
	rev := store.callsTo("AppendRevenue")[0].Arguments.Get(1).(model.RevenueEntry)
	assert.Equal(t, fixedNow, rev.Timestamp.Time)
}
