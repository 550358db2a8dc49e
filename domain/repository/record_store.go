package repository

import (
	"context"

	"content-pipeline/domain/model"
)

type ISourceStore interface {
	ListSources(ctx context.Context) ([]model.Source, error)
}

type IPostStore interface {
	ListPosts(ctx context.Context) ([]model.Post, error)
	// CreatePost returns the post as stored; ID is set when the store assigns one.
	CreatePost(ctx context.Context, post model.Post) (model.Post, error)
}

type IQueueStore interface {
	ListQueue(ctx context.Context) ([]model.QueueEntry, error)
	CreateQueueEntry(ctx context.Context, entry model.QueueEntry) (model.QueueEntry, error)
	// UpdateQueueEntry replaces the entry by ID, or appends it when ID is empty.
	UpdateQueueEntry(ctx context.Context, entry model.QueueEntry) error
}

type IAuditStore interface {
	ListLogs(ctx context.Context) ([]model.LogEntry, error)
	AppendLog(ctx context.Context, entry model.LogEntry) error
	AppendRevenue(ctx context.Context, entry model.RevenueEntry) error
}

// IRecordStore is the full set of collections the pipeline reads and writes.
type IRecordStore interface {
	ISourceStore
	IPostStore
	IQueueStore
	IAuditStore
}
