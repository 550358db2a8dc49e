package usecase_test

import (
	"context"

	"content-pipeline/domain/model"

	"github.com/stretchr/testify/mock"
)

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) ListSources(ctx context.Context) ([]model.Source, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Source), args.Error(1)
}

func (m *MockRecordStore) ListPosts(ctx context.Context) ([]model.Post, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Post), args.Error(1)
}

func (m *MockRecordStore) CreatePost(ctx context.Context, post model.Post) (model.Post, error) {
	args := m.Called(ctx, post)
	if fn, ok := args.Get(0).(func(model.Post) model.Post); ok {
		return fn(post), args.Error(1)
	}
	return args.Get(0).(model.Post), args.Error(1)
}

func (m *MockRecordStore) ListQueue(ctx context.Context) ([]model.QueueEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.QueueEntry), args.Error(1)
}

func (m *MockRecordStore) CreateQueueEntry(ctx context.Context, entry model.QueueEntry) (model.QueueEntry, error) {
	args := m.Called(ctx, entry)
	if fn, ok := args.Get(0).(func(model.QueueEntry) model.QueueEntry); ok {
		return fn(entry), args.Error(1)
	}
	return args.Get(0).(model.QueueEntry), args.Error(1)
}

func (m *MockRecordStore) UpdateQueueEntry(ctx context.Context, entry model.QueueEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockRecordStore) ListLogs(ctx context.Context) ([]model.LogEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.LogEntry), args.Error(1)
}

func (m *MockRecordStore) AppendLog(ctx context.Context, entry model.LogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockRecordStore) AppendRevenue(ctx context.Context, entry model.RevenueEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// logs returns every LogEntry the store was asked to append, in order.
func (m *MockRecordStore) logs() []model.LogEntry {
	var out []model.LogEntry
	for _, c := range m.Calls {
		if c.Method == "AppendLog" {
			out = append(out, c.Arguments.Get(1).(model.LogEntry))
		}
	}
	return out
}

func (m *MockRecordStore) callsTo(method string) []mock.Call {
	var out []mock.Call
	for _, c := range m.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, locator string) (string, error) {
	args := m.Called(ctx, locator)
	return args.String(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, entry model.QueueEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
