package sheetsbest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"content-pipeline/domain/model"
	"content-pipeline/infrastructure/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	APIKey string
	Body   map[string]interface{}
}

func newTestClient(t *testing.T, pageSize int, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, APIKey: r.Header.Get("X-API-KEY")}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &rec.Body)
		}
		calls = append(calls, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	policy := utils.DefaultRetryPolicy()
	policy.Sleep = func(context.Context, time.Duration) error { return nil }
	endpoints := Endpoints{
		Sources: srv.URL + "/sources",
		Posts:   srv.URL + "/posts",
		Queue:   srv.URL + "/queue",
		Logs:    srv.URL + "/logs",
		Revenue: srv.URL + "/revenue",
	}
	return NewClient(srv.Client(), "key-123", endpoints, policy, pageSize), &calls
}

func TestClient_ListSources(t *testing.T) {
	c, calls := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"label":"blog","type":"feed","url_or_key":"https://a.example/rss","active":"TRUE"}]`))
	})

	sources, err := c.ListSources(context.Background())

	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.True(t, sources[0].Processable())
	require.Len(t, *calls, 1)
	assert.Equal(t, http.MethodGet, (*calls)[0].Method)
	assert.Equal(t, "/sources", (*calls)[0].Path)
	assert.Equal(t, "key-123", (*calls)[0].APIKey)
}

func TestClient_NonJSONListIsEmpty(t *testing.T) {
	c, _ := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	})

	posts, err := c.ListPosts(context.Background())

	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestClient_RejectionIsTypedAndNotRetried(t *testing.T) {
	c, calls := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	})

	_, err := c.ListQueue(context.Background())

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, http.StatusForbidden, storeErr.StatusCode)
	assert.Contains(t, storeErr.Body, "bad key")
	assert.Len(t, *calls, 1)
}

func TestClient_TransportFailureIsRetried(t *testing.T) {
	var attempts int32
	c, _ := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	logs, err := c.ListLogs(context.Background())

	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestClient_UpdateQueueEntry(t *testing.T) {
	c, calls := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, c.UpdateQueueEntry(context.Background(), model.QueueEntry{
		ID: "7", Status: model.QueueStatusComplete, LastAttempt: model.NewTimestamp(now),
	}))
	require.NoError(t, c.UpdateQueueEntry(context.Background(), model.QueueEntry{Status: model.QueueStatusComplete}))

	require.Len(t, *calls, 2)
	assert.Equal(t, http.MethodPut, (*calls)[0].Method)
	assert.Equal(t, "/queue/7", (*calls)[0].Path)
	assert.Equal(t, "complete", (*calls)[0].Body["status"])
	assert.Equal(t, "2024-03-01T10:00:00.000Z", (*calls)[0].Body["last_attempt"])
	assert.Equal(t, http.MethodPost, (*calls)[1].Method)
	assert.Equal(t, "/queue", (*calls)[1].Path)
}

func TestClient_CreatePostReadsAssignedID(t *testing.T) {
	c, calls := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":12,"title":"Hello"}]`))
	})

	post, err := c.CreatePost(context.Background(), model.Post{Title: "Hello", AffiliateURL: "https://x/y"})

	require.NoError(t, err)
	assert.Equal(t, model.FlexString("12"), post.ID)
	require.Len(t, *calls, 1)
	assert.Equal(t, "https://x/y", (*calls)[0].Body["affiliate_url"])
}

func TestClient_CreatePostKeepsRawTextResponse(t *testing.T) {
	c, _ := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("created"))
	})

	post, err := c.CreatePost(context.Background(), model.Post{Title: "Hello"})

	require.NoError(t, err)
	assert.Empty(t, post.ID)
}

func TestClient_PagedList(t *testing.T) {
	c, calls := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("_offset") {
		case "":
			_, _ = w.Write([]byte(`[{"title":"a"},{"title":"b"}]`))
		default:
			_, _ = w.Write([]byte(`[{"title":"c"}]`))
		}
	})

	posts, err := c.ListPosts(context.Background())

	require.NoError(t, err)
	assert.Len(t, posts, 3)
	require.Len(t, *calls, 2)
	assert.Equal(t, "_limit=2", (*calls)[0].Query)
	assert.Equal(t, "_limit=2&_offset=2", (*calls)[1].Query)
}

func TestClient_PagedListStopsOnRepeatedPage(t *testing.T) {
	c, calls := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"1","status":"pending"},{"id":"2","status":"pending"}]`))
	})

	entries, err := c.ListQueue(context.Background())

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0].ID.String())
	assert.Equal(t, "2", entries[1].ID.String())
	assert.Len(t, *calls, 2)
}

func TestClient_AppendAudit(t *testing.T) {
	c, calls := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	ts := model.NewTimestamp(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	require.NoError(t, c.AppendLog(context.Background(), model.LogEntry{Timestamp: ts, Job: "cron-check", Status: model.LogStatusOK, Details: "Found 0 scheduled posts"}))
	require.NoError(t, c.AppendRevenue(context.Background(), model.RevenueEntry{Timestamp: ts, PostID: "3", Platform: "twitter"}))

	require.Len(t, *calls, 2)
	assert.Equal(t, "/logs", (*calls)[0].Path)
	assert.Equal(t, "cron-check", (*calls)[0].Body["job"])
	assert.Equal(t, "/revenue", (*calls)[1].Path)
	assert.Equal(t, float64(0), (*calls)[1].Body["clicks"])
}
