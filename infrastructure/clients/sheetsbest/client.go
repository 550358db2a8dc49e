package sheetsbest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"content-pipeline/domain/model"
	"content-pipeline/infrastructure/logger"
	"content-pipeline/infrastructure/utils"

	"github.com/google/go-querystring/query"
)

// StoreError is a non-2xx answer from the store. It is never retried.
type StoreError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Endpoints holds one collection URL per record type.
type Endpoints struct {
	Sources string
	Posts   string
	Queue   string
	Logs    string
	Revenue string
}

const maxPages = 1000

type listQuery struct {
	Limit  int `url:"_limit,omitempty"`
	Offset int `url:"_offset,omitempty"`
}

// Client is a record store backed by a sheets.best style REST API:
// GET lists a collection, POST appends a row, PUT <base>/<id> replaces one.
type Client struct {
	httpClient *http.Client
	apiKey     string
	endpoints  Endpoints
	policy     utils.RetryPolicy
	pageSize   int
}

func NewClient(httpClient *http.Client, apiKey string, endpoints Endpoints, policy utils.RetryPolicy, pageSize int) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		endpoints:  endpoints,
		policy:     policy,
		pageSize:   pageSize,
	}
}

func (c *Client) ListSources(ctx context.Context) ([]model.Source, error) {
	return list[model.Source](ctx, c, c.endpoints.Sources)
}

func (c *Client) ListPosts(ctx context.Context) ([]model.Post, error) {
	return list[model.Post](ctx, c, c.endpoints.Posts)
}

func (c *Client) CreatePost(ctx context.Context, post model.Post) (model.Post, error) {
	body, err := c.do(ctx, http.MethodPost, c.endpoints.Posts, post)
	if err != nil {
		return post, err
	}
	if post.ID == "" {
		post.ID = model.FlexString(extractID(body))
	}
	return post, nil
}

func (c *Client) ListQueue(ctx context.Context) ([]model.QueueEntry, error) {
	return list[model.QueueEntry](ctx, c, c.endpoints.Queue)
}

func (c *Client) CreateQueueEntry(ctx context.Context, entry model.QueueEntry) (model.QueueEntry, error) {
	body, err := c.do(ctx, http.MethodPost, c.endpoints.Queue, entry)
	if err != nil {
		return entry, err
	}
	if entry.ID == "" {
		entry.ID = model.FlexString(extractID(body))
	}
	return entry, nil
}

func (c *Client) UpdateQueueEntry(ctx context.Context, entry model.QueueEntry) error {
	if entry.ID == "" {
		_, err := c.do(ctx, http.MethodPost, c.endpoints.Queue, entry)
		return err
	}
	target := strings.TrimRight(c.endpoints.Queue, "/") + "/" + url.PathEscape(entry.ID.String())
	_, err := c.do(ctx, http.MethodPut, target, entry)
	return err
}

func (c *Client) ListLogs(ctx context.Context) ([]model.LogEntry, error) {
	return list[model.LogEntry](ctx, c, c.endpoints.Logs)
}

func (c *Client) AppendLog(ctx context.Context, entry model.LogEntry) error {
	_, err := c.do(ctx, http.MethodPost, c.endpoints.Logs, entry)
	return err
}

func (c *Client) AppendRevenue(ctx context.Context, entry model.RevenueEntry) error {
	_, err := c.do(ctx, http.MethodPost, c.endpoints.Revenue, entry)
	return err
}

// list reads a whole collection. A body that is not a JSON array counts as
// an empty collection.
func list[T any](ctx context.Context, c *Client, base string) ([]T, error) {
	if c.pageSize <= 0 {
		body, err := c.do(ctx, http.MethodGet, base, nil)
		if err != nil {
			return nil, err
		}
		return decodeRows[T](base, body), nil
	}

	var (
		out  []T
		prev []byte
	)
	for page, offset := 0, 0; page < maxPages; page, offset = page+1, offset+c.pageSize {
		target, err := withQuery(base, listQuery{Limit: c.pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		body, err := c.do(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		// A store that ignores _offset serves the same page again.
		if prev != nil && bytes.Equal(bytes.TrimSpace(body), prev) {
			return out, nil
		}
		prev = bytes.TrimSpace(body)
		rows := decodeRows[T](base, body)
		out = append(out, rows...)
		// A store that ignores _limit hands back everything in one go.
		if len(rows) != c.pageSize {
			return out, nil
		}
	}
	return out, nil
}

func withQuery(base string, q listQuery) (string, error) {
	values, err := query.Values(q)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	existing := u.Query()
	for k, vs := range values {
		for _, v := range vs {
			existing.Set(k, v)
		}
	}
	u.RawQuery = existing.Encode()
	return u.String(), nil
}

func decodeRows[T any](base string, body []byte) []T {
	var rows []T
	if err := json.Unmarshal(body, &rows); err != nil {
		logger.GetLogger().WithField("url", base).WithField("error", err.Error()).Warn("Store returned a non-array body, treating as empty")
		return []T{}
	}
	return rows
}

// extractID finds id, ID or _id on the first returned row, if any.
func extractID(body []byte) string {
	var rows []map[string]interface{}
	if err := json.Unmarshal(body, &rows); err != nil {
		var row map[string]interface{}
		if json.Unmarshal(body, &row) != nil {
			return ""
		}
		rows = []map[string]interface{}{row}
	}
	if len(rows) == 0 {
		return ""
	}
	for _, k := range []string{"id", "ID", "_id"} {
		switch v := rows[0][k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

// do sends one request under the retry policy and returns the raw body.
func (c *Client) do(ctx context.Context, method, target string, payload interface{}) ([]byte, error) {
	var encoded []byte
	if payload != nil {
		var err error
		if encoded, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", target, err)
		}
	}

	var body []byte
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		var reader io.Reader
		if encoded != nil {
			reader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return utils.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-KEY", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return utils.Permanent(&StoreError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: string(data)})
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
