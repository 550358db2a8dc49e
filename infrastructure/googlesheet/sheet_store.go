package googlesheet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"

	"content-pipeline/domain/model"
	"content-pipeline/infrastructure/logger"
	"content-pipeline/infrastructure/utils"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Tabs names the worksheet that holds each record kind.
type Tabs struct {
	Sources string
	Posts   string
	Queue   string
	Logs    string
	Revenue string
}

// Column order used when a tab has no header row yet.
var defaultHeaders = map[string][]string{
	"sources": {"label", "type", "url_or_key", "active", "platform"},
	"posts":   {"id", "created_at", "source", "title", "body", "media_url", "status", "platform", "affiliate_url"},
	"queue":   {"id", "schedule_at", "platform", "post_id", "status", "last_attempt", "affiliate_url"},
	"logs":    {"timestamp", "job", "status", "details"},
	"revenue": {"timestamp", "post_id", "platform", "affiliate_url", "clicks", "revenue"},
}

var updatedRowPattern = regexp.MustCompile(`!\$?[A-Za-z]+\$?(\d+)`)

// SheetStore implements repository.IRecordStore on a Google spreadsheet.
// The first row of every tab is the header; a record's ID is its sheet row
// number.
type SheetStore struct {
	svc           *sheets.Service
	spreadsheetID string
	tabs          Tabs
	policy        utils.RetryPolicy
}

// NewService builds a Sheets client from a service account key file.
func NewService(ctx context.Context, credentialsFile string) (*sheets.Service, error) {
	key, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(key, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
}

func NewSheetStore(svc *sheets.Service, spreadsheetID string, tabs Tabs, policy utils.RetryPolicy) *SheetStore {
	return &SheetStore{svc: svc, spreadsheetID: spreadsheetID, tabs: tabs, policy: policy}
}

func (s *SheetStore) ListSources(ctx context.Context) ([]model.Source, error) {
	return readTab[model.Source](ctx, s, s.tabs.Sources)
}

func (s *SheetStore) ListPosts(ctx context.Context) ([]model.Post, error) {
	return readTab[model.Post](ctx, s, s.tabs.Posts)
}

func (s *SheetStore) CreatePost(ctx context.Context, post model.Post) (model.Post, error) {
	row, err := s.appendRecord(ctx, s.tabs.Posts, "posts", post)
	if err != nil {
		return post, err
	}
	post.ID = model.FlexString(row)
	return post, nil
}

func (s *SheetStore) ListQueue(ctx context.Context) ([]model.QueueEntry, error) {
	return readTab[model.QueueEntry](ctx, s, s.tabs.Queue)
}

func (s *SheetStore) CreateQueueEntry(ctx context.Context, entry model.QueueEntry) (model.QueueEntry, error) {
	row, err := s.appendRecord(ctx, s.tabs.Queue, "queue", entry)
	if err != nil {
		return entry, err
	}
	entry.ID = model.FlexString(row)
	return entry, nil
}

func (s *SheetStore) UpdateQueueEntry(ctx context.Context, entry model.QueueEntry) error {
	id := strings.TrimSpace(string(entry.ID))
	if id == "" {
		_, err := s.CreateQueueEntry(ctx, entry)
		return err
	}
	row, err := strconv.Atoi(id)
	if err != nil || row < 2 {
		return fmt.Errorf("queue entry id %q is not a data row", entry.ID)
	}

	header, err := s.header(ctx, s.tabs.Queue, "queue")
	if err != nil {
		return err
	}
	values, err := toRow(header, entry)
	if err != nil {
		return err
	}
	rng := fmt.Sprintf("%s!A%d", quote(s.tabs.Queue), row)
	return s.call(ctx, func(ctx context.Context) error {
		_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &sheets.ValueRange{Values: [][]interface{}{values}}).
			ValueInputOption("RAW").Context(ctx).Do()
		return err
	})
}

func (s *SheetStore) ListLogs(ctx context.Context) ([]model.LogEntry, error) {
	return readTab[model.LogEntry](ctx, s, s.tabs.Logs)
}

func (s *SheetStore) AppendLog(ctx context.Context, entry model.LogEntry) error {
	_, err := s.appendRecord(ctx, s.tabs.Logs, "logs", entry)
	return err
}

func (s *SheetStore) AppendRevenue(ctx context.Context, entry model.RevenueEntry) error {
	_, err := s.appendRecord(ctx, s.tabs.Revenue, "revenue", entry)
	return err
}

// readTab maps every data row onto T through its JSON tags.
func readTab[T any](ctx context.Context, s *SheetStore, tab string) ([]T, error) {
	rows, err := s.values(ctx, quote(tab))
	if err != nil {
		return nil, err
	}
	out := []T{}
	if len(rows) < 2 {
		return out, nil
	}

	header := headerOf(rows[0])
	for i, row := range rows[1:] {
		record := map[string]string{}
		for col, name := range header {
			if name == "" || col >= len(row) {
				continue
			}
			record[name] = fmt.Sprint(row[col])
		}
		if len(record) == 0 {
			continue
		}
		if _, ok := record["id"]; !ok || record["id"] == "" {
			record["id"] = strconv.Itoa(i + 2)
		}

		raw, err := json.Marshal(record)
		if err != nil {
			return nil, err
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			logger.GetLogger().
				WithField("tab", tab).
				WithField("row", i+2).
				WithField("error", err.Error()).
				Warn("Skipping unreadable sheet row")
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *SheetStore) appendRecord(ctx context.Context, tab, kind string, record any) (string, error) {
	header, err := s.header(ctx, tab, kind)
	if err != nil {
		return "", err
	}
	values, err := toRow(header, record)
	if err != nil {
		return "", err
	}

	var updatedRange string
	err = s.call(ctx, func(ctx context.Context) error {
		resp, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, quote(tab), &sheets.ValueRange{Values: [][]interface{}{values}}).
			ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
		if err != nil {
			return err
		}
		if resp.Updates != nil {
			updatedRange = resp.Updates.UpdatedRange
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if m := updatedRowPattern.FindStringSubmatch(updatedRange); m != nil {
		return m[1], nil
	}
	return "", nil
}

// header returns the tab's column names, writing the default header first
// when the tab is empty.
func (s *SheetStore) header(ctx context.Context, tab, kind string) ([]string, error) {
	rows, err := s.values(ctx, quote(tab)+"!1:1")
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		return headerOf(rows[0]), nil
	}

	header := defaultHeaders[kind]
	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	err = s.call(ctx, func(ctx context.Context) error {
		_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, quote(tab)+"!A1", &sheets.ValueRange{Values: [][]interface{}{cells}}).
			ValueInputOption("RAW").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return header, nil
}

func (s *SheetStore) values(ctx context.Context, rng string) ([][]interface{}, error) {
	var rows [][]interface{}
	err := s.call(ctx, func(ctx context.Context) error {
		resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			return err
		}
		rows = resp.Values
		return nil
	})
	return rows, err
}

// call retries transport failures, 429 and 5xx; other API errors are final.
func (s *SheetStore) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.policy.Do(ctx, func(ctx context.Context) error {
		err := fn(ctx)
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code < http.StatusInternalServerError && apiErr.Code != http.StatusTooManyRequests {
			return utils.Permanent(err)
		}
		return err
	})
}

func toRow(header []string, record any) ([]interface{}, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	row := make([]interface{}, len(header))
	for i, name := range header {
		v, ok := fields[name]
		if !ok || v == nil {
			row[i] = ""
			continue
		}
		row[i] = v
	}
	return row, nil
}

func headerOf(cells []interface{}) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ToLower(strings.TrimSpace(fmt.Sprint(c)))
	}
	return out
}

func quote(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}
