package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"content-pipeline/domain/model"
)

const (
	tableSources = "content_sources"
	tablePosts   = "content_posts"
	tableQueue   = "publish_queue"
	tableLogs    = "job_logs"
	tableRevenue = "revenue_events"
)

var (
	postColumns    = []string{"created_at", "source", "title", "body", "media_url", "status", "platform", "affiliate_url"}
	queueColumns   = []string{"schedule_at", "platform", "post_id", "status", "last_attempt", "affiliate_url"}
	logColumns     = []string{"logged_at", "job", "status", "details"}
	revenueColumns = []string{"logged_at", "post_id", "platform", "affiliate_url", "clicks", "revenue"}
)

// SQLStore implements repository.IRecordStore on PostgreSQL or SQL Server.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label, type, url_or_key, active, platform FROM content_sources ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Source{}
	for rows.Next() {
		var src model.Source
		var kind string
		var active bool
		if err := rows.Scan(&src.Label, &kind, &src.Locator, &active, &src.Platform); err != nil {
			return nil, err
		}
		src.Type = model.SourceType(kind)
		src.Active = model.FlexBool(active)
		out = append(out, src)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListPosts(ctx context.Context) ([]model.Post, error) {
	q := fmt.Sprintf(`SELECT id, %s FROM %s ORDER BY id`, strings.Join(postColumns, ", "), tablePosts)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Post{}
	for rows.Next() {
		var p model.Post
		var id int64
		var createdAt sql.NullTime
		var status string
		if err := rows.Scan(&id, &createdAt, &p.Source, &p.Title, &p.Body, &p.MediaURL, &status, &p.Platform, &p.AffiliateURL); err != nil {
			return nil, err
		}
		p.ID = formatID(id)
		p.CreatedAt = fromNullTime(createdAt)
		p.Status = model.PostStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreatePost(ctx context.Context, post model.Post) (model.Post, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.dialect.insertReturningID(tablePosts, postColumns),
		toNullTime(post.CreatedAt), post.Source, post.Title, post.Body, post.MediaURL, string(post.Status), post.Platform, post.AffiliateURL,
	).Scan(&id)
	if err != nil {
		return post, err
	}
	post.ID = formatID(id)
	return post, nil
}

func (s *SQLStore) ListQueue(ctx context.Context) ([]model.QueueEntry, error) {
	q := fmt.Sprintf(`SELECT id, %s FROM %s ORDER BY id`, strings.Join(queueColumns, ", "), tableQueue)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.QueueEntry{}
	for rows.Next() {
		var e model.QueueEntry
		var id int64
		var scheduleAt, lastAttempt sql.NullTime
		var postID, status string
		if err := rows.Scan(&id, &scheduleAt, &e.Platform, &postID, &status, &lastAttempt, &e.AffiliateURL); err != nil {
			return nil, err
		}
		e.ID = formatID(id)
		e.ScheduleAt = fromNullTime(scheduleAt)
		e.LastAttempt = fromNullTime(lastAttempt)
		e.PostID = model.FlexString(postID)
		e.Status = model.QueueStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateQueueEntry(ctx context.Context, entry model.QueueEntry) (model.QueueEntry, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.dialect.insertReturningID(tableQueue, queueColumns),
		toNullTime(entry.ScheduleAt), entry.Platform, string(entry.PostID), string(entry.Status), toNullTime(entry.LastAttempt), entry.AffiliateURL,
	).Scan(&id)
	if err != nil {
		return entry, err
	}
	entry.ID = formatID(id)
	return entry, nil
}

func (s *SQLStore) UpdateQueueEntry(ctx context.Context, entry model.QueueEntry) error {
	if strings.TrimSpace(string(entry.ID)) == "" {
		_, err := s.CreateQueueEntry(ctx, entry)
		return err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(entry.ID)), 10, 64)
	if err != nil {
		return fmt.Errorf("queue entry id %q: %w", entry.ID, err)
	}

	sets := make([]string, len(queueColumns))
	for i, col := range queueColumns {
		sets[i] = fmt.Sprintf("%s = %s", col, s.dialect.Placeholder(i+1))
	}
	q := fmt.Sprintf(`UPDATE %s SET %s WHERE id = %s`, tableQueue, strings.Join(sets, ", "), s.dialect.Placeholder(len(queueColumns)+1))

	res, err := s.db.ExecContext(ctx, q,
		toNullTime(entry.ScheduleAt), entry.Platform, string(entry.PostID), string(entry.Status), toNullTime(entry.LastAttempt), entry.AffiliateURL, id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("queue entry %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

func (s *SQLStore) ListLogs(ctx context.Context) ([]model.LogEntry, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, strings.Join(logColumns, ", "), tableLogs)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.LogEntry{}
	for rows.Next() {
		var e model.LogEntry
		var at time.Time
		var status string
		if err := rows.Scan(&at, &e.Job, &status, &e.Details); err != nil {
			return nil, err
		}
		e.Timestamp = model.NewTimestamp(at)
		e.Status = model.LogStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) AppendLog(ctx context.Context, entry model.LogEntry) error {
	_, err := s.db.ExecContext(ctx, s.dialect.insert(tableLogs, logColumns),
		entry.Timestamp.UTC(), entry.Job, string(entry.Status), entry.Details)
	return err
}

func (s *SQLStore) AppendRevenue(ctx context.Context, entry model.RevenueEntry) error {
	_, err := s.db.ExecContext(ctx, s.dialect.insert(tableRevenue, revenueColumns),
		entry.Timestamp.UTC(), string(entry.PostID), entry.Platform, entry.AffiliateURL, entry.Clicks, entry.Revenue)
	return err
}

func formatID(id int64) model.FlexString {
	return model.FlexString(strconv.FormatInt(id, 10))
}

func toNullTime(t model.Timestamp) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(t sql.NullTime) model.Timestamp {
	if !t.Valid {
		return model.Timestamp{}
	}
	return model.NewTimestamp(t.Time)
}
