package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"content-pipeline/infrastructure/logger"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS content_sources (
        id BIGSERIAL PRIMARY KEY,
        label TEXT NOT NULL DEFAULT '',
        type TEXT NOT NULL DEFAULT 'feed',
        url_or_key TEXT NOT NULL DEFAULT '',
        active BOOLEAN NOT NULL DEFAULT TRUE,
        platform TEXT NOT NULL DEFAULT ''
    )`,
	`CREATE TABLE IF NOT EXISTS content_posts (
        id BIGSERIAL PRIMARY KEY,
        created_at TIMESTAMPTZ NULL,
        source TEXT NOT NULL DEFAULT '',
        title TEXT NOT NULL DEFAULT '',
        body TEXT NOT NULL DEFAULT '',
        media_url TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL DEFAULT 'pending',
        platform TEXT NOT NULL DEFAULT '',
        affiliate_url TEXT NOT NULL DEFAULT ''
    )`,
	`CREATE TABLE IF NOT EXISTS publish_queue (
        id BIGSERIAL PRIMARY KEY,
        schedule_at TIMESTAMPTZ NULL,
        platform TEXT NOT NULL DEFAULT '',
        post_id TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL DEFAULT 'pending',
        last_attempt TIMESTAMPTZ NULL,
        affiliate_url TEXT NOT NULL DEFAULT ''
    )`,
	`CREATE TABLE IF NOT EXISTS job_logs (
        id BIGSERIAL PRIMARY KEY,
        logged_at TIMESTAMPTZ NOT NULL,
        job TEXT NOT NULL,
        status TEXT NOT NULL,
        details TEXT NOT NULL DEFAULT ''
    )`,
	`CREATE TABLE IF NOT EXISTS revenue_events (
        id BIGSERIAL PRIMARY KEY,
        logged_at TIMESTAMPTZ NOT NULL,
        post_id TEXT NOT NULL DEFAULT '',
        platform TEXT NOT NULL DEFAULT '',
        affiliate_url TEXT NOT NULL DEFAULT '',
        clicks INTEGER NOT NULL DEFAULT 0,
        revenue NUMERIC(12,2) NOT NULL DEFAULT 0
    )`,
}

var mssqlSchema = map[string]string{
	"content_sources": `CREATE TABLE dbo.[content_sources] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        label NVARCHAR(255) NOT NULL DEFAULT '',
        type NVARCHAR(32) NOT NULL DEFAULT 'feed',
        url_or_key NVARCHAR(2048) NOT NULL DEFAULT '',
        active BIT NOT NULL DEFAULT 1,
        platform NVARCHAR(64) NOT NULL DEFAULT ''
    )`,
	"content_posts": `CREATE TABLE dbo.[content_posts] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        created_at DATETIME2 NULL,
        source NVARCHAR(255) NOT NULL DEFAULT '',
        title NVARCHAR(1024) NOT NULL DEFAULT '',
        body NVARCHAR(MAX) NOT NULL DEFAULT '',
        media_url NVARCHAR(2048) NOT NULL DEFAULT '',
        status NVARCHAR(32) NOT NULL DEFAULT 'pending',
        platform NVARCHAR(64) NOT NULL DEFAULT '',
        affiliate_url NVARCHAR(2048) NOT NULL DEFAULT ''
    )`,
	"publish_queue": `CREATE TABLE dbo.[publish_queue] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        schedule_at DATETIME2 NULL,
        platform NVARCHAR(64) NOT NULL DEFAULT '',
        post_id NVARCHAR(64) NOT NULL DEFAULT '',
        status NVARCHAR(32) NOT NULL DEFAULT 'pending',
        last_attempt DATETIME2 NULL,
        affiliate_url NVARCHAR(2048) NOT NULL DEFAULT ''
    )`,
	"job_logs": `CREATE TABLE dbo.[job_logs] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        logged_at DATETIME2 NOT NULL,
        job NVARCHAR(64) NOT NULL,
        status NVARCHAR(16) NOT NULL,
        details NVARCHAR(MAX) NOT NULL DEFAULT ''
    )`,
	"revenue_events": `CREATE TABLE dbo.[revenue_events] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        logged_at DATETIME2 NOT NULL,
        post_id NVARCHAR(64) NOT NULL DEFAULT '',
        platform NVARCHAR(64) NOT NULL DEFAULT '',
        affiliate_url NVARCHAR(2048) NOT NULL DEFAULT '',
        clicks INT NOT NULL DEFAULT 0,
        revenue DECIMAL(12,2) NOT NULL DEFAULT 0
    )`,
}

var mssqlTables = []string{"content_sources", "content_posts", "publish_queue", "job_logs", "revenue_events"}

// EnsureSchema creates the pipeline tables if they are missing. Safe to call
// at every startup.
func EnsureSchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if dialect.Name == MSSQL.Name {
		for _, table := range mssqlTables {
			q := fmt.Sprintf(`IF OBJECT_ID(N'dbo.%s', N'U') IS NULL BEGIN %s END`, table, mssqlSchema[table])
			if _, err := db.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("create %s table: %w", table, err)
			}
		}
		return nil
	}

	for _, ddl := range postgresSchema {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_publish_queue_status_schedule ON publish_queue(status, schedule_at)`); err != nil {
		logger.GetLogger().WithField("error", err).Warn("failed creating idx_publish_queue_status_schedule")
	}
	return nil
}
