package model

import (
	"encoding/json"
	"strings"
	"time"
)

type SourceType string

const (
	SourceTypeFeed  SourceType = "feed"
	SourceTypeAPI   SourceType = "api"
	SourceTypeEvent SourceType = "event"
)

type PostStatus string

const (
	PostStatusDraft    PostStatus = "draft"
	PostStatusPending  PostStatus = "pending"
	PostStatusComplete PostStatus = "complete"
)

type QueueStatus string

const (
	QueueStatusPending   QueueStatus = "pending"
	QueueStatusScheduled QueueStatus = "scheduled"
	QueueStatusComplete  QueueStatus = "complete"
)

type LogStatus string

const (
	LogStatusOK    LogStatus = "ok"
	LogStatusError LogStatus = "error"
)

// Source is a configured origin of content.
type Source struct {
	Label    string     `json:"label"`
	Type     SourceType `json:"type"`
	Locator  string     `json:"url_or_key"`
	Active   FlexBool   `json:"active"`
	Platform string     `json:"platform,omitempty"`
}

func (s *Source) UnmarshalJSON(b []byte) error {
	type alias Source
	var aux struct {
		alias
		URL string `json:"url"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*s = Source(aux.alias)
	if strings.TrimSpace(s.Locator) == "" {
		s.Locator = aux.URL
	}
	return nil
}

// Kind returns the lower-cased, trimmed source type.
func (s Source) Kind() SourceType {
	return SourceType(strings.ToLower(strings.TrimSpace(string(s.Type))))
}

// Processable reports whether ingestion should look at the source at all.
func (s Source) Processable() bool {
	return bool(s.Active) && strings.TrimSpace(s.Locator) != ""
}

// Post is a candidate piece of content derived from a source item.
type Post struct {
	ID           FlexString `json:"id,omitempty"`
	CreatedAt    Timestamp  `json:"created_at"`
	Source       string     `json:"source"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	MediaURL     string     `json:"media_url"`
	Status       PostStatus `json:"status"`
	Platform     string     `json:"platform"`
	AffiliateURL string     `json:"affiliate_url"`
}

func (p *Post) UnmarshalJSON(b []byte) error {
	type alias Post
	var aux struct {
		alias
		UnderscoreID FlexString `json:"_id"`
		LegacyURL    string     `json:"affilliate_url"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*p = Post(aux.alias)
	if p.ID == "" {
		p.ID = aux.UnderscoreID
	}
	if p.AffiliateURL == "" {
		p.AffiliateURL = aux.LegacyURL
	}
	return nil
}

// QueueEntry is a scheduled intent to publish a post.
type QueueEntry struct {
	ID           FlexString  `json:"id,omitempty"`
	ScheduleAt   Timestamp   `json:"schedule_at"`
	Platform     string      `json:"platform"`
	PostID       FlexString  `json:"post_id"`
	Status       QueueStatus `json:"status"`
	LastAttempt  Timestamp   `json:"last_attempt"`
	AffiliateURL string      `json:"affiliate_url,omitempty"`
}

func (q *QueueEntry) UnmarshalJSON(b []byte) error {
	type alias QueueEntry
	var aux struct {
		alias
		UnderscoreID FlexString `json:"_id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*q = QueueEntry(aux.alias)
	if q.ID == "" {
		q.ID = aux.UnderscoreID
	}
	return nil
}

// IsDue reports whether the entry should be published at now. An entry
// without a readable schedule time is never due.
func (q QueueEntry) IsDue(now time.Time) bool {
	switch QueueStatus(strings.ToLower(strings.TrimSpace(string(q.Status)))) {
	case QueueStatusPending, QueueStatusScheduled:
	default:
		return false
	}
	if q.ScheduleAt.IsZero() {
		return false
	}
	return !q.ScheduleAt.After(now)
}

// LogEntry is one audit record of a job run or a per-item outcome.
type LogEntry struct {
	Timestamp Timestamp `json:"timestamp"`
	Job       string    `json:"job"`
	Status    LogStatus `json:"status"`
	Details   string    `json:"details"`
}

// RevenueEntry is the attribution stub written after a publish.
type RevenueEntry struct {
	Timestamp    Timestamp  `json:"timestamp"`
	PostID       FlexString `json:"post_id"`
	Platform     string     `json:"platform"`
	AffiliateURL string     `json:"affiliate_url"`
	Clicks       int        `json:"clicks"`
	Revenue      float64    `json:"revenue"`
}
