package usecase

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"content-pipeline/domain/dto"
	"content-pipeline/domain/model"
	"content-pipeline/domain/repository"
	"content-pipeline/infrastructure/feed"
	"content-pipeline/infrastructure/logger"
	"content-pipeline/infrastructure/utils"
)

const (
	JobIngestion = "sources-poll"

	untitledPost = "(untitled)"
)

type IngestionConfig struct {
	MaxItemsPerSource int
	MaxNewPostsTotal  int
	QueueLead         time.Duration
	DefaultPlatform   string
	DefaultStatus     model.PostStatus
	BodyContainment   bool
}

func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{
		MaxItemsPerSource: 5,
		MaxNewPostsTotal:  25,
		QueueLead:         30 * time.Minute,
		DefaultPlatform:   "twitter",
		DefaultStatus:     model.PostStatusPending,
		BodyContainment:   true,
	}
}

type IIngestionUsecase interface {
	Run(ctx context.Context) (dto.JobReport, error)
}

type ingestionUsecase struct {
	sources repository.ISourceStore
	posts   repository.IPostStore
	queue   repository.IQueueStore
	fetcher repository.IFeedFetcher
	audit   *AuditTrail
	cfg     IngestionConfig
	now     func() time.Time
}

func NewIngestionUsecase(
	sources repository.ISourceStore,
	posts repository.IPostStore,
	queue repository.IQueueStore,
	fetcher repository.IFeedFetcher,
	audit *AuditTrail,
	cfg IngestionConfig,
	now func() time.Time,
) IIngestionUsecase {
	if now == nil {
		now = utils.GetCurrentTime
	}
	return &ingestionUsecase{
		sources: sources,
		posts:   posts,
		queue:   queue,
		fetcher: fetcher,
		audit:   audit,
		cfg:     cfg,
		now:     now,
	}
}

// Run polls every active source once, turning new items into pending posts
// and queue entries. A failing source or item is logged and skipped; only a
// failure to read sources or posts aborts the run. Exactly one summary audit
// record is written either way.
func (u *ingestionUsecase) Run(ctx context.Context) (dto.JobReport, error) {
	lg := logger.GetLogger().WithField("job", JobIngestion)
	report := dto.JobReport{Job: JobIngestion, StartedAt: u.now()}

	sources, err := u.sources.ListSources(ctx)
	if err != nil {
		return u.fail(ctx, report, fmt.Errorf("list sources: %w", err))
	}
	posts, err := u.posts.ListPosts(ctx)
	if err != nil {
		return u.fail(ctx, report, fmt.Errorf("list posts: %w", err))
	}
	index := NewPostIndex(posts, u.cfg.BodyContainment)
	lg.WithField("sources", len(sources)).WithField("posts", index.Len()).Info("Ingestion started")

	for _, src := range sources {
		if report.Created >= u.cfg.MaxNewPostsTotal {
			break
		}
		if !src.Processable() {
			continue
		}
		parse := readerFor(src.Kind())
		if parse == nil {
			lg.WithField("source", src.Label).WithField("type", src.Kind()).Debug("Source type is not polled, skipping")
			continue
		}
		body, err := u.fetcher.Fetch(ctx, strings.TrimSpace(src.Locator))
		if err != nil {
			report.SourcesFailed++
			lg.WithField("source", src.Label).WithField("error", err.Error()).Warn("Source fetch failed, skipping")
			continue
		}

		taken := 0
		for item := range parse(body) {
			if taken >= u.cfg.MaxItemsPerSource || report.Created >= u.cfg.MaxNewPostsTotal {
				break
			}
			taken++
			if index.Exists(item.Title, item.Link) {
				continue
			}
			u.enqueue(ctx, src, item, index, &report)
		}
	}

	report.FinishedAt = u.now()
	u.audit.Log(ctx, JobIngestion, model.LogStatusOK, fmt.Sprintf("Created %d, queued %d", report.Created, report.Queued))
	lg.WithField("created", report.Created).WithField("queued", report.Queued).Info("Ingestion finished")
	return report, nil
}

// readerFor picks the item reader for a source type; nil means the type is
// pushed to us rather than polled.
func readerFor(kind model.SourceType) func(string) iter.Seq[model.FeedItem] {
	switch kind {
	case model.SourceTypeFeed:
		return feed.Parse
	case model.SourceTypeAPI:
		return feed.ParseJSONItems
	default:
		return nil
	}
}

func (u *ingestionUsecase) enqueue(ctx context.Context, src model.Source, item model.FeedItem, index *PostIndex, report *dto.JobReport) {
	lg := logger.GetLogger().WithField("source", src.Label).WithField("link", item.Link)
	now := u.now()

	platform := strings.TrimSpace(src.Platform)
	if platform == "" {
		platform = u.cfg.DefaultPlatform
	}
	title := item.Title
	if title == "" {
		title = untitledPost
	}
	body := ""
	if item.Link != "" {
		body = "Source: " + item.Link
	}

	post, err := u.posts.CreatePost(ctx, model.Post{
		CreatedAt:    model.NewTimestamp(now),
		Source:       src.Label,
		Title:        title,
		Body:         body,
		Status:       u.cfg.DefaultStatus,
		Platform:     platform,
		AffiliateURL: item.Link,
	})
	if err != nil {
		lg.WithField("error", err.Error()).Error("insertPost failed")
		return
	}
	index.Add(post)
	report.Created++

	_, err = u.queue.CreateQueueEntry(ctx, model.QueueEntry{
		ScheduleAt:   model.NewTimestamp(now.Add(u.cfg.QueueLead)),
		Platform:     platform,
		PostID:       post.ID,
		Status:       model.QueueStatusPending,
		AffiliateURL: item.Link,
	})
	if err != nil {
		lg.WithField("error", err.Error()).Error("insertQueue failed")
		return
	}
	report.Queued++
}

func (u *ingestionUsecase) fail(ctx context.Context, report dto.JobReport, err error) (dto.JobReport, error) {
	report.FinishedAt = u.now()
	report.Error = err.Error()
	logger.GetLogger().WithField("job", JobIngestion).WithField("error", err.Error()).Error("Ingestion failed")
	u.audit.Log(ctx, JobIngestion, model.LogStatusError, err.Error())
	return report, err
}
