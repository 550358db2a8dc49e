package persistence

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"content-pipeline/domain/model"
	"content-pipeline/infrastructure/configuration"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoURI prefers an explicit URI and otherwise assembles one from parts.
func MongoURI(cfg configuration.Db) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	port := cfg.Port
	if port == "" {
		port = "27017"
	}
	u := &url.URL{Scheme: "mongodb", Host: fmt.Sprintf("%s:%s", cfg.Host, port)}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String()
}

func NewMongoDb(ctx context.Context, cfg configuration.Db) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(MongoURI(cfg)))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

type sourceDoc struct {
	Label    string `bson:"label"`
	Type     string `bson:"type"`
	Locator  string `bson:"url_or_key"`
	Active   bool   `bson:"active"`
	Platform string `bson:"platform,omitempty"`
}

type postDoc struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	CreatedAt    *time.Time    `bson:"created_at,omitempty"`
	Source       string        `bson:"source"`
	Title        string        `bson:"title"`
	Body         string        `bson:"body"`
	MediaURL     string        `bson:"media_url"`
	Status       string        `bson:"status"`
	Platform     string        `bson:"platform"`
	AffiliateURL string        `bson:"affiliate_url"`
}

type queueDoc struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	ScheduleAt   *time.Time    `bson:"schedule_at,omitempty"`
	Platform     string        `bson:"platform"`
	PostID       string        `bson:"post_id"`
	Status       string        `bson:"status"`
	LastAttempt  *time.Time    `bson:"last_attempt,omitempty"`
	AffiliateURL string        `bson:"affiliate_url,omitempty"`
}

type logDoc struct {
	Timestamp time.Time `bson:"timestamp"`
	Job       string    `bson:"job"`
	Status    string    `bson:"status"`
	Details   string    `bson:"details"`
}

type revenueDoc struct {
	Timestamp    time.Time `bson:"timestamp"`
	PostID       string    `bson:"post_id"`
	Platform     string    `bson:"platform"`
	AffiliateURL string    `bson:"affiliate_url"`
	Clicks       int       `bson:"clicks"`
	Revenue      float64   `bson:"revenue"`
}

// MongoStore implements repository.IRecordStore with one collection per
// record kind.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{db: client.Database(database)}
}

func (m *MongoStore) ListSources(ctx context.Context) ([]model.Source, error) {
	docs, err := findAll[sourceDoc](ctx, m.db.Collection(tableSources))
	if err != nil {
		return nil, err
	}
	out := make([]model.Source, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.Source{
			Label:    d.Label,
			Type:     model.SourceType(d.Type),
			Locator:  d.Locator,
			Active:   model.FlexBool(d.Active),
			Platform: d.Platform,
		})
	}
	return out, nil
}

func (m *MongoStore) ListPosts(ctx context.Context) ([]model.Post, error) {
	docs, err := findAll[postDoc](ctx, m.db.Collection(tablePosts))
	if err != nil {
		return nil, err
	}
	out := make([]model.Post, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (m *MongoStore) CreatePost(ctx context.Context, post model.Post) (model.Post, error) {
	doc := newPostDoc(post)
	doc.ID = bson.NewObjectID()
	if _, err := m.db.Collection(tablePosts).InsertOne(ctx, doc); err != nil {
		return post, err
	}
	post.ID = model.FlexString(doc.ID.Hex())
	return post, nil
}

func (m *MongoStore) ListQueue(ctx context.Context) ([]model.QueueEntry, error) {
	docs, err := findAll[queueDoc](ctx, m.db.Collection(tableQueue))
	if err != nil {
		return nil, err
	}
	out := make([]model.QueueEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (m *MongoStore) CreateQueueEntry(ctx context.Context, entry model.QueueEntry) (model.QueueEntry, error) {
	doc := newQueueDoc(entry)
	doc.ID = bson.NewObjectID()
	if _, err := m.db.Collection(tableQueue).InsertOne(ctx, doc); err != nil {
		return entry, err
	}
	entry.ID = model.FlexString(doc.ID.Hex())
	return entry, nil
}

func (m *MongoStore) UpdateQueueEntry(ctx context.Context, entry model.QueueEntry) error {
	if strings.TrimSpace(string(entry.ID)) == "" {
		_, err := m.CreateQueueEntry(ctx, entry)
		return err
	}
	oid, err := bson.ObjectIDFromHex(strings.TrimSpace(string(entry.ID)))
	if err != nil {
		return fmt.Errorf("queue entry id %q: %w", entry.ID, err)
	}
	doc := newQueueDoc(entry)
	doc.ID = oid
	res, err := m.db.Collection(tableQueue).ReplaceOne(ctx, bson.D{{Key: "_id", Value: oid}}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("queue entry %s: %w", oid.Hex(), mongo.ErrNoDocuments)
	}
	return nil
}

func (m *MongoStore) ListLogs(ctx context.Context) ([]model.LogEntry, error) {
	docs, err := findAll[logDoc](ctx, m.db.Collection(tableLogs))
	if err != nil {
		return nil, err
	}
	out := make([]model.LogEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.LogEntry{
			Timestamp: model.NewTimestamp(d.Timestamp),
			Job:       d.Job,
			Status:    model.LogStatus(d.Status),
			Details:   d.Details,
		})
	}
	return out, nil
}

func (m *MongoStore) AppendLog(ctx context.Context, entry model.LogEntry) error {
	_, err := m.db.Collection(tableLogs).InsertOne(ctx, logDoc{
		Timestamp: entry.Timestamp.UTC(),
		Job:       entry.Job,
		Status:    string(entry.Status),
		Details:   entry.Details,
	})
	return err
}

func (m *MongoStore) AppendRevenue(ctx context.Context, entry model.RevenueEntry) error {
	_, err := m.db.Collection(tableRevenue).InsertOne(ctx, revenueDoc{
		Timestamp:    entry.Timestamp.UTC(),
		PostID:       string(entry.PostID),
		Platform:     entry.Platform,
		AffiliateURL: entry.AffiliateURL,
		Clicks:       entry.Clicks,
		Revenue:      entry.Revenue,
	})
	return err
}

// findAll returns every document in insertion order.
func findAll[T any](ctx context.Context, coll *mongo.Collection) ([]T, error) {
	cursor, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	docs := []T{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func newPostDoc(p model.Post) postDoc {
	return postDoc{
		CreatedAt:    timePtr(p.CreatedAt),
		Source:       p.Source,
		Title:        p.Title,
		Body:         p.Body,
		MediaURL:     p.MediaURL,
		Status:       string(p.Status),
		Platform:     p.Platform,
		AffiliateURL: p.AffiliateURL,
	}
}

func (d postDoc) toModel() model.Post {
	p := model.Post{
		CreatedAt:    fromTimePtr(d.CreatedAt),
		Source:       d.Source,
		Title:        d.Title,
		Body:         d.Body,
		MediaURL:     d.MediaURL,
		Status:       model.PostStatus(d.Status),
		Platform:     d.Platform,
		AffiliateURL: d.AffiliateURL,
	}
	if !d.ID.IsZero() {
		p.ID = model.FlexString(d.ID.Hex())
	}
	return p
}

func newQueueDoc(e model.QueueEntry) queueDoc {
	return queueDoc{
		ScheduleAt:   timePtr(e.ScheduleAt),
		Platform:     e.Platform,
		PostID:       string(e.PostID),
		Status:       string(e.Status),
		LastAttempt:  timePtr(e.LastAttempt),
		AffiliateURL: e.AffiliateURL,
	}
}

func (d queueDoc) toModel() model.QueueEntry {
	e := model.QueueEntry{
		ScheduleAt:   fromTimePtr(d.ScheduleAt),
		Platform:     d.Platform,
		PostID:       model.FlexString(d.PostID),
		Status:       model.QueueStatus(d.Status),
		LastAttempt:  fromTimePtr(d.LastAttempt),
		AffiliateURL: d.AffiliateURL,
	}
	if !d.ID.IsZero() {
		e.ID = model.FlexString(d.ID.Hex())
	}
	return e
}

func timePtr(t model.Timestamp) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func fromTimePtr(t *time.Time) model.Timestamp {
	if t == nil {
		return model.Timestamp{}
	}
	return model.NewTimestamp(*t)
}
