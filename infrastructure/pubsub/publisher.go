package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"content-pipeline/domain/model"
	"content-pipeline/infrastructure/logger"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

func NewPubSub(ctx context.Context, projectID string, opts ...option.ClientOption) (*pubsub.Client, error) {
	return pubsub.NewClient(ctx, projectID, opts...)
}

// Publisher hands due queue entries to a Pub/Sub topic. The topic is created
// on first use when it does not exist.
type Publisher struct {
	client  *pubsub.Client
	topicID string

	mu    sync.Mutex
	topic *pubsub.Topic
}

func NewPublisher(client *pubsub.Client, topicID string) *Publisher {
	return &Publisher{client: client, topicID: topicID}
}

func (p *Publisher) Publish(ctx context.Context, entry model.QueueEntry) error {
	if p.client == nil {
		return errors.New("pubsub client is not configured")
	}
	topic, err := p.ensureTopic(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	msg := &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"platform": entry.Platform,
			"post_id":  string(entry.PostID),
		},
	}

	serverID, err := topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return err
	}
	logger.GetLogger().
		WithField("server ID", serverID).
		WithField("post_id", string(entry.PostID)).
		Info("Message published")
	return nil
}

func (p *Publisher) ensureTopic(ctx context.Context) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		return p.topic, nil
	}

	topic := p.client.Topic(p.topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.GetLogger().WithField("topic", p.topicID).Info("Topic doesn't exist - creating it")
		if topic, err = p.client.CreateTopic(ctx, p.topicID); err != nil {
			return nil, err
		}
	}
	p.topic = topic
	return topic, nil
}

// Close flushes pending messages.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		p.topic.Stop()
	}
}
