package servicebus

import (
	"context"
	"encoding/json"
	"errors"

	"content-pipeline/domain/model"
	"content-pipeline/infrastructure/logger"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
)

// NewServiceBus prefers a connection string and otherwise authenticates to
// the fully qualified namespace with the default Azure credential chain.
func NewServiceBus(connectionString, namespace string) (*azservicebus.Client, error) {
	if connectionString != "" {
		return azservicebus.NewClientFromConnectionString(connectionString, nil)
	}
	if namespace == "" {
		return nil, errors.New("service bus namespace or connection string is required")
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return azservicebus.NewClient(namespace, cred, nil)
}

type messageSender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// Publisher sends due queue entries to a Service Bus queue.
type Publisher struct {
	newSender func(queueName string) (messageSender, error)
	queueName string
}

func NewPublisher(client *azservicebus.Client, queueName string) *Publisher {
	p := &Publisher{queueName: queueName}
	if client != nil {
		p.newSender = func(queueName string) (messageSender, error) {
			sender, err := client.NewSender(queueName, nil)
			if err != nil {
				return nil, err
			}
			return sender, nil
		}
	}
	return p
}

func (p *Publisher) Publish(ctx context.Context, entry model.QueueEntry) error {
	if p.newSender == nil {
		return errors.New("service bus client is not configured")
	}
	msg, err := newMessage(entry)
	if err != nil {
		return err
	}

	sender, err := p.newSender(p.queueName)
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return err
	}
	defer func(sender messageSender, ctx context.Context) {
		if err := sender.Close(ctx); err != nil {
			logger.GetLogger().
				WithField("error", err).
				Error("Error while closing sender.")
		}
	}(sender, context.WithoutCancel(ctx))

	if err := sender.SendMessage(ctx, msg, nil); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while sending message.")
		return err
	}
	return nil
}

func newMessage(entry model.QueueEntry) (*azservicebus.Message, error) {
	body, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	contentType := "application/json"
	return &azservicebus.Message{
		Body:        body,
		ContentType: &contentType,
		ApplicationProperties: map[string]any{
			"platform": entry.Platform,
			"post_id":  string(entry.PostID),
		},
	}, nil
}
