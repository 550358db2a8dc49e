package repository

import (
	"context"

	"content-pipeline/domain/model"
)

// IPublisher hands a due queue entry to the outside world.
type IPublisher interface {
	Publish(ctx context.Context, entry model.QueueEntry) error
}
