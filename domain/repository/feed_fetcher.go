package repository

import "context"

// IFeedFetcher retrieves the raw body behind a source locator.
type IFeedFetcher interface {
	Fetch(ctx context.Context, locator string) (string, error)
}
