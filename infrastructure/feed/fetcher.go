package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"content-pipeline/infrastructure/utils"

	"golang.org/x/time/rate"
)

const maxBodyBytes = 5 << 20

// FetchError is a non-2xx answer from a source host.
type FetchError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// HTTPFetcher downloads source documents with the shared retry policy and
// a global request rate.
type HTTPFetcher struct {
	client    *http.Client
	policy    utils.RetryPolicy
	limiter   *rate.Limiter
	userAgent string
}

// NewHTTPFetcher builds a fetcher. interval is the minimum spacing between
// requests; zero disables limiting.
func NewHTTPFetcher(client *http.Client, policy utils.RetryPolicy, interval time.Duration, userAgent string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &HTTPFetcher{
		client:    client,
		policy:    policy,
		limiter:   rate.NewLimiter(limit, 1),
		userAgent: userAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, locator string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}
	var body string
	err := f.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
		if err != nil {
			return utils.Permanent(err)
		}
		if f.userAgent != "" {
			req.Header.Set("User-Agent", f.userAgent)
		}
		req.Header.Set("Accept", "application/rss+xml, application/xml, application/json, text/xml;q=0.9, */*;q=0.8")

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			fetchErr := &FetchError{URL: locator, StatusCode: resp.StatusCode, Body: string(data)}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return fetchErr
			}
			return utils.Permanent(fetchErr)
		}
		body = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return body, nil
}
