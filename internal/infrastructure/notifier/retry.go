package notifier

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retry runs op with exponential backoff until it succeeds, returns a
// backoff.Permanent error, or ctx (which carries the send deadline) ends.
func retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return op()
	}, backoff.WithContext(b, ctx))
}

// retryableStatus reports whether an HTTP status is worth another attempt
func retryableStatus(code int) bool {
	return code == 429 || code >= 500
}
