package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	baseDelay = 200 * time.Millisecond
	maxDelay  = 5 * time.Second
)

// Delay is the exponential backoff before the given retry attempt, capped at 5s.
func Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 16 {
		return maxDelay
	}
	d := baseDelay << attempt
	if d > maxDelay {
		d = maxDelay
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, or maxRetries
// retries are spent. It stops as soon as ctx is done.
func Do(ctx context.Context, maxRetries int, retryable func(error) bool, fn func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt >= maxRetries || !retryable(err) {
			return err
		}
		t := time.NewTimer(Delay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}

// Transient reports whether an OpenAI-compatible API error is worth retrying:
// rate limits, server errors and network failures.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
