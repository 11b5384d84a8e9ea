package avanza

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"
)

// RetryPolicy decides whether a failed request is sent again. Attempt starts
// at 1 for the first retry. Returning false stops retrying.
type RetryPolicy interface {
	Retry(ctx context.Context, req *Request, attempt int, err error) (wait time.Duration, ok bool)
}

// NoRetry never retries. It is the default.
type NoRetry struct{}

func (NoRetry) Retry(context.Context, *Request, int, error) (time.Duration, bool) { return 0, false }

// Backoff retries idempotent GET requests that failed on the connection or
// with 429/5xx, waiting exponentially longer with jitter between attempts.
// Authorization failures are never retried.
type Backoff struct {
	MaxRetries  int
	InitialWait time.Duration
	MaxWait     time.Duration
	Factor      float64
	Jitter      float64
}

// DefaultBackoff returns a conservative backoff policy.
func DefaultBackoff() *Backoff {
	return &Backoff{
		MaxRetries:  3,
		InitialWait: 200 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Factor:      2.0,
		Jitter:      0.1,
	}
}

func (b *Backoff) Retry(ctx context.Context, req *Request, attempt int, err error) (time.Duration, bool) {
	if attempt > b.MaxRetries || req.Method != http.MethodGet || ctx.Err() != nil {
		return 0, false
	}
	if !isRetryable(err) {
		return 0, false
	}

	wait := b.InitialWait
	for i := 1; i < attempt; i++ {
		wait = time.Duration(float64(wait) * b.Factor)
	}
	jitter := 1.0 + b.Jitter*(2*rand.Float64()-1)
	wait = time.Duration(float64(wait) * jitter)
	if b.MaxWait > 0 && wait > b.MaxWait {
		wait = b.MaxWait
	}
	return wait, true
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	switch te.StatusCode {
	case 0:
		return true
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
