package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-go/internal/metrics"
)

// Retrying retries failed sends with exponential backoff. MaxRetries counts
// attempts after the first one.
type Retrying struct {
	next       Notifier
	maxRetries uint64
	base       time.Duration
	metrics    *metrics.Metrics
	logger     *zap.SugaredLogger
}

func NewRetrying(next Notifier, maxRetries uint64, base time.Duration, m *metrics.Metrics, logger *zap.SugaredLogger) *Retrying {
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	return &Retrying{next: next, maxRetries: maxRetries, base: base, metrics: m, logger: logger}
}

func (r *Retrying) Send(ctx context.Context, to, subject, html string) error {
	attempt := 0
	backoff := retry.WithMaxRetries(r.maxRetries, retry.NewExponential(r.base))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := r.next.Send(ctx, to, subject, html)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		r.logger.Debugw("send attempt failed", "to", to, "attempt", attempt, "err", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		r.metrics.Notification(metrics.ResultFailed)
		return fmt.Errorf("send to %s after %d attempts: %w", to, attempt, err)
	}
	r.metrics.Notification(metrics.ResultOK)
	return nil
}
