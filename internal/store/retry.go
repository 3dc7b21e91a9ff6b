package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vanshika/tunetraits/internal/domain"
)

// RetryPolicy is a fixed-delay retry: no backoff growth, no jitter.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy matches the collection flow: three attempts two seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: 2 * time.Second}
}

// Do runs fn until it succeeds, fails with a non-transient error, or the
// attempts are used up.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if logger != nil {
			logger.Warn("store call failed, retrying",
				"op", op,
				"attempt", attempt,
				"max_attempts", attempts,
				"delay", p.Delay.String(),
				"error", err,
			)
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type retryingClient struct {
	Client
	policy RetryPolicy
	logger *slog.Logger
}

// WithRetry wraps every atomic call of c in policy.
func WithRetry(c Client, policy RetryPolicy, logger *slog.Logger) Client {
	return &retryingClient{Client: c, policy: policy, logger: logger}
}

func (r *retryingClient) UpsertSection(ctx context.Context, id domain.Identity, path domain.SectionPath, payload any, now time.Time) error {
	return r.policy.Do(ctx, r.logger, "upsert "+path.String(), func(ctx context.Context) error {
		return r.Client.UpsertSection(ctx, id, path, payload, now)
	})
}

func (r *retryingClient) FindRecord(ctx context.Context, id domain.Identity) (domain.UnifiedUserRecord, error) {
	var rec domain.UnifiedUserRecord
	err := r.policy.Do(ctx, r.logger, "find record", func(ctx context.Context) error {
		var err error
		rec, err = r.Client.FindRecord(ctx, id)
		return err
	})
	return rec, err
}
