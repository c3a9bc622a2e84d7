package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"branch-ledger/internal/domain"
	"branch-ledger/internal/errors"
)

// RetryPolicy bounds how often a transaction that lost a serialization
// conflict is attempted.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     250 * time.Millisecond,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	return p
}

// txRunner runs a unit of work at serializable isolation, re-running the
// whole callback when the store reports a serialization failure. Business
// errors end the loop immediately.
type txRunner struct {
	store  domain.Store
	policy RetryPolicy
	logger *slog.Logger
}

func newTxRunner(store domain.Store, policy RetryPolicy, logger *slog.Logger) *txRunner {
	return &txRunner{
		store:  store,
		policy: policy.withDefaults(),
		logger: logger,
	}
}

func (r *txRunner) serializable(ctx context.Context, operation string, fn func(domain.Store) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	b.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		err := r.store.WithTransaction(ctx, sql.LevelSerializable, fn)
		if err == nil {
			return nil
		}
		if errors.Retryable(err) {
			r.logger.Warn("Serialization conflict, retrying",
				"operation", operation,
				"attempt", attempt,
				"error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.policy.MaxAttempts-1)), ctx)
	err := backoff.Retry(op, policy)
	if err == nil {
		return nil
	}

	if errors.Retryable(err) {
		r.logger.Error("Retries exhausted", "operation", operation, "attempts", attempt, "error", err)
		return errors.ErrTransientFailure.WithDetails(err.Error())
	}
	if ctxErr := ctx.Err(); ctxErr != nil && err == ctxErr {
		return errors.ErrTransientFailure.WithDetails(ctxErr.Error())
	}
	return err
}

// snapshot runs fn in a single repeatable-read transaction so
// related reads observe the same data.
func (r *txRunner) snapshot(ctx context.Context, fn func(domain.Store) error) error {
	return r.store.WithTransaction(ctx, sql.LevelRepeatableRead, fn)
}
