package ledger

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/core/apperror"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

var tracer = otel.Tracer("toppingfrozen/ledger")

// ExecutorConfig configures retry and pacing of ledger calls.
type ExecutorConfig struct {
	// MaxRetries is the number of retries after the first attempt (attempts = MaxRetries+1).
	MaxRetries int

	// BaseDelay is the first backoff wait; it doubles per attempt.
	BaseDelay time.Duration

	// MaxDelay caps every wait, including server Retry-After hints.
	MaxDelay time.Duration

	// MinInterval spaces consecutive requests from this process. 0 disables pacing.
	MinInterval time.Duration
}

// DefaultExecutorConfig returns the ledger-friendly defaults:
// waits of 1s, 2s, 4s, 8s, 10s and 300ms between requests.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxRetries:  5,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		MinInterval: 300 * time.Millisecond,
	}
}

// Executor runs ledger calls, retrying only rate-limited (429) attempts.
// Validation, auth, server and transport errors return at once: retrying
// them burns the rate-limit budget and cannot succeed.
type Executor struct {
	cfg     ExecutorConfig
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewExecutor creates an executor. Zero config fields take defaults.
func NewExecutor(cfg ExecutorConfig, log *logger.Logger) *Executor {
	def := DefaultExecutorConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}

	e := &Executor{
		cfg: cfg,
		log: log.OrDefault().WithComponent("ledger.executor"),
	}
	if cfg.MinInterval > 0 {
		e.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return e
}

// Config returns the effective configuration.
func (e *Executor) Config() ExecutorConfig {
	return e.cfg
}

// Do runs fn until it succeeds, fails with a non-429 error, or the retry
// budget is spent. An exhausted budget yields RATE_LIMIT_EXCEEDED wrapping
// the last StatusError. Waits block only the calling goroutine and end
// early when ctx is cancelled.
func (e *Executor) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := 0
	var lastErr error

	schedule := &backoff.ExponentialBackOff{
		InitialInterval:     e.cfg.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         e.cfg.MaxDelay,
	}
	schedule.Reset()

	operation := func() (struct{}, error) {
		attempts++
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				lastErr = err
				return struct{}{}, backoff.Permanent(err)
			}
		}

		err := e.attempt(ctx, op, attempts, fn)
		lastErr = err
		if err == nil {
			return struct{}{}, nil
		}

		se, ok := AsStatusError(err)
		if !ok || !se.RateLimited() {
			return struct{}{}, backoff.Permanent(err)
		}
		if hint, ok := se.RetryAfter(); ok {
			return struct{}{}, &backoff.RetryAfterError{Duration: e.clampWait(hint)}
		}
		return struct{}{}, err
	}

	notify := func(err error, wait time.Duration) {
		e.log.WithContext(ctx).Warnw("ledger rate limited, backing off",
			"operation", op,
			"attempt", attempts,
			"max_retries", e.cfg.MaxRetries,
			"wait", wait)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(schedule),
		backoff.WithMaxTries(uint(e.cfg.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err == nil {
		return nil
	}

	if se, ok := AsStatusError(lastErr); ok && se.RateLimited() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		e.log.WithContext(ctx).Errorw("ledger rate limit persisted, giving up",
			"operation", op,
			"attempts", attempts)
		return apperror.NewRateLimitExceeded(op, attempts).WithCause(lastErr)
	}
	if lastErr != nil {
		return lastErr
	}
	return err
}

// clampWait bounds a server hint by MaxDelay.
func (e *Executor) clampWait(d time.Duration) time.Duration {
	if d > e.cfg.MaxDelay {
		return e.cfg.MaxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}

// attempt runs one call inside its own span.
func (e *Executor) attempt(ctx context.Context, op string, n int, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "ledger."+op, trace.WithAttributes(
		attribute.String("ledger.operation", op),
		attribute.Int("ledger.attempt", n),
	))
	defer span.End()

	err := fn(ctx)
	if err != nil {
		if se, ok := AsStatusError(err); ok {
			span.SetAttributes(attribute.Int("http.status_code", se.StatusCode))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
