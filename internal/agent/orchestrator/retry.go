package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	errx "github.com/Chative-voice-agent/server/internal/core/error"
	logx "github.com/Chative-voice-agent/server/pkg/logger"
)

// callPolicy bounds a single external call: a per attempt timeout and
// exponential backoff between retryable failures.
type callPolicy struct {
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
}

func (p callPolicy) backoffStrategy() retry.Backoff {
	base := p.backoff
	if base < time.Millisecond {
		base = time.Millisecond
	}
	return retry.WithMaxRetries(uint64(max(p.maxRetries, 0)), retry.NewExponential(base))
}

// callWithRetry runs fn under the policy. An attempt that hits its own
// deadline fails with errx.ErrTimeout and is not retried; errors flagged
// retryable by errx are retried until the budget is spent.
func callWithRetry[T any](ctx context.Context, op string, p callPolicy, fn func(context.Context) (T, error)) (T, error) {
	var out T
	attempt := 0
	err := retry.Do(ctx, p.backoffStrategy(), func(ctx context.Context) error {
		attempt++
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.timeout)
		}
		defer cancel()

		v, err := fn(callCtx)
		if err == nil {
			out = v
			return nil
		}
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return errx.Timeout(op, p.timeout, err)
		}
		if errx.IsRetryable(err) {
			logx.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("External call failed - retrying")
			return retry.RetryableError(err)
		}
		return err
	})
	return out, err
}
