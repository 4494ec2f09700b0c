package knowledge

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	errx "github.com/Chative-voice-agent/server/internal/core/error"
	logx "github.com/Chative-voice-agent/server/pkg/logger"
)

// withBackoff runs fn with exponential backoff. Failures that are not already
// classified by errx become retryable external errors.
func withBackoff[T any](ctx context.Context, op string, opts BuildOptions, fn func(context.Context) (T, error)) (T, error) {
	base := opts.RetryBackoff
	if base < time.Millisecond {
		base = time.Millisecond
	}
	backoff := retry.WithMaxRetries(uint64(max(opts.MaxRetries, 0)), retry.NewExponential(base))

	var out T
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		v, err := fn(ctx)
		if err == nil {
			out = v
			return nil
		}
		var appErr *errx.AppError
		if !errors.As(err, &appErr) {
			err = errx.External(op, err)
		}
		if errx.IsRetryable(err) {
			logx.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("Knowledge build call failed - retrying")
			return retry.RetryableError(err)
		}
		return err
	})
	return out, err
}
