package errx

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to the unified error type. A missing key is a
// not-found condition; everything else is a retryable external failure.
func WrapRedis(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return New(KindNotFound, op, err, RedisNotFoundMessage)
	}
	appErr := New(KindExternalService, op, err, RedisErrorMessage)
	appErr.Retryable = true
	return appErr
}
