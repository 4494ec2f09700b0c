package errx

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("load script: %w", UnknownStep("step_9"))
	if !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("errors.Is(%v, ErrUnknownStep) = false", err)
	}
	if errors.Is(err, ErrUnknownIntent) {
		t.Fatal("unknown step must not match ErrUnknownIntent")
	}
	if got := KindOf(err); got != KindUnknownStep {
		t.Fatalf("KindOf = %q, want %q", got, KindUnknownStep)
	}
}

func TestExternalRetryable(t *testing.T) {
	if !IsRetryable(External("classify", errors.New("503"))) {
		t.Fatal("external failure should be retryable")
	}
	if IsRetryable(External("classify", fmt.Errorf("send: %w", context.Canceled))) {
		t.Fatal("cancelled call must not be retryable")
	}
	if External("classify", nil) != nil {
		t.Fatal("External(nil) should be nil")
	}
	if IsRetryable(Classification("maybe")) {
		t.Fatal("classification errors are not retryable")
	}
}

func TestWrapRedis(t *testing.T) {
	if err := WrapRedis("get", redis.Nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("redis.Nil should map to not found, got %v", err)
	}
	err := WrapRedis("get", errors.New("connection refused"))
	if !errors.Is(err, ErrExternalService) || !IsRetryable(err) {
		t.Fatalf("redis failure should be a retryable external error, got %v", err)
	}
	if WrapRedis("get", nil) != nil {
		t.Fatal("WrapRedis(nil) should be nil")
	}
}
