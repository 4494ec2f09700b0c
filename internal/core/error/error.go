package errx

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies failures of the call agent so callers can branch with errors.Is.
type Kind string

const (
	KindUnknownStep        Kind = "unknown_step"
	KindUnknownIntent      Kind = "unknown_intent"
	KindClassification     Kind = "classification"
	KindEmptyKnowledgeBase Kind = "empty_knowledge_base"
	KindExternalService    Kind = "external_service"
	KindTimeout            Kind = "timeout"
	KindMaxFallbackRetries Kind = "max_fallback_retries"
	KindInvalidScript      Kind = "invalid_script"
	KindTranscript         Kind = "transcript"
	KindNotFound           Kind = "not_found"
)

const (
	// SystemErrorMessage is a caller-safe fallback when internal errors occur.
	SystemErrorMessage = "internal error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
)

// Sentinels usable as errors.Is targets. Matching is done on Kind only.
var (
	ErrUnknownStep        = &AppError{Kind: KindUnknownStep, Message: "unknown step"}
	ErrUnknownIntent      = &AppError{Kind: KindUnknownIntent, Message: "unknown intent"}
	ErrClassification     = &AppError{Kind: KindClassification, Message: "classification failed"}
	ErrEmptyKnowledgeBase = &AppError{Kind: KindEmptyKnowledgeBase, Message: "knowledge base is empty"}
	ErrExternalService    = &AppError{Kind: KindExternalService, Message: "external service failed"}
	ErrTimeout            = &AppError{Kind: KindTimeout, Message: "operation timed out"}
	ErrMaxFallbackRetries = &AppError{Kind: KindMaxFallbackRetries, Message: "max fallback retries exceeded"}
	ErrInvalidScript      = &AppError{Kind: KindInvalidScript, Message: "invalid script"}
	ErrTranscript         = &AppError{Kind: KindTranscript, Message: "transcript write failed"}
	ErrNotFound           = &AppError{Kind: KindNotFound, Message: "not found"}
)

// AppError wraps an underlying error with a kind, the failing operation and a safe message.
type AppError struct {
	Kind      Kind
	Op        string
	Message   string
	Retryable bool
	Err       error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether the target has the same kind, or matches the underlying error.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok && t.Kind != "" {
		return e.Kind == t.Kind
	}
	return errors.Is(e.Err, target)
}

// New creates a new AppError with the provided information.
func New(kind Kind, op string, err error, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the kind of the first AppError in the chain, or "" if none.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// IsRetryable reports whether err is a transient failure worth retrying.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

func UnknownStep(id string) error {
	return &AppError{Kind: KindUnknownStep, Message: fmt.Sprintf("unknown step %q", id)}
}

func UnknownIntent(stepID, intent string) error {
	return &AppError{Kind: KindUnknownIntent, Message: fmt.Sprintf("step %q has no transition for intent %q", stepID, intent)}
}

func Classification(raw string) error {
	return &AppError{Kind: KindClassification, Message: fmt.Sprintf("classifier returned unsupported label %q", raw)}
}

func EmptyKnowledgeBase(source string) error {
	return &AppError{Kind: KindEmptyKnowledgeBase, Message: fmt.Sprintf("knowledge base %q has no entries", source)}
}

func InvalidScript(format string, args ...any) error {
	return &AppError{Kind: KindInvalidScript, Message: fmt.Sprintf(format, args...)}
}

// External wraps a failed call to an external capability. External failures are
// retryable unless the caller's context was cancelled.
func External(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{Kind: KindExternalService, Op: op, Message: "call cancelled", Err: err}
	}
	return &AppError{Kind: KindExternalService, Op: op, Message: "external service failed", Retryable: true, Err: err}
}

func Timeout(op string, after time.Duration, err error) error {
	return &AppError{Kind: KindTimeout, Op: op, Message: fmt.Sprintf("no result after %s", after), Err: err}
}

func MaxFallbackRetries(stepID string, turns int) error {
	return &AppError{Kind: KindMaxFallbackRetries, Message: fmt.Sprintf("fallback loop on step %q exceeded %d turns", stepID, turns)}
}

func Transcript(op string, err error) error {
	return &AppError{Kind: KindTranscript, Op: op, Message: "transcript write failed", Err: err}
}
