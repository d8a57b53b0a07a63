package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound marks resource-resolution failures (no shards match).
	// Fatal before the loop starts.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed or structurally incomplete frames.
	// Recovered locally: the frame is skipped.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable configuration. Fatal.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks retryable service failures (network, timeout,
	// 5xx-equivalent). Exhausting retries demotes it to a per-frame failure.
	ErrTransient = errors.New("transient failure")
	// ErrFatalService marks non-retryable service failures (auth, malformed
	// request). Per-frame failure with no retry budget spent.
	ErrFatalService = errors.New("service rejected request")
	// ErrSchema marks a service response that arrived but failed structural
	// validation. Per-frame failure, never retried.
	ErrSchema = errors.New("response schema invalid")
	// ErrPersistence marks result or checkpoint write failures. Fatal to the
	// run: silently losing persisted state would break resumability.
	ErrPersistence = errors.New("persistence failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the short classification label recorded in logs and the run
// ledger for a tagged error.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrFatalService):
		return "service_fatal"
	case errors.Is(err, ErrSchema):
		return "response_schema"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}

// IsFatal reports whether an error must abort the whole run rather than a
// single frame.
func IsFatal(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrPersistence)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
