package resilience

import (
	"context"
	"errors"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

var (
	// Transient errors are retried and count against the breaker.
	Transient = ErrorClassification{Retryable: true, RecordFailure: true}
	// Permanent errors fail immediately and count against the breaker.
	Permanent = ErrorClassification{Retryable: false, RecordFailure: true}
	// Ignored errors fail immediately without tripping the breaker.
	Ignored = ErrorClassification{}
)

// ClassifyCommon handles what every adapter classifies the same way: caller
// cancellation is never retried nor recorded, an open circuit is transient.
// ok is false when the adapter has to decide itself.
func ClassifyCommon(err error) (ErrorClassification, bool) {
	switch {
	case err == nil:
		return Ignored, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Ignored, true
	case IsCircuitOpen(err):
		return Transient, true
	}
	return ErrorClassification{}, false
}

func defaultClassifier(err error) ErrorClassification {
	if class, ok := ClassifyCommon(err); ok {
		return class
	}
	return Permanent
}
