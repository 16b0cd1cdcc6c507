package ai

import "errors"

var (
	// ErrUnavailable marks a provider that cannot be reached or is not
	// configured. Retryable.
	ErrUnavailable = errors.New("ai provider unavailable")
	// ErrRateLimited marks throttling or transient upstream failures.
	// Retryable.
	ErrRateLimited = errors.New("ai provider rate limited")
	// ErrContentRejected marks input the model refuses to embed. Never
	// retried.
	ErrContentRejected = errors.New("content rejected by provider")
)

func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimited)
}
