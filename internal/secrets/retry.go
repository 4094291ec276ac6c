package secrets

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"
)

// Retry tuning for the AWS provider.
const (
	retryMaxAttempts = 10
	retryBaseDelay   = 100 * time.Millisecond
	retryMaxDelay    = 30 * time.Second
)

// retryer implements aws.Retryer with exponential backoff and jitter,
// retrying only on throttling-style API errors.
type retryer struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

var _ aws.Retryer = (*retryer)(nil)

func newRetryer() *retryer {
	return &retryer{
		maxAttempts: retryMaxAttempts,
		baseDelay:   retryBaseDelay,
		maxDelay:    retryMaxDelay,
	}
}

// MaxAttempts returns the attempt budget, including the initial attempt.
func (r *retryer) MaxAttempts() int {
	return r.maxAttempts
}

// RetryDelay returns the backoff for the given attempt: baseDelay doubled
// per attempt with up to 25% jitter either way, capped at maxDelay.
func (r *retryer) RetryDelay(attempt int, _ error) (time.Duration, error) {
	delay := time.Duration(math.Pow(2, float64(attempt-1))) * r.baseDelay

	jitterRange := int64(float64(delay) * 0.25)
	if jitterRange > 0 {
		delay += time.Duration(rand.Int63n(2*jitterRange) - jitterRange)
	}

	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	if delay < 0 {
		delay = 0
	}

	return delay, nil
}

// IsErrorRetryable reports whether the error is a transient API failure.
// Unknown errors are not retried.
func (r *retryer) IsErrorRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException",
			"ProvisionedThroughputExceededException",
			"RequestLimitExceeded",
			"TooManyRequestsException":
			return true
		case "AccessDeniedException",
			"UnauthorizedOperation",
			"InvalidParameterException",
			"ValidationException":
			return false
		}
	}

	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return false
	}

	return false
}

// GetRetryToken always grants a token; the attempt budget is the only limit.
func (r *retryer) GetRetryToken(ctx context.Context, opErr error) (func(error) error, error) {
	return func(error) error { return nil }, nil
}

// GetInitialToken grants the initial attempt token.
func (r *retryer) GetInitialToken() func(error) error {
	return func(error) error { return nil }
}
