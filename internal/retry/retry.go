package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

var (
	// ErrNoResponse is returned once every attempt failed with a retryable error
	ErrNoResponse = errors.New("no response obtained")
	// ErrAborted is returned when a failure was classified as non-retryable
	ErrAborted = errors.New("retry aborted")
)

// Event is reported to an Observer once per failed attempt
type Event string

const (
	EventAbort    Event = "RETRY_BAIL"
	EventContinue Event = "RETRY_CONTINUE"
)

// Observer receives retry events for diagnostics only
type Observer func(event Event, attempt int, failure *Failure)

// Decision is the outcome of classifying a failed attempt
type Decision int

const (
	Retry Decision = iota
	Abort
)

func (d Decision) String() string {
	if d == Abort {
		return "abort"
	}
	return "retry"
}

// Policy bounds the retry driver
type Policy struct {
	MaxAttempts int           // total attempts including the first one
	BaseDelay   time.Duration // delay before the second attempt, doubled afterwards
}

var DefaultPolicy = Policy{
	MaxAttempts: 4,
	BaseDelay:   time.Second,
}

// HTTPError describes a call that reached the server but got a non-2xx response
type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
	Header     http.Header
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s", e.StatusCode, e.Status)
}

// Failure is the normalized form of a failed attempt
type Failure struct {
	Message    string
	StatusCode int // 0 when the failure did not come from an HTTP response
	StatusText string
	Body       []byte
	Header     http.Header

	cause error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.cause
}

// NewFailure normalizes err, picking up response metadata when err carries an HTTPError
func NewFailure(err error) *Failure {
	f := &Failure{
		Message:    err.Error(),
		StatusText: "undefined error response",
		cause:      err,
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		f.StatusCode = httpErr.StatusCode
		f.StatusText = httpErr.Status
		f.Body = httpErr.Body
		f.Header = httpErr.Header
	}

	return f
}

// Classify aborts on 4xx responses and retries everything else
func Classify(err error) Decision {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode > 399 && httpErr.StatusCode < 500 {
		return Abort
	}
	return Retry
}

// Do calls op until it succeeds, a failure is classified as Abort, or
// policy.MaxAttempts is used up. observer may be nil.
func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error), observer Observer) (T, error) {
	var (
		result   T
		attempt  int
		aborted  bool
		lastFail *Failure
	)

	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	// NewExponential panics on a non-positive base
	baseDelay := policy.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultPolicy.BaseDelay
	}

	backoff := goretry.WithMaxRetries(uint64(maxAttempts-1), goretry.NewExponential(baseDelay))

	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		value, err := op(ctx)
		if err == nil {
			result = value
			return nil
		}

		lastFail = NewFailure(err)

		if Classify(err) == Abort {
			aborted = true
			notify(observer, EventAbort, attempt, lastFail)
			return lastFail
		}

		notify(observer, EventContinue, attempt, lastFail)
		return goretry.RetryableError(lastFail)
	})

	if err == nil {
		return result, nil
	}

	var zero T
	switch {
	case aborted:
		return zero, fmt.Errorf("%w on attempt %d: %w", ErrAborted, attempt, lastFail)
	case ctx.Err() != nil:
		return zero, fmt.Errorf("retry cancelled after %d attempts: %w", attempt, ctx.Err())
	case lastFail != nil:
		return zero, fmt.Errorf("%w after %d attempts: %w", ErrNoResponse, attempt, lastFail)
	default:
		return zero, err
	}
}

func notify(observer Observer, event Event, attempt int, failure *Failure) {
	if observer != nil {
		observer(event, attempt, failure)
	}
}
