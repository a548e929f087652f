package runner

import (
	"context"
	"fmt"
)

// HTTPError represents an HTTP request failure with status details.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// FailureLogger logs failed iterations.
type FailureLogger interface {
	LogFailure(vu VU, err error)
}

type loggingWorkload struct {
	inner  Workload
	logger FailureLogger
}

// WithLogging wraps a Workload to log failures. Interrupted iterations are
// not logged.
func WithLogging(w Workload, logger FailureLogger) Workload {
	if logger == nil {
		return w
	}
	return &loggingWorkload{inner: w, logger: logger}
}

func (l *loggingWorkload) Iteration(ctx context.Context, vu VU) error {
	err := l.inner.Iteration(ctx, vu)
	if err != nil && ctx.Err() == nil {
		l.logger.LogFailure(vu, err)
	}
	return err
}
