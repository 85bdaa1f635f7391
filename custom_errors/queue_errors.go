package custom_errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPersistenceUnavailable marks failures to reach the backing store. The poll loop
	// treats it as "no work now".
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	ErrQueueNotFound    = errors.New("queue does not exist")
	ErrJobNotFound      = errors.New("job does not exist")
	ErrNoQueues         = errors.New("no queues exist")
	ErrInvalidQueueName = errors.New("invalid queue name")
)

// AlreadyProcessedError is returned by a manual run of a job that has already been claimed.
type AlreadyProcessedError struct {
	JobID  int64
	Result *string
}

func (e *AlreadyProcessedError) Error() string {
	result := ""
	if e.Result != nil {
		result = *e.Result
	}
	return fmt.Sprintf("job %d has already been running with result: %s", e.JobID, result)
}

// UnknownComponentError reports a component that has no registered handlers.
type UnknownComponentError struct {
	Component string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("component %q not found", e.Component)
}

// UnknownCallbackError reports a method or function name that cannot be resolved.
type UnknownCallbackError struct {
	Component string
	Callback  string
}

func (e *UnknownCallbackError) Error() string {
	if e.Component == "" {
		return fmt.Sprintf("function %q not found", e.Callback)
	}
	return fmt.Sprintf("method %q not found for component %q", e.Callback, e.Component)
}

// ExecutionFailureError wraps anything a handler returned or panicked with.
type ExecutionFailureError struct {
	Message string
	Err     error
}

func (e *ExecutionFailureError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return "job execution failed"
	}
	return e.Message
}

func (e *ExecutionFailureError) Unwrap() error {
	return e.Err
}

// IsJobFailure reports whether err came from dispatching a job rather than from the queue itself.
func IsJobFailure(err error) bool {
	var (
		component *UnknownComponentError
		callback  *UnknownCallbackError
		execution *ExecutionFailureError
	)
	return errors.As(err, &component) || errors.As(err, &callback) || errors.As(err, &execution)
}
