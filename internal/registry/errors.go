package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/jerabekjiri/automation-hub-collection/internal/hub"
)

// Exit codes reported by the command line tool.
const (
	ExitOK         = 0
	ExitError      = 1
	ExitTaskFailed = 2
	ExitTimeout    = 3
	ExitNotFound   = 4
)

// NotFoundError is returned when the named registry does not exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("the registry with name: %s, was not found", e.Name)
}

func (e *NotFoundError) Unwrap() error { return hub.ErrNotFound }

// TimeoutError is returned when the index task is still unfinished once the
// caller's timeout has elapsed.
type TimeoutError struct {
	Registry  string
	Task      string
	Timeout   time.Duration
	LastState hub.TaskState
	Polls     int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for index task %s of registry %s (last state %q)",
		e.Timeout, e.Task, e.Registry, e.LastState)
}

// TaskFailedError is returned when the hub reports the index task failed.
type TaskFailedError struct {
	Registry string
	Task     string
	State    hub.TaskState
	Reason   string
}

func (e *TaskFailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("index task %s of registry %s ended in state %q", e.Task, e.Registry, e.State)
	}
	return fmt.Sprintf("index task %s of registry %s ended in state %q: %s", e.Task, e.Registry, e.State, e.Reason)
}

// ExitCode maps an Indexer error to a process exit status.
func ExitCode(err error) int {
	var (
		notFound *NotFoundError
		timeout  *TimeoutError
		failed   *TaskFailedError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &timeout):
		return ExitTimeout
	case errors.As(err, &failed):
		return ExitTaskFailed
	case errors.As(err, &notFound):
		return ExitNotFound
	default:
		return ExitError
	}
}
