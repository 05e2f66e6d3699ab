package hub

import "time"

// TaskState is the state of an asynchronous hub task.
type TaskState string

const (
	TaskWaiting   TaskState = "waiting"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCanceled  TaskState = "canceled"
	TaskSkipped   TaskState = "skipped"
)

// Finished reports whether the task reached a terminal state.
func (s TaskState) Finished() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCanceled, TaskSkipped:
		return true
	}
	return false
}

// Failed reports whether the hub gave up on the task.
func (s TaskState) Failed() bool {
	return s == TaskFailed || s == TaskCanceled
}

// Task is the status document of a hub task.
type Task struct {
	Href       string     `json:"pulp_href"`
	Name       string     `json:"name"`
	State      TaskState  `json:"state"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Error      *TaskError `json:"error"`
}

// TaskError is the failure description attached to a failed task.
type TaskError struct {
	Description string `json:"description"`
	Traceback   string `json:"traceback"`
}

// Reason returns the failure description, if the hub reported one.
func (t *Task) Reason() string {
	if t == nil || t.Error == nil {
		return ""
	}
	return t.Error.Description
}
