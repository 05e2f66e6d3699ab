package registry

import (
	"context"
	"errors"
	"time"
)

// Run statuses stored in RunRecord.Status.
const (
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusTimeout  = "timeout"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

// RunRecord records the outcome of a single index run.
type RunRecord struct {
	Timestamp     time.Time `json:"@timestamp"`
	RunID         string    `json:"run_id"`
	Registry      string    `json:"registry"`
	ServerVersion string    `json:"server_version,omitempty"`
	Task          string    `json:"task,omitempty"`
	State         string    `json:"state,omitempty"`
	Waited        bool      `json:"waited"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	DurationSec   float64   `json:"duration_sec"`
	Polls         int       `json:"polls"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
}

// Recorder persists run records, e.g. as metrics.
type Recorder interface {
	Record(ctx context.Context, rec *RunRecord) error
}

// newRunRecord builds the record for a finished run. res may be nil when the
// run failed before the registry was resolved.
func newRunRecord(runID string, opts Options, started, completed time.Time, res *Result, err error) *RunRecord {
	rec := &RunRecord{
		Timestamp:   completed.UTC(),
		RunID:       runID,
		Registry:    opts.Name,
		Waited:      opts.Wait,
		StartedAt:   started.UTC(),
		CompletedAt: completed.UTC(),
		DurationSec: completed.Sub(started).Seconds(),
		Status:      runStatus(err),
	}
	if res != nil {
		rec.ServerVersion = res.ServerVersion
		rec.Task = res.Task
		rec.State = string(res.State)
		rec.Polls = res.Polls
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

func runStatus(err error) string {
	var (
		notFound *NotFoundError
		timeout  *TimeoutError
		failed   *TaskFailedError
	)
	switch {
	case err == nil:
		return StatusSuccess
	case errors.As(err, &timeout):
		return StatusTimeout
	case errors.As(err, &failed):
		return StatusFailed
	case errors.As(err, &notFound):
		return StatusNotFound
	default:
		return StatusError
	}
}

// multiRecorder fans a record out to several recorders.
type multiRecorder []Recorder

// MultiRecorder returns a Recorder that records to every non-nil rec. All
// recorders are called; their errors are joined.
func MultiRecorder(recs ...Recorder) Recorder {
	var m multiRecorder
	for _, rec := range recs {
		if rec != nil {
			m = append(m, rec)
		}
	}
	return m
}

func (m multiRecorder) Record(ctx context.Context, rec *RunRecord) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
