package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jerabekjiri/automation-hub-collection/internal/hub"
)

// Result describes a triggered index operation.
type Result struct {
	Changed       bool          `json:"changed"`
	Registry      string        `json:"registry"`
	RegistryID    string        `json:"registry_id"`
	IDField       IDField       `json:"id_field"`
	ServerVersion string        `json:"server_version"`
	Task          string        `json:"task"`
	State         hub.TaskState `json:"state,omitempty"`
	Polls         int           `json:"polls"`
	Elapsed       time.Duration `json:"-"`
	ElapsedSec    float64       `json:"elapsed_sec"`
}

// Indexer triggers execution environment registry indexing on a hub.
type Indexer struct {
	hub      HubClient
	resolver *Resolver
	recorder Recorder // optional

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// IndexerOption configures optional Indexer behavior.
type IndexerOption func(*Indexer)

// WithRecorder records the outcome of every run.
func WithRecorder(rec Recorder) IndexerOption {
	return func(ix *Indexer) {
		ix.recorder = rec
	}
}

// NewIndexer creates a new Indexer.
func NewIndexer(client HubClient, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		hub:      client,
		resolver: NewResolver(client),
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Run validates p, resolves the registry and starts indexing it. When
// p.Wait is set it blocks until the hub reports the task finished, the
// timeout elapses, or ctx is done. The returned Result is non-nil whenever
// the index task was triggered, including on timeout and task failure.
func (ix *Indexer) Run(ctx context.Context, p Params) (*Result, error) {
	opts, err := p.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	runID := uuid.NewString()
	log := slog.With("run_id", runID, "registry", opts.Name)
	started := ix.now()

	res, err := ix.run(ctx, log, opts)
	if res != nil {
		res.ElapsedSec = res.Elapsed.Seconds()
	}

	if ix.recorder != nil {
		rec := newRunRecord(runID, opts, started, ix.now(), res, err)
		if recErr := ix.recorder.Record(ctx, rec); recErr != nil {
			log.Warn("failed to record index run", "error", recErr)
		}
	}

	if err != nil {
		log.Error("registry index failed", "error", err)
		return res, err
	}
	log.Info("registry index finished", "task", res.Task, "state", res.State, "polls", res.Polls)
	return res, nil
}

func (ix *Indexer) run(ctx context.Context, log *slog.Logger, opts Options) (*Result, error) {
	if err := ix.hub.Authenticate(ctx); err != nil {
		return nil, err
	}

	serverVersion, err := ix.hub.ServerVersion(ctx)
	if err != nil {
		return nil, err
	}

	resolved, err := ix.resolver.Resolve(ctx, opts.Name, serverVersion)
	if err != nil {
		return nil, err
	}

	task, err := ix.hub.TriggerIndex(ctx, resolved.ID)
	if err != nil {
		return nil, fmt.Errorf("unable to index registry %s: %w", opts.Name, err)
	}

	res := &Result{
		Changed:       true,
		Registry:      resolved.Registry.Name,
		RegistryID:    resolved.ID,
		IDField:       resolved.IDField,
		ServerVersion: serverVersion,
		Task:          task,
	}
	log.Info("registry index started",
		"task", task,
		"id_field", resolved.IDField,
		"server_version", serverVersion,
		"wait", opts.Wait,
	)

	if !opts.Wait {
		return res, nil
	}
	return res, ix.wait(ctx, log, res, opts)
}

// wait polls the index task every opts.Interval until it finishes. With a
// timeout, the last sleep is cut short at the deadline and the wait ends
// without another status request, so polls are never closer than
// opts.Interval. A task that finishes on the poll at the deadline succeeds.
func (ix *Indexer) wait(ctx context.Context, log *slog.Logger, res *Result, opts Options) error {
	started := ix.now()
	for {
		delay := opts.Interval
		atDeadline := false
		if opts.Timeout > 0 {
			if remaining := opts.Timeout - ix.now().Sub(started); remaining < delay {
				delay = max(remaining, 0)
				atDeadline = true
			}
		}

		if err := ix.sleep(ctx, delay); err != nil {
			return fmt.Errorf("waiting for index task %s: %w", res.Task, err)
		}
		if atDeadline {
			res.Elapsed = ix.now().Sub(started)
			return timeoutError(res, opts)
		}

		task, err := ix.hub.GetTask(ctx, res.Task)
		if err != nil {
			return fmt.Errorf("polling index task %s: %w", res.Task, err)
		}
		res.Polls++
		res.State = task.State
		res.Elapsed = ix.now().Sub(started)

		log.Debug("index task status",
			"task", res.Task,
			"state", task.State,
			"polls", res.Polls,
			"elapsed", res.Elapsed.Round(time.Millisecond).String(),
		)

		if task.State.Failed() {
			return &TaskFailedError{
				Registry: res.Registry,
				Task:     res.Task,
				State:    task.State,
				Reason:   task.Reason(),
			}
		}
		if task.State.Finished() {
			return nil
		}
		if opts.Timeout > 0 && res.Elapsed >= opts.Timeout {
			return timeoutError(res, opts)
		}
	}
}

func timeoutError(res *Result, opts Options) *TimeoutError {
	return &TimeoutError{
		Registry:  res.Registry,
		Task:      res.Task,
		Timeout:   opts.Timeout,
		LastState: res.State,
		Polls:     res.Polls,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
