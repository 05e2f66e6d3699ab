// Package metrics exports registry index runs as Prometheus metrics.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/jerabekjiri/automation-hub-collection/internal/registry"
)

const namespace = "ahindex"

// Recorder implements registry.Recorder on a private Prometheus registry.
type Recorder struct {
	reg *prometheus.Registry

	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	polls       *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with its metrics registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Number of registry index runs by outcome",
			},
			[]string{"registry", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of registry index runs, including the wait for the task",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"registry"},
		),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "Number of index task status requests",
			},
			[]string{"registry"},
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful index run",
			},
			[]string{"registry"},
		),
	}
	r.reg.MustRegister(r.runs, r.duration, r.polls, r.lastSuccess)
	return r
}

// Record updates the metrics for a finished run.
func (r *Recorder) Record(_ context.Context, rec *registry.RunRecord) error {
	if rec == nil {
		return fmt.Errorf("nil run record")
	}
	r.runs.WithLabelValues(rec.Registry, rec.Status).Inc()
	r.duration.WithLabelValues(rec.Registry).Observe(rec.DurationSec)
	if rec.Polls > 0 {
		r.polls.WithLabelValues(rec.Registry).Add(float64(rec.Polls))
	}
	if rec.Status == registry.StatusSuccess {
		r.lastSuccess.WithLabelValues(rec.Registry).Set(float64(rec.CompletedAt.Unix()))
	}
	return nil
}

// Handler serves the recorded metrics in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Push sends the current metrics to a Pushgateway under the given job name.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}

var _ registry.Recorder = (*Recorder)(nil)
