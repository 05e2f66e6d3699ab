package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"github.com/jerabekjiri/automation-hub-collection/internal/config"
	"github.com/jerabekjiri/automation-hub-collection/internal/metrics"
	"github.com/jerabekjiri/automation-hub-collection/internal/registry"
)

func scheduleCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "cron", Usage: "cron expression, overrides schedule.cron"},
		&cli.StringSliceFlag{Name: "registry", Usage: "registry to index, overrides schedule.registries (repeatable)"},
		&cli.BoolFlag{Name: "once", Usage: "index every registry once and exit (ignore schedule)"},
		&cli.StringFlag{Name: "metrics-listen", Usage: "address to serve /metrics on, overrides metrics.listen"},
	}
	return &cli.Command{
		Name:   "schedule",
		Usage:  "Index registries on a cron schedule",
		Flags:  append(flags, commonFlags()...),
		Action: runSchedule,
	}
}

func runSchedule(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), registry.ExitError)
	}
	if c.IsSet("cron") {
		cfg.Schedule.Cron = c.String("cron")
	}
	if c.IsSet("registry") {
		cfg.Schedule.Registries = c.StringSlice("registry")
	}
	if c.IsSet("metrics-listen") {
		cfg.Metrics.Listen = c.String("metrics-listen")
	}
	if len(cfg.Schedule.Registries) == 0 {
		return cli.Exit("no registries to index: set schedule.registries or --registry", registry.ExitError)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := metrics.NewRecorder()
	s := &scheduler{cfg: cfg, rec: newRecorder(cfg, rec)}

	if c.Bool("once") {
		if failed := s.runAll(ctx); failed > 0 {
			return cli.Exit(fmt.Sprintf("%d of %d registries failed to index", failed, len(cfg.Schedule.Registries)), registry.ExitError)
		}
		slog.Info("registry indexing completed, exiting")
		return nil
	}

	if cfg.Schedule.Cron == "" {
		return cli.Exit("schedule.cron is required unless --once is set", registry.ExitError)
	}

	cr := newCron()
	if _, err := cr.AddFunc(cfg.Schedule.Cron, func() { s.runAll(ctx) }); err != nil {
		return cli.Exit(fmt.Sprintf("invalid cron schedule %q: %v", cfg.Schedule.Cron, err), registry.ExitError)
	}

	var server *http.Server
	if cfg.Metrics.Listen != "" {
		server = newMetricsServer(cfg.Metrics.Listen, rec)
		go func() {
			slog.Info("metrics listening", "addr", cfg.Metrics.Listen)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
				stop()
			}
		}()
	}

	cr.Start()
	slog.Info("index scheduler started",
		"schedule", cfg.Schedule.Cron,
		"registries", cfg.Schedule.Registries,
		"host", cfg.Hub.Host,
	)

	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop waits for running jobs, which return once ctx is canceled.
	<-cr.Stop().Done()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}
	slog.Info("index scheduler stopped")
	return nil
}

// newCron creates a scheduler that skips a tick while the previous run is
// still going. Its log lines go through slog to stderr.
func newCron() *cron.Cron {
	logger := cronLogger(slog.Default().Handler())
	return cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.SkipIfStillRunning(logger)),
	)
}

func cronLogger(h slog.Handler) cron.Logger {
	return cron.VerbosePrintfLogger(slog.NewLogLogger(h, slog.LevelInfo))
}

type scheduler struct {
	cfg *config.Config
	rec registry.Recorder
}

// runAll indexes every configured registry in order and returns how many
// of them failed.
func (s *scheduler) runAll(ctx context.Context) int {
	failed := 0
	for _, name := range s.cfg.Schedule.Registries {
		if ctx.Err() != nil {
			return failed
		}
		// Errors are logged and recorded by the indexer.
		if _, err := indexRegistry(ctx, s.cfg.Hub, indexParams(name, s.cfg.Index), s.rec); err != nil {
			failed++
		}
	}
	return failed
}

func newMetricsServer(addr string, rec *metrics.Recorder) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
