package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/jerabekjiri/automation-hub-collection/internal/config"
	"github.com/jerabekjiri/automation-hub-collection/internal/history"
	"github.com/jerabekjiri/automation-hub-collection/internal/metrics"
	"github.com/jerabekjiri/automation-hub-collection/internal/registry"
)

func indexCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "name of the registry to index", Required: true},
		&cli.BoolFlag{Name: "wait", Usage: "wait for the index task to finish (default true)"},
		&cli.Float64Flag{Name: "interval", Usage: "seconds between task status requests (default 1)"},
		&cli.IntFlag{Name: "timeout", Usage: "give up waiting after this many seconds"},
	}
	return &cli.Command{
		Name:   "index",
		Usage:  "Start indexing a registry and optionally wait for it",
		Flags:  append(flags, commonFlags()...),
		Action: runIndex,
	}
}

func runIndex(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), registry.ExitError)
	}

	p := indexParams(c.String("name"), cfg.Index)
	if c.IsSet("wait") {
		p.Wait = c.Bool("wait")
	}
	if c.IsSet("interval") {
		p.Interval = c.Float64("interval")
	}
	if c.IsSet("timeout") {
		timeout := c.Int("timeout")
		p.Timeout = &timeout
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rec *metrics.Recorder
	if cfg.Metrics.Pushgateway != "" {
		rec = metrics.NewRecorder()
	}

	res, runErr := indexRegistry(ctx, cfg.Hub, p, newRecorder(cfg, rec))

	if rec != nil {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := rec.Push(pushCtx, cfg.Metrics.Pushgateway, cfg.Metrics.Job); err != nil {
			slog.Warn("failed to push metrics", "pushgateway", cfg.Metrics.Pushgateway, "error", err)
		}
		cancel()
	}

	if res != nil {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return cli.Exit(err.Error(), registry.ExitError)
		}
	}

	if runErr != nil {
		return cli.Exit(describeError(runErr, cfg.Hub), registry.ExitCode(runErr))
	}
	return nil
}

// newRecorder combines the Prometheus recorder, if any, with the run
// history file configured in metrics.history_file.
func newRecorder(cfg *config.Config, prom *metrics.Recorder) registry.Recorder {
	var recs []registry.Recorder
	if prom != nil {
		recs = append(recs, prom)
	}
	if cfg.Metrics.HistoryFile != "" {
		recs = append(recs, history.NewFileStore(cfg.Metrics.HistoryFile))
	}
	if len(recs) == 0 {
		return nil
	}
	return registry.MultiRecorder(recs...)
}
