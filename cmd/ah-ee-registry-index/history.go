package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/jerabekjiri/automation-hub-collection/internal/config"
	"github.com/jerabekjiri/automation-hub-collection/internal/history"
	"github.com/jerabekjiri/automation-hub-collection/internal/registry"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recorded index runs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to configuration file"},
			&cli.StringFlag{Name: "file", Usage: "history file, overrides metrics.history_file"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "only show runs of this registry"},
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "number of most recent runs to show, 0 for all"},
		},
		Action: runHistory,
	}
}

func runHistory(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load configuration: %v", err), registry.ExitError)
	}
	path := cfg.Metrics.HistoryFile
	if c.IsSet("file") {
		path = c.String("file")
	}
	if path == "" {
		return cli.Exit("no history file: set metrics.history_file or --file", registry.ExitError)
	}

	records, err := history.NewFileStore(path).Load(c.String("name"), c.Int("limit"))
	if err != nil {
		return cli.Exit(err.Error(), registry.ExitError)
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COMPLETED\tREGISTRY\tSTATUS\tTASK\tSTATE\tPOLLS\tDURATION")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.1fs\n",
			rec.CompletedAt.Format("2006-01-02 15:04:05"),
			rec.Registry, rec.Status, dash(rec.Task), dash(rec.State), rec.Polls, rec.DurationSec)
	}
	return w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
