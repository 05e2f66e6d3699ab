package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/jerabekjiri/automation-hub-collection/internal/config"
	"github.com/jerabekjiri/automation-hub-collection/internal/hub"
	"github.com/jerabekjiri/automation-hub-collection/internal/registry"
	"github.com/jerabekjiri/automation-hub-collection/internal/util"
)

// commonFlags are shared by the index and schedule commands. Set flags
// override the config file and the AH_* environment.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to configuration file"},
		&cli.StringFlag{Name: "host", Usage: "Automation Hub URL, e.g. https://hub.example.com"},
		&cli.StringFlag{Name: "username", Usage: "user for session login"},
		&cli.StringFlag{Name: "password", Usage: "password for session login"},
		&cli.StringFlag{Name: "token", Usage: "API token, used instead of username and password"},
		&cli.StringFlag{Name: "path-prefix", Usage: "API path prefix (default \"galaxy\")"},
		&cli.BoolFlag{Name: "skip-verify", Usage: "do not verify the hub TLS certificate"},
		&cli.StringFlag{Name: "ca-cert", Usage: "PEM file with the CA bundle for the hub"},
		&cli.DurationFlag{Name: "request-timeout", Usage: "timeout of a single HTTP request (default 10s)"},
		&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
	}
}

// loadConfig loads the configuration, applies command line overrides and
// sets up logging.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if c.IsSet("host") {
		cfg.Hub.Host = c.String("host")
	}
	if c.IsSet("username") {
		cfg.Hub.Username = c.String("username")
	}
	if c.IsSet("password") {
		cfg.Hub.Password = c.String("password")
	}
	if c.IsSet("token") {
		cfg.Hub.Token = c.String("token")
	}
	if c.IsSet("path-prefix") {
		cfg.Hub.PathPrefix = c.String("path-prefix")
	}
	if c.IsSet("skip-verify") {
		cfg.Hub.TLS.SkipVerify = c.Bool("skip-verify")
	}
	if c.IsSet("ca-cert") {
		cfg.Hub.TLS.CACert = c.String("ca-cert")
	}
	if c.IsSet("request-timeout") {
		cfg.Hub.RequestTimeout = c.Duration("request-timeout")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}

	util.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Hub.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// indexRegistry runs one index flow against the configured hub. Every run
// gets its own HTTP client so UI sessions are never shared.
func indexRegistry(ctx context.Context, hc config.HubConfig, p registry.Params, rec registry.Recorder) (*registry.Result, error) {
	httpClient, err := util.NewHTTPClient(hc.TLS, hc.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP client: %w", err)
	}

	auth := "session"
	if hc.Token != "" {
		auth = "token"
	}
	slog.Debug("connecting to automation hub", "api_root", hc.APIRoot(), "auth", auth)

	client := hub.NewClient(hc.Host, hc.PathPrefix, hub.Credentials{
		Username: hc.Username,
		Password: hc.Password,
		Token:    hc.Token,
	}, httpClient)
	defer func() {
		logoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Logout(logoutCtx); err != nil {
			slog.Warn("failed to close hub session", "host", hc.Host, "error", err)
		}
	}()

	var opts []registry.IndexerOption
	if rec != nil {
		opts = append(opts, registry.WithRecorder(rec))
	}
	return registry.NewIndexer(client, opts...).Run(ctx, p)
}

// describeError renders a run error for the user. Rejected credentials get a
// hint naming the host, since the raw error only shows the probed URL.
func describeError(err error, hc config.HubConfig) string {
	if hub.IsUnauthorized(err) {
		return fmt.Sprintf("Automation Hub at %s rejected the credentials: %v", hc.Host, err)
	}
	return err.Error()
}

// indexParams builds the parameters of a scheduled run from the config.
func indexParams(name string, ic config.IndexConfig) registry.Params {
	p := registry.Params{
		Name:     name,
		Wait:     ic.Wait,
		Interval: ic.Interval,
	}
	if ic.Timeout > 0 {
		timeout := ic.Timeout
		p.Timeout = &timeout
	}
	return p
}
