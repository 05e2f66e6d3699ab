package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/jerabekjiri/automation-hub-collection/internal/config"
	"github.com/jerabekjiri/automation-hub-collection/internal/hub"
	"github.com/jerabekjiri/automation-hub-collection/internal/module"
	"github.com/jerabekjiri/automation-hub-collection/internal/registry"
	"github.com/jerabekjiri/automation-hub-collection/internal/util"
)

// moduleArgs is the argument spec of the ah_ee_registry_index module,
// including the collection's shared connection options.
var moduleArgs = module.ArgSpec{
	"name":     {Type: module.TypeStr, Required: true},
	"wait":     {Type: module.TypeBool, Default: true},
	"interval": {Type: module.TypeFloat, Default: 1.0},
	"timeout":  {Type: module.TypeInt},

	"ah_host":         {Type: module.TypeStr, Aliases: []string{"ah_hostname"}, EnvFallback: []string{"AH_HOST"}},
	"ah_username":     {Type: module.TypeStr, EnvFallback: []string{"AH_USERNAME"}},
	"ah_password":     {Type: module.TypeStr, NoLog: true, EnvFallback: []string{"AH_PASSWORD"}},
	"ah_token":        {Type: module.TypeStr, NoLog: true, Aliases: []string{"ah_api_token"}, EnvFallback: []string{"AH_API_TOKEN"}},
	"ah_path_prefix":  {Type: module.TypeStr, Default: "galaxy", EnvFallback: []string{"AH_PATH_PREFIX"}},
	"validate_certs":  {Type: module.TypeBool, Default: true, Aliases: []string{"ah_verify_ssl"}, EnvFallback: []string{"AH_VERIFY_SSL"}},
	"request_timeout": {Type: module.TypeFloat, Default: 10.0, EnvFallback: []string{"AH_REQUEST_TIMEOUT"}},
}

func moduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "module",
		Usage:     "Run as an Ansible binary module",
		ArgsUsage: "<args-file>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("module mode expects exactly one arguments file", registry.ExitError)
			}
			code := runModule(c.Context, c.Args().First(), c.App.Writer)
			if code != registry.ExitOK {
				return cli.Exit("", code)
			}
			return nil
		},
	}
}

// runModule executes the module with the arguments in argsPath, writes the
// module result to stdout and returns the process exit code.
func runModule(ctx context.Context, argsPath string, stdout io.Writer) int {
	raw, err := module.ReadArgsFile(argsPath)
	if err != nil {
		return failModule(stdout, err.Error(), err, nil)
	}

	args, err := module.Parse(raw, moduleArgs)
	if err != nil {
		return failModule(stdout, err.Error(), err, nil)
	}
	invocation := map[string]any{"module_args": args.Sanitized(moduleArgs)}

	cfg := moduleConfig(args)
	util.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	hc := cfg.Hub
	if err := hc.Validate(); err != nil {
		return failModule(stdout, err.Error(), err, map[string]any{"invocation": invocation})
	}

	p := registry.Params{
		Name:     args.String("name"),
		Wait:     args.Bool("wait"),
		Interval: args.Float("interval"),
	}
	if timeout, ok := args.Int("timeout"); ok {
		p.Timeout = &timeout
	}

	res, err := indexRegistry(ctx, hc, p, nil)
	fields := resultFields(res)
	fields["invocation"] = invocation
	if err != nil {
		return failModule(stdout, describeError(err, hc), err, fields)
	}
	if err := module.Exit(stdout, res.Changed, fields); err != nil {
		slog.Error("failed to write module result", "error", err)
		return registry.ExitError
	}
	return registry.ExitOK
}

// moduleConfig builds the configuration of a module run from its arguments
// on top of the defaults. Module runs only log warnings and errors.
func moduleConfig(args module.Args) *config.Config {
	cfg := config.Default()
	cfg.Logging.Level = "warn"

	cfg.Hub.Host = args.String("ah_host")
	cfg.Hub.Username = args.String("ah_username")
	cfg.Hub.Password = args.String("ah_password")
	cfg.Hub.Token = args.String("ah_token")
	cfg.Hub.TLS.SkipVerify = !args.Bool("validate_certs")
	if prefix := args.String("ah_path_prefix"); prefix != "" {
		cfg.Hub.PathPrefix = prefix
	}
	if timeout := args.Float("request_timeout"); timeout > 0 {
		cfg.Hub.RequestTimeout = time.Duration(timeout * float64(time.Second))
	}
	return cfg
}

func resultFields(res *registry.Result) map[string]any {
	if res == nil {
		return map[string]any{}
	}
	fields := map[string]any{
		"changed":        res.Changed,
		"registry":       res.Registry,
		"registry_id":    res.RegistryID,
		"id_field":       res.IDField,
		"server_version": res.ServerVersion,
		"task":           res.Task,
		"polls":          res.Polls,
		"elapsed_sec":    res.ElapsedSec,
	}
	if res.State != "" {
		fields["state"] = res.State
	}
	return fields
}

// failModule writes a failed result with msg; err picks the exit code and
// the extra result fields.
func failModule(stdout io.Writer, msg string, err error, fields map[string]any) int {
	code := registry.ExitCode(err)
	if code == registry.ExitOK {
		code = registry.ExitError
	}
	var (
		timeout *registry.TimeoutError
		failed  *registry.TaskFailedError
	)
	if fields == nil {
		fields = map[string]any{}
	}
	switch {
	case errors.As(err, &timeout):
		fields["timed_out"] = true
	case errors.As(err, &failed):
		fields["task_error"] = failed.Reason
	case hub.IsUnauthorized(err):
		fields["unauthorized"] = true
	}
	if werr := module.Fail(stdout, msg, fields); werr != nil {
		slog.Error("failed to write module result", "error", werr)
	}
	return code
}
