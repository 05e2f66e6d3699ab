package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
)

// moduleName is the name Ansible installs the binary under in a
// collection's plugins/modules directory.
const moduleName = "ah_ee_registry_index"

var version = "dev"

func main() {
	app := newApp()

	args := os.Args
	// Ansible runs binary modules as "<module> <args-file>".
	if strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])) == moduleName {
		args = append([]string{args[0], "module"}, args[1:]...)
	}

	if err := app.Run(args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "ah-ee-registry-index",
		Usage:          "Index execution environment registries on Automation Hub",
		Version:        version,
		DefaultCommand: "index",
		Commands: []*cli.Command{
			indexCommand(),
			moduleCommand(),
			scheduleCommand(),
			historyCommand(),
		},
	}
}
