package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/vburojevic/dedicated/internal/cli"
	"github.com/vburojevic/dedicated/internal/config"
)

const quickStart = `dedicated - headless host for scripted multiplayer sessions

Quick start:
  dedicated path/to/script.txt          Host the session described by a script
  dedicated list-config-vars            Show configuration keys and environment variables

For help:
  dedicated --help                      All commands and flags
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		os.Exit(1)
	}

	// Load configuration from files/environment; -C replaces the search path
	var (
		cfg *config.Config
		err error
	)
	if path := cli.ConfigPathFromArgs(os.Args[1:]); path != "" {
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error [INVALID_CONFIG]: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
			cfg = config.Default()
		}
	}

	var c cli.CLI

	// Apply config defaults before parsing
	// These will be overridden by CLI flags if specified
	vars := kong.Vars{
		"config_format":         cfg.Format,
		"config_level":          cfg.Level,
		"config_poll_interval":  cfg.Supervisor.PollInterval.String(),
		"config_max_ready_wait": cfg.Supervisor.MaxReadyWait.String(),
	}

	ctx := kong.Parse(&c,
		kong.Name("dedicated"),
		kong.Description("Headless bootstrap and supervision of a scripted multiplayer session"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	// Create globals with config fallbacks
	globals := cli.NewGlobalsWithConfig(&c, cfg)
	err = ctx.Run(globals)
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
