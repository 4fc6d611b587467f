package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vburojevic/dedicated/internal/config"
)

// Version information, set via ldflags
var (
	Version = "dev"
	Commit  = "none"
)

// CLI is the root command structure
type CLI struct {
	ConfigFile   string `name:"config" short:"C" help:"Use this configuration file exclusively" placeholder:"FILE"`
	Format       string `enum:"console,json" default:"${config_format}" help:"Output format: console or json"`
	Level        string `enum:"debug,info,warn,error" default:"${config_level}" help:"Minimum log level"`
	NoColor      bool   `name:"nocolor" help:"Disable colorized output"`
	Isolation    bool   `short:"i" help:"Limit content scanning to the data directory"`
	IsolationDir string `help:"Limit content scanning to this directory" placeholder:"DIR"`
	Verbose      bool   `short:"v" help:"Enable debug logging"`

	Run            RunCmd            `cmd:"" default:"withargs" help:"Host the session described by a script"`
	Bundles        BundlesCmd        `cmd:"" help:"List maps and mods in the data directories"`
	Version        VersionCmd        `cmd:"" help:"Show version information"`
	SyncVersion    SyncVersionCmd    `cmd:"" name:"sync-version" help:"Show the session protocol version"`
	ListConfigVars ListConfigVarsCmd `cmd:"" name:"list-config-vars" help:"List configuration keys with defaults and environment variables"`
	Config         ConfigCmd         `cmd:"" help:"Inspect configuration"`
}

// Globals holds global flags and settings shared by every command
type Globals struct {
	Format  string
	Level   string
	NoColor bool
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config
}

// NewGlobalsWithConfig creates Globals with flag values layered over the loaded config
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}

	cfg.Format = c.Format
	cfg.Level = c.Level
	if c.Verbose {
		cfg.Level = "debug"
	}
	cfg.NoColor = cfg.NoColor || c.NoColor
	cfg.Isolation = cfg.Isolation || c.Isolation
	if c.IsolationDir != "" {
		cfg.IsolationDir = c.IsolationDir
	}

	return &Globals{
		Format:  cfg.Format,
		Level:   cfg.Level,
		NoColor: cfg.NoColor,
		Verbose: c.Verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
	}
}

// ConfigPathFromArgs finds the value of -C/--config before kong parses the
// command line, so the file can supply flag defaults.
func ConfigPathFromArgs(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return ""
		case arg == "-C" || arg == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "-C") && len(arg) > 2:
			return strings.TrimPrefix(strings.TrimPrefix(arg, "-C"), "=")
		}
	}
	return ""
}

// ExitError carries a process exit code back to main.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }
