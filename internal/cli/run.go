package cli

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vburojevic/dedicated/internal/bootstrap"
	"github.com/vburojevic/dedicated/internal/config"
	"github.com/vburojevic/dedicated/internal/content/archive"
	"github.com/vburojevic/dedicated/internal/content/cache"
	"github.com/vburojevic/dedicated/internal/engine"
	"github.com/vburojevic/dedicated/internal/script"
	"github.com/vburojevic/dedicated/internal/supervisor"
)

// RunCmd hosts one session described by a script file
type RunCmd struct {
	Script       string        `arg:"" help:"Path to the session script" placeholder:"SCRIPT"`
	PollInterval time.Duration `default:"${config_poll_interval}" help:"Pause between session status polls"`
	MaxReadyWait time.Duration `default:"${config_max_ready_wait}" help:"Give up if the session is not ready after this long (0 waits forever)"`
}

// sessionSummary is the json-format record written after a completed run.
type sessionSummary struct {
	Type      string `json:"type"`
	Script    string `json:"script"`
	Outcome   string `json:"outcome"`
	SessionID string `json:"session_id,omitempty"`
	Replay    string `json:"replay,omitempty"`
	Polls     int    `json:"polls"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// Run executes the run command
func (c *RunCmd) Run(globals *Globals) error {
	if err := validateFlags(globals); err != nil {
		return &ExitError{Code: int(bootstrap.ExitUsage), Err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	logger, err := NewLogger(globals)
	if err != nil {
		return exitWith(globals, int(bootstrap.ExitUsage), "INVALID_LEVEL", err.Error(), "use one of debug, info, warn, error")
	}
	defer func() { _ = logger.Sync() }()

	ctrl := c.controller(globals.Config, logger)
	report, err := ctrl.Execute(ctx, c.Script)
	if err != nil {
		status := bootstrap.StatusOf(err)
		logger.Debug("bootstrap failed", zap.String("code", status.Code()), zap.Error(err))
		return exitWith(globals, int(status), status.Code(), err.Error(), hintFor(status, globals.Config))
	}

	if globals.Format == "json" {
		summary := sessionSummary{
			Type:      "session",
			Script:    report.ScriptPath,
			Outcome:   report.Result.Outcome.String(),
			Polls:     report.Result.Polls,
			ElapsedMs: report.Result.Elapsed.Milliseconds(),
		}
		if !report.Result.SessionID.IsZero() {
			summary.SessionID = report.Result.SessionID.String()
		}
		if report.Result.Running != nil {
			summary.Replay = report.Result.Running.ReplayName
		}
		return json.NewEncoder(globals.Stdout).Encode(summary)
	}
	return nil
}

func (c *RunCmd) controller(cfg *config.Config, logger *zap.Logger) *bootstrap.Controller {
	srv := engine.NewServer(engine.Options{
		ConnectTimeout: cfg.Engine.ConnectTimeout,
		ReplayDir:      cfg.ReplayPath(),
		Logger:         logger.Named("engine"),
	})
	return bootstrap.New(bootstrap.Deps{
		Parser: script.TextParser{},
		OpenIndex: func() (bootstrap.Index, error) {
			idx, err := openContentIndex(cfg, logger.Named("content"))
			if err != nil {
				return nil, err
			}
			return idx, nil
		},
		Engine: srv,
		Supervisor: supervisor.Options{
			PollInterval: c.PollInterval,
			MaxReadyWait: c.MaxReadyWait,
			Logger:       logger.Named("supervisor"),
		},
		Logger: logger.Named("bootstrap"),
	})
}

// openContentIndex scans the configured data directories. A checksum cache that
// cannot be opened is skipped; checksums are then computed on every run.
func openContentIndex(cfg *config.Config, logger *zap.Logger) (*archive.Index, error) {
	var store *cache.Store
	if path := cfg.CachePath(); path != "" {
		err := os.MkdirAll(filepath.Dir(path), 0o755)
		if err == nil {
			store, err = cache.Open(path)
		}
		if err != nil {
			logger.Warn("checksum cache disabled", zap.String("path", path), zap.Error(err))
			store = nil
		}
	}

	idx, err := archive.Open(archive.Options{
		DataDirs: cfg.ContentDirs(),
		Cache:    store,
		Logger:   logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return idx, nil
}

func hintFor(status bootstrap.ExitStatus, cfg *config.Config) string {
	switch status {
	case bootstrap.ExitScriptNotFound:
		return "check the script path"
	case bootstrap.ExitScriptInvalid:
		return "the [GAME] section needs MapName and GameType"
	case bootstrap.ExitContentUnavailable:
		return "place the bundle under " + filepath.Join(cfg.ContentDirs()[0], archive.MapsDir) + " or " + filepath.Join(cfg.ContentDirs()[0], archive.GamesDir)
	case bootstrap.ExitLaunchFailed:
		return "check that the host address is free"
	case bootstrap.ExitReadyTimeout:
		return "raise supervisor.max_ready_wait or set it to 0"
	default:
		return ""
	}
}
