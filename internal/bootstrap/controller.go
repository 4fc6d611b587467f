// Package bootstrap runs a session from its script to its conclusion.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/vburojevic/dedicated/internal/content"
	"github.com/vburojevic/dedicated/internal/domain"
	"github.com/vburojevic/dedicated/internal/engine"
	"github.com/vburojevic/dedicated/internal/launcher"
	"github.com/vburojevic/dedicated/internal/script"
	"github.com/vburojevic/dedicated/internal/seed"
	"github.com/vburojevic/dedicated/internal/supervisor"
)

// Index is a content index the controller owns for one run.
type Index interface {
	content.Index
	io.Closer
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Parser script.Parser
	// OpenIndex is called once per run, after the script parsed; the index
	// is closed when the run ends.
	OpenIndex  func() (Index, error)
	Engine     engine.Engine
	Supervisor supervisor.Options
	Logger     *zap.Logger
}

// Controller orchestrates load, parse, resolve, seed, launch and supervise.
type Controller struct {
	deps   Deps
	logger *zap.Logger
}

// Report describes a completed run.
type Report struct {
	ScriptPath string
	Script     domain.SessionScript
	Descriptor domain.SessionDescriptor
	Result     supervisor.Result
}

// New creates a controller.
func New(deps Deps) *Controller {
	if deps.Parser == nil {
		deps.Parser = script.TextParser{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Controller{deps: deps, logger: deps.Logger}
}

// Run executes the bootstrap and returns the process exit status.
func (c *Controller) Run(ctx context.Context, scriptPath string) ExitStatus {
	_, err := c.Execute(ctx, scriptPath)
	status := StatusOf(err)
	if err != nil {
		c.logger.Error("bootstrap failed",
			zap.String("code", status.Code()),
			zap.Int("exit_status", int(status)),
			zap.Error(err),
		)
	}
	return status
}

// Execute runs every phase, stopping at the first failure. Nothing is
// launched unless the script parsed and both checksums resolved.
func (c *Controller) Execute(ctx context.Context, scriptPath string) (Report, error) {
	report := Report{ScriptPath: scriptPath}

	c.logger.Info("loading script from file", zap.String("path", scriptPath))
	text, err := loadScript(scriptPath)
	if err != nil {
		return report, err
	}

	parsed, err := c.deps.Parser.Parse(text)
	if err != nil {
		return report, fmt.Errorf("failed to load script %s: %w", scriptPath, err)
	}
	report.Script = parsed

	if c.deps.OpenIndex == nil {
		return report, &content.ContentUnavailableError{Name: parsed.MapName, Kind: domain.ContentMap, Err: errors.New("no content index configured")}
	}
	idx, err := c.deps.OpenIndex()
	if err != nil {
		return report, &content.ContentUnavailableError{Name: parsed.MapName, Kind: domain.ContentMap, Err: err}
	}
	defer func() {
		if err := idx.Close(); err != nil {
			c.logger.Warn("closing content index", zap.Error(err))
		}
	}()

	resolver := content.NewResolver(idx, c.logger.Named("content"))
	sums, err := resolver.ResolveAll(ctx, parsed)
	if err != nil {
		return report, err
	}

	randomSeed := seed.ForSession(text, scriptPath)
	desc, err := domain.NewSessionDescriptor(randomSeed, sums.Map, sums.Mod, parsed)
	if err != nil {
		return report, err
	}
	report.Descriptor = desc
	c.logger.Info("session parameters",
		zap.String("map", parsed.MapName),
		zap.String("mod", parsed.ModName),
		zap.String("map_checksum", fmt.Sprintf("%08x", desc.MapChecksum)),
		zap.String("mod_checksum", fmt.Sprintf("%08x", desc.ModChecksum)),
		zap.Uint32("random_seed", desc.RandomSeed),
		zap.Int("participants", parsed.ExpectedParticipants()),
	)

	handle, err := launcher.New(c.deps.Engine, c.logger.Named("launcher")).Launch(ctx, desc, parsed)
	if err != nil {
		return report, err
	}
	defer c.release(handle)

	opts := c.deps.Supervisor
	if opts.Logger == nil {
		opts.Logger = c.logger.Named("supervisor")
	}
	result, err := supervisor.New(handle, parsed, opts).Run(ctx)
	if err != nil {
		return report, err
	}
	report.Result = result
	if result.Outcome == supervisor.OutcomeReadyTimeout {
		return report, fmt.Errorf("%w after %s", ErrReadyTimeout, result.Elapsed)
	}
	return report, nil
}

func (c *Controller) release(h engine.Handle) {
	c.logger.Info("exiting")
	if err := h.Close(); err != nil {
		c.logger.Warn("closing session", zap.Error(err))
	}
	c.logger.Info("exited")
}

func loadScript(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrScriptNotFound, path)
		}
		return "", fmt.Errorf("%w: %s: %v", ErrScriptUnreadable, path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrScriptUnreadable, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrScriptUnreadable, path, err)
	}
	return string(data), nil
}
