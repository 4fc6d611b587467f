// Package launcher starts a session engine from a fully resolved descriptor.
package launcher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vburojevic/dedicated/internal/domain"
	"github.com/vburojevic/dedicated/internal/engine"
)

// ErrLaunchFailed is matched by every launch failure.
var ErrLaunchFailed = errors.New("launch failed")

// LaunchFailedError carries the reason the engine could not start.
type LaunchFailedError struct {
	Endpoint string
	Err      error
}

func (e *LaunchFailedError) Error() string {
	return fmt.Sprintf("launch on %s failed: %v", e.Endpoint, e.Err)
}

func (e *LaunchFailedError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrLaunchFailed.
func (e *LaunchFailedError) Is(target error) bool {
	return target == ErrLaunchFailed
}

// Launcher hands descriptors to an engine.
type Launcher struct {
	engine engine.Engine
	logger *zap.Logger
}

// New creates a launcher for eng.
func New(eng engine.Engine, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{engine: eng, logger: logger}
}

// Launch starts the engine without waiting for the session to become ready.
// Descriptors with placeholder checksums never reach the engine.
func (l *Launcher) Launch(ctx context.Context, desc domain.SessionDescriptor, script domain.SessionScript) (engine.Handle, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	l.logger.Info("starting server...",
		zap.String("endpoint", desc.Endpoint()),
		zap.Uint32("random_seed", desc.RandomSeed),
		zap.String("map_checksum", fmt.Sprintf("%08x", desc.MapChecksum)),
		zap.String("mod_checksum", fmt.Sprintf("%08x", desc.ModChecksum)),
	)
	h, err := l.engine.Start(ctx, desc, script)
	if err != nil {
		return nil, &LaunchFailedError{Endpoint: desc.Endpoint(), Err: err}
	}
	if h == nil {
		return nil, &LaunchFailedError{Endpoint: desc.Endpoint(), Err: errors.New("engine returned no handle")}
	}
	l.logger.Info("server started", zap.String("endpoint", desc.Endpoint()))
	return h, nil
}
