package bootstrap

import (
	"context"
	"errors"

	"github.com/vburojevic/dedicated/internal/content"
	"github.com/vburojevic/dedicated/internal/launcher"
	"github.com/vburojevic/dedicated/internal/script"
	"github.com/vburojevic/dedicated/internal/supervisor"
)

var (
	// ErrScriptNotFound means no file exists at the script path.
	ErrScriptNotFound = errors.New("script does not exist in given location")
	// ErrScriptUnreadable means the script exists but could not be read.
	ErrScriptUnreadable = errors.New("script cannot be read")
	// ErrReadyTimeout means the configured ready wait elapsed.
	ErrReadyTimeout = errors.New("session did not become ready in time")
)

// ExitStatus is the process exit code of a bootstrap run.
type ExitStatus int

const (
	ExitOK                 ExitStatus = 0
	ExitUsage              ExitStatus = 1
	ExitScriptNotFound     ExitStatus = 2
	ExitScriptUnreadable   ExitStatus = 3
	ExitScriptInvalid      ExitStatus = 4
	ExitContentUnavailable ExitStatus = 5
	ExitLaunchFailed       ExitStatus = 6
	ExitReadyTimeout       ExitStatus = 7
	ExitInterrupted        ExitStatus = 130
)

// Code is a short machine-readable name for the status.
func (s ExitStatus) Code() string {
	switch s {
	case ExitOK:
		return "OK"
	case ExitUsage:
		return "USAGE"
	case ExitScriptNotFound:
		return "SCRIPT_NOT_FOUND"
	case ExitScriptUnreadable:
		return "SCRIPT_UNREADABLE"
	case ExitScriptInvalid:
		return "SCRIPT_INVALID"
	case ExitContentUnavailable:
		return "CONTENT_UNAVAILABLE"
	case ExitLaunchFailed:
		return "LAUNCH_FAILED"
	case ExitReadyTimeout:
		return "READY_TIMEOUT"
	case ExitInterrupted:
		return "INTERRUPTED"
	default:
		return "UNKNOWN"
	}
}

// StatusOf maps a bootstrap error to its exit status.
func StatusOf(err error) ExitStatus {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrScriptNotFound):
		return ExitScriptNotFound
	case errors.Is(err, ErrScriptUnreadable):
		return ExitScriptUnreadable
	case errors.Is(err, script.ErrInvalidScript):
		return ExitScriptInvalid
	case errors.Is(err, content.ErrContentUnavailable):
		return ExitContentUnavailable
	case errors.Is(err, launcher.ErrLaunchFailed):
		return ExitLaunchFailed
	case errors.Is(err, ErrReadyTimeout):
		return ExitReadyTimeout
	case errors.Is(err, supervisor.ErrCancelled), errors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitUsage
	}
}
