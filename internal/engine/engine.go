// Package engine hosts the authoritative session that participants connect to.
package engine

import (
	"context"

	"github.com/vburojevic/dedicated/internal/domain"
)

// SyncVersion identifies the session protocol advertised in the greeting.
const SyncVersion = "1"

// Engine starts sessions. Start returns once the endpoint is bound; the
// session itself runs in the background.
type Engine interface {
	Start(ctx context.Context, desc domain.SessionDescriptor, script domain.SessionScript) (Handle, error)
}

// Handle is a running session. Queries are safe to call concurrently with
// the session's own activity.
type Handle interface {
	// IsReady reports whether a session ID has been assigned.
	IsReady() bool
	// IsFinished reports whether the session has ended, normally or not.
	IsFinished() bool
	// Status reads readiness and completion in one consistent snapshot.
	Status() domain.SessionStatus
	// SessionID is valid once ready.
	SessionID() domain.SessionID
	// ReplayArtifactName is the replay file name, empty before ready.
	ReplayArtifactName() string
	// Close stops the session and releases its resources.
	Close() error
}
