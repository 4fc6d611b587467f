package domain

import (
	"encoding/hex"
	"fmt"
)

// DefaultHostPort is used when a script does not name a port.
const DefaultHostPort = 8452

// SessionScript holds the parameters parsed out of a session script.
// It is never modified after parsing.
type SessionScript struct {
	MapName  string   // Map display name
	ModName  string   // Mod (game type) display name
	MapHash  uint32   // Trusted map checksum, 0 when unset
	ModHash  uint32   // Trusted mod checksum, 0 when unset
	HostIP   string   // Address to bind, empty for all interfaces
	HostPort int      // Port to bind
	Players  []string // Expected participant names
	Text     string   // Raw script text
}

// MapRef returns the content reference for the script's map.
func (s SessionScript) MapRef() ContentReference {
	return ContentReference{Name: s.MapName, TrustedChecksum: s.MapHash}
}

// ModRef returns the content reference for the script's mod.
func (s SessionScript) ModRef() ContentReference {
	return ContentReference{Name: s.ModName, TrustedChecksum: s.ModHash}
}

// ExpectedParticipants is the number of connections needed before a session starts.
func (s SessionScript) ExpectedParticipants() int {
	if len(s.Players) == 0 {
		return 1
	}
	return len(s.Players)
}

// SessionID uniquely identifies a running session once it is ready.
type SessionID [16]byte

// String renders the identifier as 32 lowercase hex digits.
func (id SessionID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether no identifier has been assigned.
func (id SessionID) IsZero() bool {
	return id == SessionID{}
}

// SessionStatus is the engine state observed by a single poll.
type SessionStatus int

const (
	StatusNotReady SessionStatus = iota
	StatusReady
	StatusFinished
)

func (s SessionStatus) String() string {
	switch s {
	case StatusNotReady:
		return "not_ready"
	case StatusReady:
		return "ready"
	case StatusFinished:
		return "finished"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// SupervisorState is a state of the supervision state machine.
type SupervisorState int

const (
	StateInitializing SupervisorState = iota
	StateAwaitingReady
	StateRunning
	StateFinished
)

func (s SupervisorState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAwaitingReady:
		return "awaiting_ready"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
