package domain

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrUnresolvedChecksum is returned when a descriptor would carry a placeholder checksum.
var ErrUnresolvedChecksum = errors.New("content checksum is unresolved")

// SessionDescriptor is everything the engine needs to host a session.
// Both checksums are resolved before one can be constructed.
type SessionDescriptor struct {
	RandomSeed  uint32
	MapChecksum uint32
	ModChecksum uint32
	ScriptText  string
	HostAddress string
	HostPort    int
}

// NewSessionDescriptor builds a descriptor, rejecting zero checksums.
func NewSessionDescriptor(seed, mapChecksum, modChecksum uint32, script SessionScript) (SessionDescriptor, error) {
	if mapChecksum == 0 {
		return SessionDescriptor{}, fmt.Errorf("map %q: %w", script.MapName, ErrUnresolvedChecksum)
	}
	if modChecksum == 0 {
		return SessionDescriptor{}, fmt.Errorf("mod %q: %w", script.ModName, ErrUnresolvedChecksum)
	}
	return SessionDescriptor{
		RandomSeed:  seed,
		MapChecksum: mapChecksum,
		ModChecksum: modChecksum,
		ScriptText:  script.Text,
		HostAddress: script.HostIP,
		HostPort:    script.HostPort,
	}, nil
}

// Validate reports ErrUnresolvedChecksum for descriptors built without NewSessionDescriptor.
func (d SessionDescriptor) Validate() error {
	if d.MapChecksum == 0 || d.ModChecksum == 0 {
		return ErrUnresolvedChecksum
	}
	return nil
}

// Endpoint returns the host:port the engine binds.
func (d SessionDescriptor) Endpoint() string {
	return net.JoinHostPort(d.HostAddress, strconv.Itoa(d.HostPort))
}
