// Package script parses session scripts into session parameters.
package script

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vburojevic/dedicated/internal/domain"
)

// ErrInvalidScript is wrapped by every structural parse failure.
var ErrInvalidScript = errors.New("invalid script")

// Parser turns raw script text into a SessionScript.
type Parser interface {
	Parse(text string) (domain.SessionScript, error)
}

// TextParser parses the bracketed section format.
type TextParser struct{}

// Parse implements Parser.
func (TextParser) Parse(text string) (domain.SessionScript, error) {
	return Parse(text)
}

// Parse reads the [GAME] section of a script.
func Parse(text string) (domain.SessionScript, error) {
	root, err := parseSections(text)
	if err != nil {
		return domain.SessionScript{}, err
	}
	game := root.Child("game")
	if game == nil {
		return domain.SessionScript{}, fmt.Errorf("%w: missing [GAME] section", ErrInvalidScript)
	}

	s := domain.SessionScript{Text: text, HostPort: domain.DefaultHostPort}

	var ok bool
	if s.MapName, ok = game.Get("MapName"); !ok || s.MapName == "" {
		return domain.SessionScript{}, fmt.Errorf("%w: [GAME] has no MapName", ErrInvalidScript)
	}
	if s.ModName, ok = game.Get("GameType"); !ok || s.ModName == "" {
		return domain.SessionScript{}, fmt.Errorf("%w: [GAME] has no GameType", ErrInvalidScript)
	}
	if s.MapHash, err = hashValue(game, "MapHash"); err != nil {
		return domain.SessionScript{}, err
	}
	if s.ModHash, err = hashValue(game, "ModHash"); err != nil {
		return domain.SessionScript{}, err
	}

	s.HostIP, _ = game.Get("HostIP")
	if raw, ok := game.Get("HostPort"); ok && raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port < 0 || port > 65535 {
			return domain.SessionScript{}, fmt.Errorf("%w: HostPort %q is not a port number", ErrInvalidScript, raw)
		}
		s.HostPort = port
	}

	for i, p := range game.ChildrenWithPrefix("player") {
		name, _ := p.Get("Name")
		if name == "" {
			name = fmt.Sprintf("player%d", i)
		}
		s.Players = append(s.Players, name)
	}

	return s, nil
}

// hashValue parses an optional unsigned 32-bit checksum (decimal or 0x hex).
// Negative decimals are accepted as their two's complement, as older lobbies emit them.
func hashValue(sec *Section, key string) (uint32, error) {
	raw, ok := sec.Get(key)
	if !ok || raw == "" {
		return 0, nil
	}
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		v, err := strconv.ParseUint(raw[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %s %q is not a 32-bit checksum", ErrInvalidScript, key, raw)
		}
		return uint32(v), nil
	}
	if strings.HasPrefix(raw, "-") {
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %s %q is not a 32-bit checksum", ErrInvalidScript, key, raw)
		}
		return uint32(int32(v)), nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a 32-bit checksum", ErrInvalidScript, key, raw)
	}
	return uint32(v), nil
}
