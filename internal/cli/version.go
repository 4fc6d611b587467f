package cli

import (
	"encoding/json"
	"fmt"

	"github.com/vburojevic/dedicated/internal/domain"
	"github.com/vburojevic/dedicated/internal/engine"
)

// VersionCmd shows version information
type VersionCmd struct{}

// VersionOutput represents the NDJSON output for version
type VersionOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	SyncVersion   string `json:"sync_version"`
}

// Run executes the version command
func (c *VersionCmd) Run(globals *Globals) error {
	if globals.Format == "json" {
		return json.NewEncoder(globals.Stdout).Encode(VersionOutput{
			Type:          "version",
			SchemaVersion: domain.ReplaySchemaVersion,
			Version:       Version,
			Commit:        Commit,
			SyncVersion:   engine.SyncVersion,
		})
	}
	fmt.Fprintf(globals.Stdout, "dedicated version %s (%s), protocol %s\n", Version, Commit, engine.SyncVersion)
	return nil
}

// SyncVersionCmd prints the session protocol version alone, for scripts
// that match server and client builds.
type SyncVersionCmd struct{}

// Run executes the sync-version command
func (c *SyncVersionCmd) Run(globals *Globals) error {
	if globals.Format == "json" {
		return json.NewEncoder(globals.Stdout).Encode(map[string]string{
			"type":         "sync_version",
			"sync_version": engine.SyncVersion,
		})
	}
	fmt.Fprintln(globals.Stdout, engine.SyncVersion)
	return nil
}
