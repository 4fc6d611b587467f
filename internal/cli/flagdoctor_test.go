package cli

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vburojevic/dedicated/internal/config"
)

func TestValidateFlags(t *testing.T) {
	newGlobals := func(mutate func(*config.Config)) *Globals {
		cfg := config.Default()
		cfg.DataDir = t.TempDir()
		mutate(cfg)
		return &Globals{Format: "console", Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}, Config: cfg}
	}

	require.NoError(t, validateFlags(newGlobals(func(*config.Config) {})))

	globals := newGlobals(func(c *config.Config) { c.IsolationDir = filepath.Join(t.TempDir(), "missing") })
	require.Error(t, validateFlags(globals))
	require.Contains(t, globals.Stderr.(*bytes.Buffer).String(), "Error [INVALID_FLAGS]")

	globals = newGlobals(func(c *config.Config) { c.Isolation = true; c.DataDir = "" })
	require.Error(t, validateFlags(globals))

	globals = newGlobals(func(c *config.Config) { c.Supervisor.PollInterval = -time.Second })
	require.Error(t, validateFlags(globals))
	require.Contains(t, globals.Stderr.(*bytes.Buffer).String(), "Error [INVALID_CONFIG]")
}
