package cli

import (
	"os"
)

// validateFlags centralizes checks on flag and config combinations before a run.
func validateFlags(globals *Globals) error {
	cfg := globals.Config
	if cfg.IsolationDir != "" {
		info, err := os.Stat(cfg.IsolationDir)
		if err != nil || !info.IsDir() {
			return outputErrorCommon(globals, "INVALID_FLAGS", "isolation directory does not exist: "+cfg.IsolationDir, "point --isolation-dir at an existing data directory")
		}
	}
	if cfg.Isolation && cfg.IsolationDir == "" && cfg.DataDir == "" {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--isolation requires a data directory", "set data_dir or use --isolation-dir")
	}
	if err := cfg.Validate(); err != nil {
		return outputErrorCommon(globals, "INVALID_CONFIG", err.Error(), "run 'dedicated config show' to inspect the effective configuration")
	}
	return nil
}
