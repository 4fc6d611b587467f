package cli

import (
	"encoding/json"
	"errors"
	"fmt"
)

// errorRecord is the NDJSON shape of a command failure.
type errorRecord struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// outputErrorCommon normalizes error emission across commands, respecting
// json vs console formats so supervisors parsing our output get coded failures.
func outputErrorCommon(globals *Globals, code, message string, hint ...string) error {
	h := ""
	if len(hint) > 0 {
		h = hint[0]
	}
	if globals != nil && globals.Format == "json" {
		_ = json.NewEncoder(globals.Stdout).Encode(errorRecord{Type: "error", Code: code, Message: message, Hint: h})
	} else if globals != nil {
		fmt.Fprintf(globals.Stderr, "Error [%s]: %s", code, message)
		if h != "" {
			fmt.Fprintf(globals.Stderr, " (hint: %s)", h)
		}
		fmt.Fprintln(globals.Stderr)
	}
	return errors.New(message)
}

// exitWith reports an error and wraps it with the exit code main should use.
func exitWith(globals *Globals, status int, code, message string, hint ...string) error {
	return &ExitError{Code: status, Err: outputErrorCommon(globals, code, message, hint...)}
}
