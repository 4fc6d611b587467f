// Package replay writes the NDJSON replay artifact of a session.
package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vburojevic/dedicated/internal/domain"
)

// Extension is appended to every replay file name.
const Extension = ".replay.ndjson"

// Recorder appends records to one replay file. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	name   string
	file   *os.File
	writer *bufio.Writer
	enc    *json.Encoder
	closed bool
}

// FileName builds the artifact name for a session started at ts.
func FileName(ts time.Time, mapName string, id domain.SessionID) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, mapName)
	return fmt.Sprintf("%s_%s_%s%s", ts.UTC().Format("20060102_150405"), clean, id.String()[:8], Extension)
}

// Create opens a new replay in dir and writes its header.
func Create(dir string, header domain.ReplayHeader, id domain.SessionID, started time.Time) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create replay dir: %w", err)
	}
	name := FileName(started, header.MapName, id)
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("create replay file: %w", err)
	}
	w := bufio.NewWriter(f)
	r := &Recorder{name: name, file: f, writer: w, enc: json.NewEncoder(w)}

	header.Type = "header"
	header.SchemaVersion = domain.ReplaySchemaVersion
	header.SessionID = id.String()
	header.StartedAt = started.UTC().Format(time.RFC3339)
	if err := r.Record(header); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Name is the replay file name without its directory.
func (r *Recorder) Name() string {
	return r.name
}

// Record appends one record and flushes it to disk.
func (r *Recorder) Record(v interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("replay %s is closed", r.name)
	}
	if err := r.enc.Encode(v); err != nil {
		return fmt.Errorf("write replay record: %w", err)
	}
	return r.writer.Flush()
}

// Close writes the end record and closes the file. Later calls are no-ops.
func (r *Recorder) Close(end *domain.ReplayEnd) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	var firstErr error
	if end != nil {
		if err := r.enc.Encode(end); err != nil {
			firstErr = fmt.Errorf("write replay end: %w", err)
		}
	}
	if err := r.writer.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
