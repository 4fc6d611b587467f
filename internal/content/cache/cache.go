// Package cache persists bundle checksums in SQLite so unchanged bundles are
// not hashed again on the next start.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vburojevic/dedicated/internal/content/cache/migrations"
	_ "modernc.org/sqlite"
)

const migrationTable = "schema_migrations"

// Key identifies one bundle revision on disk.
type Key struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Store is a SQLite-backed checksum cache.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens (creating if needed) the cache database at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("cache path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Lookup returns the cached checksum for key. A changed size or mtime is a miss.
func (s *Store) Lookup(ctx context.Context, key Key) (uint32, bool, error) {
	var (
		size     int64
		modTime  int64
		checksum int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT size, mod_time, checksum FROM bundle_checksums WHERE path = ?`,
		key.Path,
	).Scan(&size, &modTime, &checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup checksum %s: %w", key.Path, err)
	}
	if size != key.Size || modTime != key.ModTime.UnixNano() {
		return 0, false, nil
	}
	return uint32(checksum), true, nil
}

// Put records the checksum for key, replacing any older revision.
func (s *Store) Put(ctx context.Context, key Key, checksum uint32) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO bundle_checksums (path, size, mod_time, checksum, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
    size = excluded.size,
    mod_time = excluded.mod_time,
    checksum = excluded.checksum,
    updated_at = excluded.updated_at
`, key.Path, key.Size, key.ModTime.UnixNano(), int64(checksum), s.now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("store checksum %s: %w", key.Path, err)
	}
	return nil
}

// applyMigrations executes each embedded .sql file at most once.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, applied_at INTEGER NOT NULL);`, migrationTable)
	if _, err := sqlDB.Exec(createSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var applied int
		if err := sqlDB.QueryRow(`SELECT COUNT(1) FROM `+migrationTable+` WHERE name = ?`, file).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied > 0 {
			continue
		}
		body, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`, file, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}
