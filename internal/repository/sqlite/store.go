// Package sqlite implements the repository stores on an embedded SQLite file
// through modernc.org/sqlite. Instants are stored as unix milliseconds.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hray3182/workoutbot/internal/repository"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Open opens (creating if needed) the database file at path and applies the
// schema.
func Open(ctx context.Context, path string) (*repository.Stores, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &repository.Stores{
		Users:       &users{db: db},
		Reminders:   &reminders{db: db},
		Completions: &completions{db: db},
		Summaries:   &summaries{db: db},
		Close:       func() { _ = db.Close() },
	}, nil
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// nullMillis scans MIN() over an empty set.
func nullMillis(v sql.NullInt64) (time.Time, bool) {
	if !v.Valid {
		return time.Time{}, false
	}
	return fromMillis(v.Int64), true
}
