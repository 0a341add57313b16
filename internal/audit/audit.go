// Package audit persists a log of download activity in a local SQLite
// database. Recording is best-effort from the server's point of view: a
// failed insert is logged by the caller and never fails the download itself.
package audit

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations
var migrationsFS embed.FS

// Modes recorded for a download, matching the two response paths of the
// download handler.
const (
	ModePresigned = "presigned"
	ModeStreamed  = "streamed"
)

// Entry is a single recorded download.
type Entry struct {
	Key        string
	Mode       string
	RemoteAddr string
	CreatedAt  time.Time
}

// Log is a SQLite-backed download log.
type Log struct {
	db *sql.DB
}

// initSchema applies all SQL files in the embedded migrations directory in
// lexicographical order.
func initSchema(ctx context.Context, db *sql.DB) error {
	return fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		content, readError := migrationsFS.ReadFile(path)
		if readError != nil {
			return fmt.Errorf("error reading SQL file: %w", readError)
		}

		slog.Info("Running migration", "path", path)
		_, execError := db.ExecContext(ctx, string(content))
		return execError
	})
}

// Open opens (creating if necessary) the download log database at path and
// applies any pending migrations.
func Open(ctx context.Context, path string) (*Log, error) {
	if path == "" {
		return nil, errors.New("audit database path must not be empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Log{db: db}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record appends a download entry. mode is one of ModePresigned or
// ModeStreamed.
func (l *Log) Record(ctx context.Context, key, mode, remoteAddr string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO downloads(key, mode, remote_addr, created_at) VALUES(?, ?, ?, ?)`,
		key, mode, remoteAddr, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record download: %w", err)
	}
	return nil
}

// Recent returns at most limit download entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT key, mode, remote_addr, created_at FROM downloads ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query downloads: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Mode, &e.RemoteAddr, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
