// Package history persists a ledger of finished downloads backed by SQLite.
// Only terminal results are recorded; live queue state stays in memory and
// is intentionally lost on restart.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"fetchd/internal/config"
	"fetchd/internal/queue"
)

// Store manages the download history database.
type Store struct {
	db   *sql.DB
	path string
}

// Entry is one finished download as recorded in the ledger.
type Entry struct {
	ID            int64
	ItemID        int64
	CorrelationID string
	URL           string
	Platform      string
	Status        string
	Method        string
	Title         string
	FileCount     int
	TotalBytes    int64
	ErrorMessage  string
	CreatedAt     time.Time
	FinishedAt    time.Time
}

// Open initializes or connects to the history database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) applyMigrations(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS download_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id INTEGER NOT NULL,
    correlation_id TEXT NOT NULL,
    url TEXT NOT NULL,
    platform TEXT NOT NULL,
    status TEXT NOT NULL,
    method TEXT,
    title TEXT,
    file_count INTEGER NOT NULL DEFAULT 0,
    total_bytes INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at TEXT NOT NULL,
    finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_platform ON download_history(platform);
CREATE INDEX IF NOT EXISTS idx_history_status ON download_history(status);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply history schema: %w", err)
	}
	return nil
}

// Record appends one finished queue item to the ledger.
func (s *Store) Record(ctx context.Context, item queue.Item) error {
	if !item.Status.Terminal() {
		return fmt.Errorf("item %d is not terminal (%s)", item.ID, item.Status)
	}

	var method, title, errorMessage string
	fileCount := 0
	var totalBytes int64
	if item.Result != nil {
		method = string(item.Result.DownloadMethod)
		title = item.Result.Title
		errorMessage = item.Result.RawError
		fileCount = len(item.Result.Files)
		for _, file := range item.Result.Files {
			totalBytes += file.SizeBytes
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO download_history (
            item_id, correlation_id, url, platform, status, method, title,
            file_count, total_bytes, error_message, created_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.CorrelationID,
		item.Request.URL,
		item.Request.Platform.String(),
		string(item.Status),
		nullableString(method),
		nullableString(title),
		fileCount,
		totalBytes,
		nullableString(errorMessage),
		item.CreatedAt.Format(time.RFC3339Nano),
		item.FinishedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// Recent returns the most recently finished entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, correlation_id, url, platform, status,
                COALESCE(method, ''), COALESCE(title, ''), file_count,
                total_bytes, COALESCE(error_message, ''), created_at, finished_at
           FROM download_history
          ORDER BY id DESC
          LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ByPlatform returns finished entries for one platform, newest first.
func (s *Store) ByPlatform(ctx context.Context, platformName string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, correlation_id, url, platform, status,
                COALESCE(method, ''), COALESCE(title, ''), file_count,
                total_bytes, COALESCE(error_message, ''), created_at, finished_at
           FROM download_history
          WHERE platform = ?
          ORDER BY id DESC
          LIMIT ?`, platformName, limit)
	if err != nil {
		return nil, fmt.Errorf("query history by platform: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var entry Entry
		var createdAt, finishedAt string
		if err := rows.Scan(
			&entry.ID, &entry.ItemID, &entry.CorrelationID, &entry.URL,
			&entry.Platform, &entry.Status, &entry.Method, &entry.Title,
			&entry.FileCount, &entry.TotalBytes, &entry.ErrorMessage,
			&createdAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entry.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
