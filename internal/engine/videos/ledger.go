package videos

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// Processed-video ledger. Separate from the summary archive on purpose:
// failed and skipped videos must be remembered too, or every run would
// re-fetch and re-summarize the same hopeless IDs.

// LedgerStatus marks how processing of a video ended.
type LedgerStatus string

const (
	LedgerSuccess LedgerStatus = "success"
	LedgerFailed  LedgerStatus = "failed"
)

// LedgerEntry is one processed-video record.
type LedgerEntry struct {
	VideoID     string       `json:"videoId"`
	ProcessedAt time.Time    `json:"processedAt"`
	Status      LedgerStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
}

// Ledger persists processed-video state in SQLite.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (or creates) the ledger database at the configured
// path, defaulting to processed.db in the output directory.
func OpenLedger() (*Ledger, error) {
	path := engine.Cfg.LedgerPath
	if path == "" {
		path = filepath.Join(engine.Cfg.OutputDir, "processed.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("ledger: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS processed_videos (
		video_id     TEXT PRIMARY KEY,
		processed_at TEXT NOT NULL,
		status       TEXT NOT NULL,
		error        TEXT
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: init schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error { return l.db.Close() }

// IsProcessed reports whether the video already has a ledger entry.
func (l *Ledger) IsProcessed(ctx context.Context, videoID string) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_videos WHERE video_id = ?`, videoID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger: query %s: %w", videoID, err)
	}
	return true, nil
}

// Mark records the outcome for a video, replacing any earlier entry.
func (l *Ledger) Mark(ctx context.Context, videoID string, status LedgerStatus, errMsg string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO processed_videos (video_id, processed_at, status, error)
		 VALUES (?, ?, ?, ?)`,
		videoID, time.Now().UTC().Format(time.RFC3339), string(status), errMsg)
	if err != nil {
		return fmt.Errorf("ledger: mark %s: %w", videoID, err)
	}
	return nil
}

// Entries returns all ledger entries, newest first.
func (l *Ledger) Entries(ctx context.Context) ([]LedgerEntry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT video_id, processed_at, status, COALESCE(error, '')
		 FROM processed_videos ORDER BY processed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		var processedAt string
		if err := rows.Scan(&e.VideoID, &processedAt, &e.Status, &e.Error); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		e.ProcessedAt, _ = time.Parse(time.RFC3339, processedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
