package videos

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Optional Postgres record store. Deployments that already run Postgres
// can mirror the archive there for querying; the JSON site data stays
// the source of truth either way.

// RecordDB holds the pgx connection pool for the summary archive.
type RecordDB struct {
	pool *pgxpool.Pool
}

// ConnectRecordDB creates a pgx pool and ensures the schema. Returns nil
// when databaseURL is empty, which the pipeline treats as "store off".
func ConnectRecordDB(ctx context.Context, databaseURL string) (*RecordDB, error) {
	if databaseURL == "" {
		return nil, nil
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	config.MaxConns = 4
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS summary_records (
		url          TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		channel_name TEXT NOT NULL,
		published_at TIMESTAMPTZ NOT NULL,
		summary      TEXT NOT NULL,
		processed_at TIMESTAMPTZ NOT NULL
	)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &RecordDB{pool: pool}, nil
}

func (db *RecordDB) Close() { db.pool.Close() }

// Save upserts records by URL. An existing row is only overwritten by a
// strictly newer processed_at, matching the JSON merge rule.
func (db *RecordDB) Save(ctx context.Context, records []SummaryRecord) error {
	for _, r := range records {
		_, err := db.pool.Exec(ctx, `
			INSERT INTO summary_records (url, title, channel_name, published_at, summary, processed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (url) DO UPDATE SET
				title = EXCLUDED.title,
				channel_name = EXCLUDED.channel_name,
				published_at = EXCLUDED.published_at,
				summary = EXCLUDED.summary,
				processed_at = EXCLUDED.processed_at
			WHERE summary_records.processed_at < EXCLUDED.processed_at`,
			r.URL, r.Title, r.ChannelName, r.PublishedAt, r.Summary, r.ProcessedAt)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", r.URL, err)
		}
	}
	return nil
}

// Load returns all stored records, newest publish date first.
func (db *RecordDB) Load(ctx context.Context) ([]SummaryRecord, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT url, title, channel_name, published_at, summary, processed_at
		FROM summary_records
		ORDER BY published_at DESC, processed_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []SummaryRecord
	for rows.Next() {
		var r SummaryRecord
		if err := rows.Scan(&r.URL, &r.Title, &r.ChannelName, &r.PublishedAt, &r.Summary, &r.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
