// Package storage persists collected data in a single SQLite database:
// raw payloads, structured rank rows, reference catalogs and the task
// ledger. All writes go through one connection so concurrent collection
// workers never trip over SQLITE_BUSY.
package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"fundscraper/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS raw_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_key TEXT NOT NULL,
	kind TEXT NOT NULL,
	source TEXT NOT NULL,
	origin_url TEXT NOT NULL,
	content TEXT NOT NULL,
	fetched_at TEXT NOT NULL,
	UNIQUE(entity_key, kind, source, origin_url)
);
CREATE INDEX IF NOT EXISTS idx_raw_records_entity ON raw_records(entity_key, kind);

CREATE TABLE IF NOT EXISTS rank_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fund_code TEXT NOT NULL,
	short_name TEXT NOT NULL DEFAULT '',
	pinyin TEXT NOT NULL DEFAULT '',
	rank_no INTEGER NOT NULL,
	rank_type TEXT NOT NULL,
	rank_date TEXT NOT NULL,
	nav REAL,
	accum_nav REAL,
	daily_growth REAL,
	weekly_growth REAL,
	monthly_growth REAL,
	quarterly_growth REAL,
	yearly_growth REAL,
	two_year_growth REAL,
	three_year_growth REAL,
	five_year_growth REAL,
	ytd_growth REAL,
	since_launch_growth REAL,
	UNIQUE(fund_code, rank_type, rank_date)
);
CREATE INDEX IF NOT EXISTS idx_rank_entries_date ON rank_entries(rank_type, rank_date, rank_no);

CREATE TABLE IF NOT EXISTS funds (
	fund_code TEXT PRIMARY KEY,
	short_name TEXT NOT NULL DEFAULT '',
	fund_name TEXT NOT NULL DEFAULT '',
	fund_type TEXT NOT NULL DEFAULT '',
	pinyin TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS companies (
	company_code TEXT PRIMARY KEY,
	company_name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS tasks (
	task_id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	total_count INTEGER NOT NULL DEFAULT 0,
	success_count INTEGER NOT NULL DEFAULT 0,
	error_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	started_at TEXT,
	ended_at TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at);

CREATE TABLE IF NOT EXISTS task_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id TEXT NOT NULL REFERENCES tasks(task_id),
	entity_key TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL,
	UNIQUE(task_id, entity_key)
);
`

// Store is the SQLite-backed persistence layer.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// Serialize access on one connection; collection workers write
	// concurrently and SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.DebugWithFields("database opened", map[string]interface{}{
		"path": path,
	})

	return &Store{db: db, logger: log}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
