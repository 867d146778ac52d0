package storage

import (
	"database/sql"
	"time"

	"fundscraper/pkg/errors"
	"fundscraper/pkg/models"
)

// timeFormat is RFC 3339 with fixed-width nanoseconds so stored
// timestamps sort correctly as text; the task history index relies on
// that. RFC3339Nano trims trailing zeros and breaks the ordering.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SaveRaw inserts a raw payload unless its natural key already exists.
// It returns true when the record was new. Existing content is never
// overwritten; a re-fetch of the same document is a no-op.
func (s *Store) SaveRaw(record models.RawRecord) (bool, error) {
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO raw_records
			(entity_key, kind, source, origin_url, content, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.EntityKey,
		string(record.Kind),
		string(record.Source),
		record.OriginURL,
		record.Content,
		record.FetchedAt.Format(timeFormat),
	)
	if err != nil {
		return false, errors.NewStorageError("failed to save raw record %s: %v", record.Key(), err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewStorageError("failed to read insert result: %v", err)
	}
	return n > 0, nil
}

// GetRaw returns the stored payload for a natural key, or nil when the
// record was never captured.
func (s *Store) GetRaw(entityKey string, kind models.DataKind, source models.Source, originURL string) (*models.RawRecord, error) {
	row := s.db.QueryRow(`
		SELECT entity_key, kind, source, origin_url, content, fetched_at
		FROM raw_records
		WHERE entity_key = ? AND kind = ? AND source = ? AND origin_url = ?`,
		entityKey, string(kind), string(source), originURL,
	)

	var record models.RawRecord
	var k, src, fetchedAt string
	err := row.Scan(&record.EntityKey, &k, &src, &record.OriginURL, &record.Content, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStorageError("failed to load raw record: %v", err)
	}
	record.Kind = models.DataKind(k)
	record.Source = models.Source(src)
	record.FetchedAt, _ = time.Parse(timeFormat, fetchedAt)
	return &record, nil
}

// CountRaw returns the number of captured payloads for an entity.
func (s *Store) CountRaw(entityKey string, kind models.DataKind) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM raw_records WHERE entity_key = ? AND kind = ?`,
		entityKey, string(kind),
	).Scan(&n)
	if err != nil {
		return 0, errors.NewStorageError("failed to count raw records: %v", err)
	}
	return n, nil
}
