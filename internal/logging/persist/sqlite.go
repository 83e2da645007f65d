package persist

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/telemetrykit/lokibuf/internal/logging"
)

const pendingSchema = `
CREATE TABLE IF NOT EXISTS pending_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp_ns INTEGER NOT NULL,
	level TEXT NOT NULL,
	message TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}'
);
`

// SQLiteStore persists pending entries in a single-file SQLite database.
// It offers the same contract as FileStore for hosts that already carry a
// database file and prefer transactional writes over file replacement.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persist: open sqlite store: %w", err)
	}
	if _, err := db.Exec(pendingSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(entries []logging.LogEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("persist: begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM pending_entries`); err != nil {
		return fmt.Errorf("persist: clear before save: %w", err)
	}
	if err := insertEntries(tx, entries); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Append(entries []logging.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("persist: begin append: %w", err)
	}
	defer tx.Rollback()

	if err := insertEntries(tx, entries); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadAndClear() ([]logging.LogEntry, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("persist: begin load: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT timestamp_ns, level, message, metadata FROM pending_entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("persist: query pending entries: %w", err)
	}

	var entries []logging.LogEntry
	for rows.Next() {
		var (
			timestampNanos int64
			levelName      string
			message        string
			metadataJSON   string
		)
		if err := rows.Scan(&timestampNanos, &levelName, &message, &metadataJSON); err != nil {
			rows.Close()
			return nil, fmt.Errorf("persist: scan pending entry: %w", err)
		}

		level, err := logging.ParseLevel(levelName)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("persist: stored entry: %w", err)
		}
		var metadata map[string]string
		if metadataJSON != "" && metadataJSON != "{}" {
			if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
				rows.Close()
				return nil, fmt.Errorf("persist: decode metadata: %w", err)
			}
		}
		entries = append(entries, logging.NewEntryAt(
			time.Unix(0, timestampNanos), level, message, metadata))
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("persist: iterate pending entries: %w", err)
	}
	rows.Close()

	if _, err := tx.Exec(`DELETE FROM pending_entries`); err != nil {
		return nil, fmt.Errorf("persist: clear after load: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("persist: commit load: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM pending_entries`); err != nil {
		return fmt.Errorf("persist: clear pending entries: %w", err)
	}
	return nil
}

func insertEntries(tx *sql.Tx, entries []logging.LogEntry) error {
	stmt, err := tx.Prepare(`INSERT INTO pending_entries (timestamp_ns, level, message, metadata) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("persist: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		metadataJSON := "{}"
		if len(e.Metadata) > 0 {
			data, err := json.Marshal(e.Metadata)
			if err != nil {
				return fmt.Errorf("persist: encode metadata: %w", err)
			}
			metadataJSON = string(data)
		}
		if _, err := stmt.Exec(e.Timestamp.UnixNano(), e.Level.String(), e.Message, metadataJSON); err != nil {
			return fmt.Errorf("persist: insert entry: %w", err)
		}
	}
	return nil
}
