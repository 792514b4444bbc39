// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package records

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/docflow/pkg/types"
)

// SQLite persists the record table in an embedded database keyed by
// document name. Save upserts every row inside one transaction.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and its schema.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		markdown TEXT,
		images TEXT,
		image_count INTEGER,
		first_processed_at TEXT,
		workflow_status TEXT,
		workflow_file_id TEXT,
		workflow_result TEXT,
		workflow_processed_at TEXT,
		note TEXT
	)`)
	return err
}

// Load returns all records in insertion order.
func (s *SQLite) Load() ([]types.ProcessingRecord, error) {
	rows, err := s.db.Query(`SELECT name, markdown, images, image_count, first_processed_at,
		workflow_status, workflow_file_id, workflow_result, workflow_processed_at, note
		FROM records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []types.ProcessingRecord
	for rows.Next() {
		var (
			r                     types.ProcessingRecord
			markdown, images      sql.NullString
			first, wfProcessed    sql.NullString
			status, fileID, wfRes sql.NullString
			note                  sql.NullString
			count                 sql.NullInt64
		)
		if err := rows.Scan(&r.Name, &markdown, &images, &count, &first,
			&status, &fileID, &wfRes, &wfProcessed, &note); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r.Markdown = types.Flag(markdown.String)
		r.Images = types.Flag(images.String)
		r.ImageCount = int(count.Int64)
		r.FirstProcessedAt = parseStoredTime(first.String)
		r.WorkflowStatus = status.String
		r.WorkflowFileID = fileID.String
		r.WorkflowResult = wfRes.String
		r.WorkflowProcessedAt = parseStoredTime(wfProcessed.String)
		r.Note = note.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Save upserts every record. Rows are never deleted.
func (s *SQLite) Save(records []types.ProcessingRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO records (name, markdown, images, image_count, first_processed_at,
			workflow_status, workflow_file_id, workflow_result, workflow_processed_at, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			markdown=excluded.markdown, images=excluded.images, image_count=excluded.image_count,
			first_processed_at=excluded.first_processed_at, workflow_status=excluded.workflow_status,
			workflow_file_id=excluded.workflow_file_id, workflow_result=excluded.workflow_result,
			workflow_processed_at=excluded.workflow_processed_at, note=excluded.note`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.Exec(r.Name, string(r.Markdown), string(r.Images), r.ImageCount,
			storedTime(r.FirstProcessedAt), r.WorkflowStatus, r.WorkflowFileID,
			r.WorkflowResult, storedTime(r.WorkflowProcessedAt), r.Note)
		if err != nil {
			return fmt.Errorf("upserting %s: %w", r.Name, err)
		}
	}
	return tx.Commit()
}

func storedTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseStoredTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
