// Package journal records one row per successfully submitted batch in a
// local SQLite database, for post-run diagnostics and auditing. Rows are
// written only after the submit call succeeds, so the journal never
// claims durability for data that was not sent.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spaolacci/murmur3"

	"github.com/stitchload/stitchload/internal/errors"
	"github.com/stitchload/stitchload/pkg/types"
)

// FlushRecord describes one journaled flush.
type FlushRecord struct {
	RunID          string
	Ordinal        int
	TableName      string
	OperationCount int
	FirstSequence  int64
	LastSequence   int64
	KeyProperties  []string
	Fingerprint    uint64
	Response       string
	CreatedAt      time.Time
}

// Journal persists flush records.
type Journal interface {
	// RecordFlush journals one submitted batch.
	RecordFlush(ctx context.Context, rec *FlushRecord) error

	// FlushesForRun returns the journaled flushes of one run, in
	// ordinal order.
	FlushesForRun(ctx context.Context, runID string) ([]*FlushRecord, error)

	// Close closes the journal database connection.
	Close() error
}

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
	mu sync.Mutex
}

// NewJournal opens or creates a SQLite journal at dbPath.
func NewJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("journal: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // Single writer
	db.SetMaxIdleConns(1)

	j := &SQLiteJournal{db: db}
	if err := j.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *SQLiteJournal) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS flushes (
		run_id          TEXT    NOT NULL,
		ordinal         INTEGER NOT NULL,
		table_name      TEXT    NOT NULL,
		operation_count INTEGER NOT NULL,
		first_sequence  INTEGER NOT NULL,
		last_sequence   INTEGER NOT NULL,
		key_properties  TEXT,
		fingerprint     TEXT    NOT NULL,
		response        TEXT,
		created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_id, ordinal)
	);
	CREATE INDEX IF NOT EXISTS idx_flushes_run ON flushes(run_id);
	`
	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("journal: failed to create schema: %w", err)
	}
	return nil
}

// RecordFlush journals one submitted batch.
func (j *SQLiteJournal) RecordFlush(ctx context.Context, rec *FlushRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	keyProps, err := json.Marshal(rec.KeyProperties)
	if err != nil {
		return errors.NewInternalError("journal: failed to serialize key properties", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO flushes (run_id, ordinal, table_name, operation_count,
			first_sequence, last_sequence, key_properties, fingerprint, response)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Ordinal, rec.TableName, rec.OperationCount,
		rec.FirstSequence, rec.LastSequence, string(keyProps),
		fmt.Sprintf("%016x", rec.Fingerprint), rec.Response,
	)
	if err != nil {
		return errors.NewStorageError(errors.CodeJournalFailed,
			fmt.Sprintf("failed to journal flush %d", rec.Ordinal), err)
	}
	return nil
}

// FlushesForRun returns the journaled flushes of one run, in ordinal order.
func (j *SQLiteJournal) FlushesForRun(ctx context.Context, runID string) ([]*FlushRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, ordinal, table_name, operation_count,
			first_sequence, last_sequence, key_properties, fingerprint, response, created_at
		FROM flushes WHERE run_id = ? ORDER BY ordinal`, runID)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeJournalFailed, "failed to query flushes", err)
	}
	defer rows.Close()

	var records []*FlushRecord
	for rows.Next() {
		var rec FlushRecord
		var keyProps, fingerprint string
		if err := rows.Scan(&rec.RunID, &rec.Ordinal, &rec.TableName, &rec.OperationCount,
			&rec.FirstSequence, &rec.LastSequence, &keyProps, &fingerprint,
			&rec.Response, &rec.CreatedAt); err != nil {
			return nil, errors.NewStorageError(errors.CodeJournalFailed, "failed to scan flush row", err)
		}
		if keyProps != "" && keyProps != "null" {
			if err := json.Unmarshal([]byte(keyProps), &rec.KeyProperties); err != nil {
				return nil, errors.NewStorageError(errors.CodeJournalFailed, "corrupt key_properties column", err)
			}
		}
		if _, err := fmt.Sscanf(fingerprint, "%016x", &rec.Fingerprint); err != nil {
			return nil, errors.NewStorageError(errors.CodeJournalFailed, "corrupt fingerprint column", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Close closes the journal database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Fingerprint computes the content fingerprint of a serialized batch
// envelope, recorded with every flush so identical resubmissions can be
// spotted after the fact.
func Fingerprint(envelope *types.BatchEnvelope) (uint64, error) {
	data, err := json.Marshal(envelope)
	if err != nil {
		return 0, errors.NewInternalError("failed to serialize envelope for fingerprint", err)
	}
	return murmur3.Sum64(data), nil
}
