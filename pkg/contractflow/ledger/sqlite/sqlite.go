package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/contractflow/pkg/contractflow"
	"github.com/cognicore/contractflow/pkg/contractflow/internalerr"
	"github.com/cognicore/contractflow/pkg/contractflow/ledger"
)

// sqliteLedger implements ledger.Ledger on top of SQLite
type sqliteLedger struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (ledger.Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteLedger{db: db}, nil
}

// Close closes the database connection
func (s *sqliteLedger) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	total INTEGER NOT NULL,
	succeeded INTEGER NOT NULL,
	failed INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_entries (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	path TEXT NOT NULL,
	ingestion_id TEXT,
	clauses_cached TEXT,
	output TEXT,
	page_count INTEGER,
	error TEXT,
	PRIMARY KEY(run_id, position),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_run_entries_ingestion ON run_entries(ingestion_id);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// timeLayout is fixed width so that started_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RecordRun stores a run and its entries in one transaction.
func (s *sqliteLedger) RecordRun(ctx context.Context, run ledger.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs(id, started_at, finished_at, total, succeeded, failed)
VALUES(?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
		run.Total, run.Succeeded, run.Failed,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO run_entries(run_id, position, path, ingestion_id, clauses_cached, output, page_count, error)
VALUES(?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range run.Entries {
		if _, err := stmt.ExecContext(ctx, run.ID, i, e.Path,
			nullString(e.IngestionID), nullString(string(e.ClausesCached)),
			nullString(e.Output), e.PageCount, nullString(e.Error)); err != nil {
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetRun loads a run with its entries in manifest order.
func (s *sqliteLedger) GetRun(ctx context.Context, id string) (ledger.Run, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, started_at, finished_at, total, succeeded, failed FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Run{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	if err != nil {
		return ledger.Run{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT path, ingestion_id, clauses_cached, output, page_count, error
FROM run_entries WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return ledger.Run{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e                                   contractflow.Entry
			ingestionID, cached, output, errTag sql.NullString
		)
		if err := rows.Scan(&e.Path, &ingestionID, &cached, &output, &e.PageCount, &errTag); err != nil {
			return ledger.Run{}, err
		}
		e.IngestionID = ingestionID.String
		if cached.Valid {
			e.ClausesCached = []byte(cached.String)
		}
		e.Output = output.String
		e.Error = errTag.String
		run.Entries = append(run.Entries, e)
	}
	return run, rows.Err()
}

// ListRuns returns the most recent runs first.
func (s *sqliteLedger) ListRuns(ctx context.Context, limit int) ([]ledger.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, started_at, finished_at, total, succeeded, failed
FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ledger.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (ledger.Run, error) {
	var (
		run               ledger.Run
		started, finished string
	)
	if err := sc.Scan(&run.ID, &started, &finished, &run.Total, &run.Succeeded, &run.Failed); err != nil {
		return ledger.Run{}, err
	}
	var err error
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return ledger.Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return ledger.Run{}, fmt.Errorf("parse finished_at: %w", err)
	}
	return run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
