package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cognicore/contractflow/pkg/contractflow"
	"github.com/cognicore/contractflow/pkg/contractflow/internalerr"
	"github.com/cognicore/contractflow/pkg/contractflow/ledger"
)

// TestSchemaCreationIdempotent tests that running initSchema multiple times is safe
func TestSchemaCreationIdempotent(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Open database: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := initSchema(ctx, db); err != nil {
			t.Fatalf("initSchema iteration %d: %v", i, err)
		}
	}

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&count)
	if err != nil {
		t.Fatalf("Count tables: %v", err)
	}
	if count != 2 { // runs, run_entries
		t.Errorf("Expected 2 tables, got %d", count)
	}
}

func sampleRun(id string, started time.Time) ledger.Run {
	return ledger.Run{
		ID:         id,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Minute),
		Total:      2,
		Succeeded:  1,
		Failed:     1,
		Entries: []contractflow.Entry{
			{
				Path:          "docs/Demo NDA AL.docx",
				IngestionID:   "5b0c3a4e-6c4f-4e8e-9d55-8f3e54b7c0a1",
				ClausesCached: json.RawMessage("true"),
				Output:        "/tmp/Demo_NDA_AL-analysis.json",
			},
			{Path: "docs/budget.xlsx", Error: "unsupported-extension:.xlsx"},
		},
	}
}

func TestRecordAndGetRun(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	l, err := OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	started := time.Date(2026, 10, 18, 8, 30, 0, 0, time.UTC)
	if err := l.RecordRun(ctx, sampleRun("01JRUN", started)); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	l.Close()

	// Reopen to make sure the data is persisted.
	l, err = OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l.Close()

	run, err := l.GetRun(ctx, "01JRUN")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if !run.StartedAt.Equal(started) || run.Succeeded != 1 || run.Failed != 1 {
		t.Errorf("unexpected run header %+v", run)
	}
	if len(run.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(run.Entries))
	}
	if string(run.Entries[0].ClausesCached) != "true" || run.Entries[0].IngestionID == "" {
		t.Errorf("first entry not restored: %+v", run.Entries[0])
	}
	if run.Entries[1].Error != "unsupported-extension:.xlsx" || run.Entries[1].IngestionID != "" {
		t.Errorf("second entry not restored: %+v", run.Entries[1])
	}
}

func TestGetRunMissing(t *testing.T) {
	ctx := context.Background()
	l, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer l.Close()

	if _, err := l.GetRun(ctx, "missing"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	l, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer l.Close()

	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"R1", "R2", "R3"} {
		if err := l.RecordRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("RecordRun %s: %v", id, err)
		}
	}

	runs, err := l.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "R3" || runs[1].ID != "R2" {
		t.Fatalf("unexpected runs %+v", runs)
	}
}

func TestListRunsWithinOneSecond(t *testing.T) {
	ctx := context.Background()
	l, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer l.Close()

	base := time.Date(2026, 10, 1, 12, 0, 5, 0, time.UTC)
	for _, r := range []struct {
		id     string
		offset time.Duration
	}{
		{"C", 0},
		{"B", 100 * time.Millisecond},
		{"A", 120 * time.Millisecond},
	} {
		if err := l.RecordRun(ctx, sampleRun(r.id, base.Add(r.offset))); err != nil {
			t.Fatalf("RecordRun %s: %v", r.id, err)
		}
	}

	runs, err := l.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	var got []string
	for _, r := range runs {
		got = append(got, r.ID)
	}
	if len(got) != 3 || got[0] != "A" || got[1] != "B" || got[2] != "C" {
		t.Fatalf("order = %v, want [A B C]", got)
	}
	if !runs[0].StartedAt.Equal(base.Add(120 * time.Millisecond)) {
		t.Errorf("started_at = %v", runs[0].StartedAt)
	}
}

func TestRecordDuplicateRunFails(t *testing.T) {
	ctx := context.Background()
	l, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer l.Close()

	run := sampleRun("DUP", time.Now())
	if err := l.RecordRun(ctx, run); err != nil {
		t.Fatalf("first RecordRun: %v", err)
	}
	if err := l.RecordRun(ctx, run); err == nil {
		t.Fatal("expected duplicate run id to fail")
	}
}
