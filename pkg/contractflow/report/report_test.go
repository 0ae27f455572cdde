package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cognicore/contractflow/pkg/contractflow"
	"github.com/cognicore/contractflow/pkg/contractflow/artifact"
)

type failingSink struct{}

func (failingSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	return "", errors.New("disk full")
}

func (failingSink) Close() error { return nil }

func newFileSink(t *testing.T) *artifact.FileSink {
	t.Helper()
	sink, err := artifact.NewFileSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	return sink
}

func TestSucceedWritesArtifact(t *testing.T) {
	sink := newFileSink(t)
	agg := New(sink)
	doc := contractflow.Document{Path: "docs/Demo NDA AL.docx"}

	entry, err := agg.Succeed(context.Background(), doc, Success{
		IngestionID:   "id-1",
		ClausesCached: json.RawMessage("false"),
		Analysis:      []byte(`{"review":"ok"}`),
	})
	if err != nil {
		t.Fatalf("Succeed: %v", err)
	}

	want := filepath.Join(sink.Dir, "Demo_NDA_AL-analysis.json")
	if entry.Output != want {
		t.Errorf("Output = %q, want %q", entry.Output, want)
	}
	data, err := os.ReadFile(want)
	if err != nil || string(data) != `{"review":"ok"}` {
		t.Errorf("artifact content %q, %v", data, err)
	}
	if string(entry.ClausesCached) != "false" {
		t.Errorf("clausesCached = %s", entry.ClausesCached)
	}
}

func TestSucceedMissingClausesCachedIsNull(t *testing.T) {
	agg := New(newFileSink(t))
	entry, err := agg.Succeed(context.Background(), contractflow.Document{Path: "a.pdf"}, Success{IngestionID: "id", Analysis: []byte("{}")})
	if err != nil {
		t.Fatalf("Succeed: %v", err)
	}
	if string(entry.ClausesCached) != "null" {
		t.Errorf("clausesCached = %q, want null", entry.ClausesCached)
	}
}

func TestSucceedArtifactFailureRecordsFailure(t *testing.T) {
	agg := New(failingSink{})
	entry, err := agg.Succeed(context.Background(), contractflow.Document{Path: "a.pdf"}, Success{IngestionID: "id-9", Analysis: []byte("{}")})

	var se *contractflow.StageError
	if !errors.As(err, &se) || se.Stage != contractflow.StageArtifact {
		t.Fatalf("expected write-artifact error, got %v", err)
	}
	if entry.Error != "write-artifact:disk full" || entry.IngestionID != "id-9" || entry.Output != "" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if n := len(agg.Entries()); n != 1 {
		t.Errorf("expected exactly one entry, got %d", n)
	}
}

func TestEntriesPreserveOrder(t *testing.T) {
	agg := New(newFileSink(t))
	ctx := context.Background()

	agg.Fail(contractflow.Document{Path: "1.xlsx"}, "", &contractflow.StageError{Stage: contractflow.StageClassify, Cause: "unsupported-extension:.xlsx"})
	agg.Succeed(ctx, contractflow.Document{Path: "2.pdf"}, Success{IngestionID: "b", Analysis: []byte("{}")})
	agg.Fail(contractflow.Document{Path: "3.docx"}, "c", contractflow.Fail(contractflow.StageExtract, errors.New("http 502: bad gateway")))

	entries := agg.Entries()
	paths := []string{entries[0].Path, entries[1].Path, entries[2].Path}
	if paths[0] != "1.xlsx" || paths[1] != "2.pdf" || paths[2] != "3.docx" {
		t.Fatalf("order not preserved: %v", paths)
	}

	s := agg.Summary()
	if s.Total != 3 || s.Succeeded != 1 || s.Failed != 2 {
		t.Errorf("unexpected summary %+v", s)
	}

	// Entries must be a copy.
	entries[0].Path = "mutated"
	if agg.Entries()[0].Path != "1.xlsx" {
		t.Error("Entries should return a copy")
	}
}

func TestWriteReport(t *testing.T) {
	agg := New(newFileSink(t))
	agg.Fail(contractflow.Document{Path: "docs/missing.pdf"}, "", &contractflow.StageError{Stage: contractflow.StageClassify, Cause: contractflow.TagFileNotFound})

	var buf bytes.Buffer
	if err := agg.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "[\n  {\n    \"path\": \"docs/missing.pdf\",\n    \"error\": \"file-not-found\"\n  }\n]\n"
	if buf.String() != want {
		t.Errorf("report =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWriteReportKeepsClausesCachedValue(t *testing.T) {
	agg := New(newFileSink(t))
	if _, err := agg.Succeed(context.Background(), contractflow.Document{Path: "docs/nda.docx"}, Success{
		IngestionID:   "id-1",
		ClausesCached: json.RawMessage(`{"count":3,"types":["term","liability"]}`),
		Analysis:      []byte(`{}`),
	}); err != nil {
		t.Fatalf("Succeed: %v", err)
	}

	var buf bytes.Buffer
	if err := agg.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var entries []struct {
		ClausesCached any `json:"clausesCached"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entries); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	var want any
	if err := json.Unmarshal([]byte(`{"count":3,"types":["term","liability"]}`), &want); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !reflect.DeepEqual(entries[0].ClausesCached, want) {
		t.Errorf("clausesCached = %#v, want %#v", entries, want)
	}
}

func TestWriteEmptyReport(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.String() != "[]\n" {
		t.Errorf("empty report = %q", buf.String())
	}
}
