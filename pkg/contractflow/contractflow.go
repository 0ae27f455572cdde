package contractflow

import (
	"encoding/json"
	"fmt"
)

// Stage names one step of the per-document pipeline.
type Stage string

const (
	StageClassify Stage = "classify"
	StageRead     Stage = "read-file"
	StageRegister Stage = "ingestion-record"
	StageIngest   Stage = "ingest-contract"
	StageExtract  Stage = "extract-clauses"
	StageAnalyze  Stage = "analyze-contract"
	StageArtifact Stage = "write-artifact"
)

// Classification failure tags. They are reported without a stage prefix.
const (
	TagFileNotFound         = "file-not-found"
	TagUnsupportedExtension = "unsupported-extension"
)

// Solution identifies the product configuration an analysis is run against.
type Solution struct {
	ID    string `json:"id" yaml:"id"`
	Key   string `json:"key" yaml:"key"`
	Title string `json:"title" yaml:"title"`
}

// Document describes one manifest entry.
type Document struct {
	Path         string   `json:"path" yaml:"path"`
	ContractType string   `json:"contractType" yaml:"contractType"`
	Solution     Solution `json:"solution" yaml:"solution"`
	Perspective  string   `json:"perspective" yaml:"perspective"`
}

// IngestionRecord is the row created in the remote record store before ingestion.
// ID is generated locally so every later stage can reference it.
type IngestionRecord struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	StorageBucket string `json:"storage_bucket"`
	StoragePath   string `json:"storage_path"`
	OriginalName  string `json:"original_name"`
	MimeType      string `json:"mime_type"`
	FileSize      int64  `json:"file_size"`
}

// StatusUploaded is the initial status of every ingestion record.
const StatusUploaded = "uploaded"

// StoragePath returns the deterministic storage location for an ingestion.
func StoragePath(ingestionID, fileName string) string {
	return fmt.Sprintf("manual/%s/%s", ingestionID, fileName)
}

// StageError is the failure of a single stage for a single document.
// Cause is either a bare tag (classification) or the underlying error text.
type StageError struct {
	Stage Stage
	Cause string
	Err   error
}

// Tag renders the failure as it appears in the batch report.
func (e *StageError) Tag() string {
	if e.Stage == StageClassify {
		return e.Cause
	}
	return string(e.Stage) + ":" + e.Cause
}

func (e *StageError) Error() string { return e.Tag() }

func (e *StageError) Unwrap() error { return e.Err }

// Fail wraps err as the failure of stage.
func Fail(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Cause: err.Error(), Err: err}
}

// Entry is one line of the batch report. Exactly one is produced per manifest item.
type Entry struct {
	Path          string          `json:"path"`
	IngestionID   string          `json:"ingestionId,omitempty"`
	ClausesCached json.RawMessage `json:"clausesCached,omitempty"`
	Output        string          `json:"output,omitempty"`
	PageCount     int             `json:"pageCount,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Succeeded reports whether the document reached the analyzed state.
func (e Entry) Succeeded() bool {
	return e.Error == "" && e.Output != ""
}
