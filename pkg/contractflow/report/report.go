package report

import (
	"context"
	"encoding/json"
	"io"

	"github.com/cognicore/contractflow/pkg/contractflow"
	"github.com/cognicore/contractflow/pkg/contractflow/artifact"
)

// Aggregator collects one entry per document, in the order documents are
// processed, and persists the artifacts of successful ones.
type Aggregator struct {
	sink    artifact.Sink
	entries []contractflow.Entry
}

// New creates an aggregator writing artifacts to sink.
func New(sink artifact.Sink) *Aggregator {
	return &Aggregator{sink: sink, entries: []contractflow.Entry{}}
}

// Success carries what a fully analyzed document hands to the aggregator.
type Success struct {
	IngestionID   string
	ClausesCached json.RawMessage
	PageCount     int
	Analysis      []byte
}

// Succeed stores the analysis artifact and appends the success entry. If the
// artifact cannot be stored, a write-artifact failure is appended instead and
// returned.
func (a *Aggregator) Succeed(ctx context.Context, doc contractflow.Document, s Success) (contractflow.Entry, error) {
	location, err := a.sink.Put(ctx, artifact.Name(doc.Path), s.Analysis)
	if err != nil {
		se := contractflow.Fail(contractflow.StageArtifact, err)
		return a.Fail(doc, s.IngestionID, se), se
	}

	cached := s.ClausesCached
	if len(cached) == 0 {
		cached = json.RawMessage("null")
	}
	e := contractflow.Entry{
		Path:          doc.Path,
		IngestionID:   s.IngestionID,
		ClausesCached: cached,
		Output:        location,
		PageCount:     s.PageCount,
	}
	a.entries = append(a.entries, e)
	return e, nil
}

// Fail appends the failure entry. ingestionID is empty when the document
// never reached registration.
func (a *Aggregator) Fail(doc contractflow.Document, ingestionID string, err *contractflow.StageError) contractflow.Entry {
	e := contractflow.Entry{
		Path:        doc.Path,
		IngestionID: ingestionID,
		Error:       err.Tag(),
	}
	a.entries = append(a.entries, e)
	return e
}

// Entries returns a copy of the entries collected so far.
func (a *Aggregator) Entries() []contractflow.Entry {
	return append([]contractflow.Entry{}, a.entries...)
}

// Summary counts outcomes.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Summary returns the outcome counts.
func (a *Aggregator) Summary() Summary {
	return Summarize(a.entries)
}

// Summarize counts outcomes of entries.
func Summarize(entries []contractflow.Entry) Summary {
	s := Summary{Total: len(entries)}
	for _, e := range entries {
		if e.Succeeded() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// Write renders the report as an indented JSON array.
func (a *Aggregator) Write(w io.Writer) error {
	return Write(w, a.entries)
}

// Write renders entries as an indented JSON array.
func Write(w io.Writer, entries []contractflow.Entry) error {
	if entries == nil {
		entries = []contractflow.Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(entries)
}
