package pipeline

import (
	"encoding/json"

	"github.com/cognicore/contractflow/pkg/contractflow"
)

// These structs define the JSON bodies sent to the platform functions.

// IngestRequest is the input of the ingest-contract function.
type IngestRequest struct {
	IngestionID    string `json:"ingestionId"`
	Content        string `json:"content"`
	FileType       string `json:"fileType"`
	FileName       string `json:"fileName"`
	DocumentFormat string `json:"documentFormat"`
	ContractType   string `json:"contractType"`
}

// IngestResponse keeps the fields of the ingest-contract reply the report needs.
// ClausesCached is passed through verbatim.
type IngestResponse struct {
	ClausesCached json.RawMessage `json:"clausesCached"`
}

// ExtractRequest is the input of the extract-clauses function.
type ExtractRequest struct {
	IngestionID  string `json:"ingestionId"`
	ContractType string `json:"contractType"`
	ForceRefresh bool   `json:"forceRefresh"`
}

// AnalyzeRequest is the input of the analyze-contract function.
type AnalyzeRequest struct {
	IngestionID      string                `json:"ingestionId"`
	ReviewType       string                `json:"reviewType"`
	Model            string                `json:"model"`
	ContractType     string                `json:"contractType"`
	Perspective      string                `json:"perspective"`
	SelectedSolution contractflow.Solution `json:"selectedSolution"`
}
