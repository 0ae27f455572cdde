package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/contractflow/pkg/contractflow"
	"github.com/cognicore/contractflow/pkg/contractflow/internalerr"
)

var (
	ndaSolution = contractflow.Solution{ID: "nda", Key: "nda", Title: "Non-Disclosure Agreement"}
	dpaSolution = contractflow.Solution{ID: "dpa", Key: "dpa", Title: "Data Processing Agreement"}
)

// Default returns the built-in manifest used when no manifest file is given.
func Default() []contractflow.Document {
	return []contractflow.Document{
		{
			Path:         "docs/Demo NDA AL.docx",
			ContractType: "non_disclosure_agreement",
			Solution:     ndaSolution,
			Perspective:  "disclosing-party",
		},
		{
			Path:         "docs/5-Appendix-Non-Disclosure-Agreement-Mutual.pdf",
			ContractType: "non_disclosure_agreement",
			Solution:     ndaSolution,
			Perspective:  "disclosing-party",
		},
		{
			Path:         "docs/exempel-2.docx",
			ContractType: "non_disclosure_agreement",
			Solution:     ndaSolution,
			Perspective:  "disclosing-party",
		},
		{
			Path:         "docs/dpa.pdf",
			ContractType: "data_processing_agreement",
			Solution:     dpaSolution,
			Perspective:  "data-controller",
		},
	}
}

// File is the on-disk manifest layout.
type File struct {
	Documents []contractflow.Document `yaml:"documents"`
}

// Load reads a YAML manifest from path.
func Load(path string) ([]contractflow.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a YAML manifest.
func Parse(data []byte) ([]contractflow.Document, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := Validate(f.Documents); err != nil {
		return nil, err
	}
	return f.Documents, nil
}

// Validate checks that every entry carries the fields the remote stages need.
// File existence and extension are checked per document at run time, not here.
func Validate(docs []contractflow.Document) error {
	if len(docs) == 0 {
		return fmt.Errorf("manifest has no documents: %w", internalerr.ErrInvalidInput)
	}
	for i, d := range docs {
		if d.Path == "" {
			return fmt.Errorf("manifest entry %d: path is empty: %w", i, internalerr.ErrInvalidInput)
		}
		if d.ContractType == "" {
			return fmt.Errorf("manifest entry %d (%s): contractType is empty: %w", i, d.Path, internalerr.ErrInvalidInput)
		}
	}
	return nil
}

// Marshal renders docs in the same layout Load accepts.
func Marshal(docs []contractflow.Document) ([]byte, error) {
	return yaml.Marshal(File{Documents: docs})
}
