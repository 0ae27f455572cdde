package classify

import (
	"encoding/base64"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cognicore/contractflow/pkg/contractflow"
)

// MIME types accepted by the ingestion function.
const (
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePDF  = "application/pdf"
)

// Content describes how a file is presented to the ingestion function.
type Content struct {
	Ext      string // lowercase, with leading dot
	MimeType string
	Prefix   string // marker prepended to the base64 payload
}

// Format is the extension without its dot, sent as documentFormat.
func (c Content) Format() string {
	return strings.TrimPrefix(c.Ext, ".")
}

// Encode returns the prefixed base64 payload for data.
func (c Content) Encode(data []byte) string {
	return c.Prefix + base64.StdEncoding.EncodeToString(data)
}

var byExt = map[string]Content{
	".docx": {Ext: ".docx", MimeType: MimeDOCX, Prefix: "DOCX_FILE_BASE64:"},
	".pdf":  {Ext: ".pdf", MimeType: MimePDF, Prefix: "PDF_FILE_BASE64:"},
}

// Lookup maps an extension to its content description.
func Lookup(ext string) (Content, bool) {
	c, ok := byExt[strings.ToLower(ext)]
	return c, ok
}

// Classify resolves the content description for path. The existence check
// runs first, so a missing file is reported as such whatever its extension.
func Classify(path string) (Content, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Content{}, &contractflow.StageError{
				Stage: contractflow.StageClassify,
				Cause: contractflow.TagFileNotFound,
				Err:   err,
			}
		}
		return Content{}, contractflow.Fail(contractflow.StageRead, err)
	}

	ext := extension(path)
	c, ok := byExt[ext]
	if !ok {
		return Content{}, &contractflow.StageError{
			Stage: contractflow.StageClassify,
			Cause: contractflow.TagUnsupportedExtension + ":" + ext,
		}
	}
	return c, nil
}

// extension returns the lowercased suffix of the base name. Dotfiles such as
// ".pdf" and names ending in a bare dot have none.
func extension(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == base || ext == "." {
		return ""
	}
	return strings.ToLower(ext)
}
