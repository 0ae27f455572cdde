package classify

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageCount returns the number of pages of a PDF. Other formats report 0.
// Malformed PDFs yield an error, never a panic.
func PageCount(path string, c Content) (n int, err error) {
	if c.MimeType != MimePDF {
		return 0, nil
	}
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("count pages of %s: %v", path, r)
		}
	}()
	n, err = api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("count pages of %s: %w", path, err)
	}
	return n, nil
}
