// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package preflight checks input documents locally before they are uploaded
// for OCR.
package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// pdfcpu would otherwise create a config directory under the user's home.
	model.ConfigPath = "disable"
}

// ErrUnreadablePDF marks a file with a .pdf extension whose structure could
// not be parsed locally. The remote OCR service may still accept it.
var ErrUnreadablePDF = errors.New("unreadable PDF structure")

// Report describes an input document.
type Report struct {
	Path  string
	Size  int64
	Pages int
}

// Check stats path and reads its page count. Files without a .pdf extension
// are reported with Pages == 0 and no error, since the OCR service also
// accepts other document types.
func Check(path string) (Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Report{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.IsDir() {
		return Report{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return Report{}, fmt.Errorf("%s is empty", path)
	}

	r := Report{Path: path, Size: info.Size()}
	if !IsPDF(path) {
		return r, nil
	}

	pages, err := api.PageCountFile(path)
	if err != nil {
		return r, fmt.Errorf("%s: %w: %w", filepath.Base(path), ErrUnreadablePDF, err)
	}
	r.Pages = pages
	return r, nil
}

// IsPDF reports whether path has a .pdf extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Collect returns the PDF files directly inside dir, sorted by name.
func Collect(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !IsPDF(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	return out, nil
}
