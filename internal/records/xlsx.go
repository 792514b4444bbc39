// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package records

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/pdiddy/docflow/pkg/types"
)

const sheetName = "Records"

// columnWidths matches Columns, in spreadsheet character units.
var columnWidths = []float64{25, 12, 10, 12, 20, 18, 38, 16, 20, 48}

// XLSX persists the record table as a single-sheet spreadsheet.
type XLSX struct {
	Path string
}

// NewXLSX returns a persister writing to path.
func NewXLSX(path string) *XLSX {
	return &XLSX{Path: path}
}

// Load reads the first sheet of the spreadsheet. A missing file yields no
// records. Columns are matched by header name, so older files with fewer
// columns still load.
func (x *XLSX) Load() ([]types.ProcessingRecord, error) {
	if _, err := os.Stat(x.Path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	f, err := excelize.OpenFile(x.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", x.Path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("reading rows from %s: %w", x.Path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	idx := headerIndex(rows[0])
	if _, ok := idx["Document"]; !ok {
		return nil, fmt.Errorf("%s: missing %q column", x.Path, "Document")
	}

	out := make([]types.ProcessingRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		r := recordFromRow(idx, row)
		if r.Name == "" {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Archive renames an existing spreadsheet to the first free name of the form
// <path>.bak, <path>.1.bak, ... and returns that name. It returns "" when
// there is nothing to move.
func (x *XLSX) Archive() (string, error) {
	if _, err := os.Stat(x.Path); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	backup := x.Path + ".bak"
	for n := 1; ; n++ {
		if _, err := os.Lstat(backup); errors.Is(err, os.ErrNotExist) {
			break
		}
		backup = fmt.Sprintf("%s.%d.bak", x.Path, n)
	}
	if err := os.Rename(x.Path, backup); err != nil {
		return "", fmt.Errorf("moving %s aside: %w", x.Path, err)
	}
	return backup, nil
}

// Save writes records to a temporary spreadsheet next to Path and renames it
// into place.
func (x *XLSX) Save(records []types.ProcessingRecord) error {
	dir := filepath.Dir(x.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := rowValues(r)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("writing row for %s: %w", r.Name, err)
		}
	}

	for i, w := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, col, col, w); err != nil {
			return fmt.Errorf("setting width of column %s: %w", col, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".records-*.xlsx")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := f.SaveAs(tmpPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing spreadsheet: %w", err)
	}
	if err := os.Rename(tmpPath, x.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
