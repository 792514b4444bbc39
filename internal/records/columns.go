// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package records

import (
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/docflow/pkg/types"
)

// Columns is the fixed column layout of the record table.
var Columns = []string{
	"Document",
	"Markdown",
	"Images",
	"Image Count",
	"Processed At",
	"Workflow Status",
	"Workflow File ID",
	"Workflow Result",
	"Workflow Processed At",
	"Note",
}

// legacyColumns maps the headers of spreadsheets written by earlier versions
// of the tool to their current names.
var legacyColumns = map[string]string{
	"PDF名称":    "Document",
	"图片":       "Images",
	"图片数量":     "Image Count",
	"处理时间":     "Processed At",
	"Dify状态":   "Workflow Status",
	"Dify文件ID": "Workflow File ID",
	"Dify结果":   "Workflow Result",
	"Dify处理时间": "Workflow Processed At",
	"备注":       "Note",
}

// TimeLayout is how timestamps are written to the table.
const TimeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.ParseInLocation(TimeLayout, s, time.Local); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

// parseFlag accepts the values written by this tool and by older
// spreadsheets that used check marks.
func parseFlag(s string) types.Flag {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "✅":
		return types.FlagYes
	case "no", "false", "❌":
		return types.FlagNo
	default:
		return types.FlagUnset
	}
}

func parseCount(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return int(f)
	}
	return 0
}

// rowValues renders r in Columns order. ImageCount stays numeric.
func rowValues(r types.ProcessingRecord) []any {
	return []any{
		r.Name,
		string(r.Markdown),
		string(r.Images),
		r.ImageCount,
		formatTime(r.FirstProcessedAt),
		r.WorkflowStatus,
		r.WorkflowFileID,
		r.WorkflowResult,
		formatTime(r.WorkflowProcessedAt),
		r.Note,
	}
}

// headerIndex maps column names to their position in header. Legacy headers
// are indexed under their current name unless that name is also present.
// Columns absent from header are missing from the map and read as empty.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for i, h := range header {
		name, ok := legacyColumns[strings.TrimSpace(h)]
		if !ok {
			continue
		}
		if _, taken := idx[name]; !taken {
			idx[name] = i
		}
	}
	return idx
}

// recordFromRow builds a record from a row laid out per idx.
func recordFromRow(idx map[string]int, row []string) types.ProcessingRecord {
	cell := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	return types.ProcessingRecord{
		Name:                strings.TrimSpace(cell("Document")),
		Markdown:            parseFlag(cell("Markdown")),
		Images:              parseFlag(cell("Images")),
		ImageCount:          parseCount(cell("Image Count")),
		FirstProcessedAt:    parseTime(cell("Processed At")),
		WorkflowStatus:      cell("Workflow Status"),
		WorkflowFileID:      cell("Workflow File ID"),
		WorkflowResult:      cell("Workflow Result"),
		WorkflowProcessedAt: parseTime(cell("Workflow Processed At")),
		Note:                cell("Note"),
	}
}
