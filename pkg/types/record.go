// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Flag is a tri-state marker: unset, yes, or no.
type Flag string

const (
	FlagUnset Flag = ""
	FlagYes   Flag = "yes"
	FlagNo    Flag = "no"
)

// FlagOf converts a boolean into a Flag.
func FlagOf(b bool) Flag {
	if b {
		return FlagYes
	}
	return FlagNo
}

// Workflow result markers stored in ProcessingRecord.WorkflowResult.
const (
	WorkflowResultOK      = "ok"
	WorkflowResultMissing = "missing"
	WorkflowResultFailed  = "failed"
)

// Workflow status values stored in ProcessingRecord.WorkflowStatus.
const (
	WorkflowStatusUploading    = "uploading"
	WorkflowStatusRunning      = "running"
	WorkflowStatusCompleted    = "completed"
	WorkflowStatusNoResultFile = "no_result_file"
	WorkflowStatusFailed       = "failed"
	WorkflowStatusError        = "error"
)

// ProcessingRecord tracks the processing state of one document. Records are
// keyed by Name; FirstProcessedAt is set once and never overwritten.
type ProcessingRecord struct {
	// Name is the document file name (e.g. "report.pdf").
	Name string `json:"name" yaml:"name"`

	// Markdown records whether a Markdown file was produced.
	Markdown Flag `json:"markdown" yaml:"markdown"`

	// Images records whether any images were saved.
	Images Flag `json:"images" yaml:"images"`

	// ImageCount is the number of images saved.
	ImageCount int `json:"image_count" yaml:"image_count"`

	// FirstProcessedAt is the time of the first update for this document.
	FirstProcessedAt time.Time `json:"first_processed_at" yaml:"first_processed_at"`

	// WorkflowStatus is the last reported workflow stage.
	WorkflowStatus string `json:"workflow_status,omitempty" yaml:"workflow_status,omitempty"`

	// WorkflowFileID is the identifier returned by the workflow upload.
	WorkflowFileID string `json:"workflow_file_id,omitempty" yaml:"workflow_file_id,omitempty"`

	// WorkflowResult is one of ok, missing, failed.
	WorkflowResult string `json:"workflow_result,omitempty" yaml:"workflow_result,omitempty"`

	// WorkflowProcessedAt is updated whenever a workflow status is written.
	WorkflowProcessedAt time.Time `json:"workflow_processed_at,omitempty" yaml:"workflow_processed_at,omitempty"`

	// Note is free text describing the latest outcome.
	Note string `json:"note,omitempty" yaml:"note,omitempty"`
}

// RecordUpdate is a partial update to a ProcessingRecord. Nil pointers and
// empty strings mean "not supplied" and leave the existing value untouched.
type RecordUpdate struct {
	Markdown       *bool
	Images         *bool
	ImageCount     *int
	WorkflowStatus string
	WorkflowFileID string
	WorkflowResult string
	Note           string
}
