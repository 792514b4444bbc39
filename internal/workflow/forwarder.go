// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow forwards generated Markdown to a remote workflow service
// and waits for the result file the workflow drops into a shared directory.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/pdiddy/docflow/internal/logging"
	"github.com/pdiddy/docflow/internal/records"
	"github.com/pdiddy/docflow/pkg/types"
)

// State is a stage of forwarding one document.
type State int

const (
	NotStarted State = iota
	Uploading
	Uploaded
	Running
	Succeeded
	Failed
	AwaitingResultFile
	Found
	TimedOut
)

var stateNames = [...]string{
	NotStarted:         "not_started",
	Uploading:          "uploading",
	Uploaded:           "uploaded",
	Running:            "running",
	Succeeded:          "succeeded",
	Failed:             "failed",
	AwaitingResultFile: "awaiting_result_file",
	Found:              "found",
	TimedOut:           "timed_out",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Result is the outcome of Forward. Success is true once the workflow run
// succeeded, whether or not the result file was observed.
type Result struct {
	Success         bool
	State           State
	FileID          string
	RunID           string
	ResultFile      string
	FoundResultFile bool
	Error           string
}

// Forwarder uploads Markdown, runs the workflow on it, and waits for its
// result file, recording each stage in the record store.
type Forwarder struct {
	client  *Client
	watcher *ResultWatcher
	records records.Updater
	logger  log.Logger
}

// NewForwarder wires a Forwarder from its parts. A nil rec disables record
// updates.
func NewForwarder(client *Client, watcher *ResultWatcher, rec records.Updater, logger log.Logger) *Forwarder {
	return &Forwarder{
		client:  client,
		watcher: watcher,
		records: rec,
		logger:  log.With(logging.OrNop(logger), "component", "forwarder"),
	}
}

// New builds a Forwarder from cfg using the wall clock.
func New(cfg types.WorkflowConfig, httpClient *http.Client, rec records.Updater, logger log.Logger) *Forwarder {
	return NewForwarder(
		NewClient(cfg, httpClient, logger),
		NewResultWatcher(cfg.ResultDir, cfg.Poll, nil, logger),
		rec,
		logger,
	)
}

// Configured reports whether the workflow service has credentials.
func (f *Forwarder) Configured() bool { return f.client.Configured() }

// Forward forwards the Markdown at mdPath, recording progress under the
// document name <stem>.pdf.
func (f *Forwarder) Forward(ctx context.Context, mdPath, userID string) (*Result, error) {
	return f.ForwardDocument(ctx, Stem(mdPath)+".pdf", mdPath, userID)
}

// ForwardDocument forwards the Markdown at mdPath, recording progress under
// the record name doc. The returned error is nil exactly when Result.Success
// is true; a missing result file is not an error.
func (f *Forwarder) ForwardDocument(ctx context.Context, doc, mdPath, userID string) (*Result, error) {
	res := &Result{State: NotStarted}
	if !f.client.Configured() {
		res.Error = ErrNotConfigured.Error()
		return res, ErrNotConfigured
	}
	stem := Stem(mdPath)
	logger := log.With(f.logger, "doc", doc)

	res.State = Uploading
	f.update(doc, types.RecordUpdate{WorkflowStatus: types.WorkflowStatusUploading})
	level.Info(logger).Log("msg", "uploading markdown", "file", filepath.Base(mdPath), "user", userID)

	fileID, err := f.client.Upload(ctx, mdPath, userID)
	if err != nil {
		return f.fail(logger, doc, res, err)
	}
	res.State = Uploaded
	res.FileID = fileID
	f.update(doc, types.RecordUpdate{WorkflowStatus: types.WorkflowStatusRunning, WorkflowFileID: fileID})

	res.State = Running
	run, err := f.client.Run(ctx, fileID, userID)
	if err != nil {
		return f.fail(logger, doc, res, err)
	}
	res.State = Succeeded
	res.Success = true
	res.RunID = run.WorkflowRunID
	if run.Data.Status != "" && run.Data.Status != "succeeded" {
		level.Warn(logger).Log("msg", "workflow reported non-success status", "status", run.Data.Status, "error", run.Data.Error)
	}

	res.State = AwaitingResultFile
	rf, found, err := f.watcher.Wait(ctx, stem, userID)
	if err != nil {
		res.Success = false
		res.State = Failed
		res.Error = err.Error()
		level.Error(logger).Log("msg", "waiting for result file aborted", "err", err)
		f.update(doc, types.RecordUpdate{WorkflowStatus: types.WorkflowStatusError, WorkflowResult: types.WorkflowResultFailed})
		return res, fmt.Errorf("waiting for result file: %w", err)
	}
	if !found {
		res.State = TimedOut
		level.Warn(logger).Log("msg", "workflow succeeded but no result file appeared", "dir", f.watcher.Dir())
		f.update(doc, types.RecordUpdate{WorkflowStatus: types.WorkflowStatusNoResultFile, WorkflowResult: types.WorkflowResultMissing})
		return res, nil
	}

	res.State = Found
	res.ResultFile = rf.Path
	res.FoundResultFile = true
	level.Info(logger).Log("msg", "workflow complete", "result", filepath.Base(rf.Path))
	f.update(doc, types.RecordUpdate{WorkflowStatus: types.WorkflowStatusCompleted, WorkflowResult: types.WorkflowResultOK})
	return res, nil
}

// fail records a failed upload or run. Rejections by the service and
// transport errors are recorded as failed; local problems such as an
// unreadable file are recorded as error.
func (f *Forwarder) fail(logger log.Logger, doc string, res *Result, err error) (*Result, error) {
	res.Success = false
	res.State = Failed
	res.Error = err.Error()
	level.Error(logger).Log("msg", "workflow failed", "file_id", res.FileID, "err", err)

	status := types.WorkflowStatusFailed
	if isLocal(err) {
		status = types.WorkflowStatusError
	}
	f.update(doc, types.RecordUpdate{WorkflowStatus: status, WorkflowResult: types.WorkflowResultFailed})
	return res, err
}

func (f *Forwarder) update(doc string, u types.RecordUpdate) {
	if f.records != nil {
		f.records.Update(doc, u)
	}
}

// isLocal reports whether err happened before anything reached the network.
func isLocal(err error) bool {
	var pathErr *fs.PathError
	return errors.As(err, &pathErr)
}

// Stem returns the file name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
