// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert runs documents through OCR, Markdown materialization, and
// optional workflow forwarding, recording every stage in the record store.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	"github.com/pdiddy/docflow/internal/logging"
	"github.com/pdiddy/docflow/internal/markdown"
	"github.com/pdiddy/docflow/internal/preflight"
	"github.com/pdiddy/docflow/internal/records"
	"github.com/pdiddy/docflow/internal/workflow"
	"github.com/pdiddy/docflow/pkg/types"
)

// Record notes written during conversion.
const (
	NoteOCRInProgress      = "OCR in progress..."
	NoteOCRComplete        = "OCR complete"
	NoteOCRPartial         = "OCR partial: missing "
	NoteWorkflowInProgress = "workflow in progress..."
	NoteWorkflowComplete   = " + workflow complete"
	NoteWorkflowNoFile     = " + workflow succeeded but no result file"
	NoteWorkflowFailed     = " + workflow failed: "
	NoteOCRError           = "OCR error: "
)

// OCR extracts structured pages from a document.
type OCR interface {
	Process(ctx context.Context, data []byte, stem string) (*types.OCRResult, error)
}

// Materializer writes an OCR result to disk.
type Materializer interface {
	Materialize(result *types.OCRResult, stem string) (markdown.Output, error)
}

// Forwarder sends generated Markdown to the workflow service.
type Forwarder interface {
	ForwardDocument(ctx context.Context, doc, mdPath, userID string) (*workflow.Result, error)
}

// Pipeline converts documents one at a time.
type Pipeline struct {
	ocr          OCR
	materializer Materializer
	records      records.Updater
	forwarder    Forwarder
	user         string
	skipExisting bool
	markdownDir  string
	logger       log.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithForwarder enables workflow forwarding. An empty user forwards each
// document as user_<stem>.
func WithForwarder(f Forwarder, user string) Option {
	return func(p *Pipeline) {
		p.forwarder = f
		p.user = user
	}
}

// WithSkipExisting makes ConvertBatch skip documents whose <stem>.md already
// exists in markdownDir.
func WithSkipExisting(markdownDir string) Option {
	return func(p *Pipeline) {
		p.skipExisting = true
		p.markdownDir = markdownDir
	}
}

// New builds a Pipeline. rec must not be nil.
func New(ocr OCR, m Materializer, rec records.Updater, logger log.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		ocr:          ocr,
		materializer: m,
		records:      rec,
		logger:       log.With(logging.OrNop(logger), "component", "pipeline"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// BatchResult holds the outcome of a batch run.
type BatchResult struct {
	RunID     string
	Converted int
	Skipped   int
	Failed    int
	// Stopped counts documents never started because the batch was stopped.
	Stopped int
}

// Total returns the number of documents the batch considered.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed + r.Stopped
}

// HasFailures reports whether any document failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// ConvertDocument runs one document through the pipeline and reports whether
// Markdown was produced. Every failure is recorded in the document's note;
// none is returned.
func (p *Pipeline) ConvertDocument(ctx context.Context, path string) bool {
	ok, _ := p.convert(ctx, path)
	return ok
}

func (p *Pipeline) convert(ctx context.Context, path string) (bool, string) {
	name := filepath.Base(path)
	stem := workflow.Stem(path)
	logger := log.With(p.logger, "doc", name)

	level.Info(logger).Log("msg", "processing started")
	p.records.Update(name, types.RecordUpdate{Note: NoteOCRInProgress})

	data, err := p.read(logger, path)
	if err != nil {
		return p.fail(logger, name, err)
	}

	result, err := p.ocr.Process(ctx, data, stem)
	if err != nil {
		return p.fail(logger, name, err)
	}

	out, err := p.materializer.Materialize(result, stem)
	if err != nil {
		level.Error(logger).Log("msg", "materializing failed", "err", err)
	}

	hasMarkdown := out.MarkdownPath != ""
	hasImages := out.ImageCount > 0
	note := ocrNote(hasMarkdown, hasImages)
	p.records.Update(name, types.RecordUpdate{
		Markdown:   records.Bool(hasMarkdown),
		Images:     records.Bool(hasImages),
		ImageCount: records.Int(out.ImageCount),
		Note:       note,
	})

	if p.forwarder != nil && hasMarkdown {
		note += p.forward(ctx, logger, name, stem, out.MarkdownPath)
		p.records.Update(name, types.RecordUpdate{Note: note})
	}

	level.Info(logger).Log("msg", "processing finished", "markdown", hasMarkdown, "images", out.ImageCount)
	return hasMarkdown, note
}

// read runs the local preflight check and returns the document bytes. A PDF
// whose structure cannot be parsed locally is still sent to OCR.
func (p *Pipeline) read(logger log.Logger, path string) ([]byte, error) {
	report, err := preflight.Check(path)
	switch {
	case errors.Is(err, preflight.ErrUnreadablePDF):
		level.Warn(logger).Log("msg", "preflight could not parse PDF, sending anyway", "err", err)
	case err != nil:
		return nil, err
	default:
		level.Debug(logger).Log("msg", "preflight ok", "bytes", report.Size, "pages", report.Pages)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func (p *Pipeline) forward(ctx context.Context, logger log.Logger, name, stem, mdPath string) string {
	p.records.Update(name, types.RecordUpdate{Note: NoteWorkflowInProgress})

	user := p.user
	if user == "" {
		user = "user_" + stem
	}
	level.Info(logger).Log("msg", "forwarding to workflow", "user", user)

	res, err := p.forwarder.ForwardDocument(ctx, name, mdPath, user)
	switch {
	case err != nil:
		level.Error(logger).Log("msg", "workflow failed", "err", err)
		return NoteWorkflowFailed + err.Error()
	case res.FoundResultFile:
		return NoteWorkflowComplete
	default:
		return NoteWorkflowNoFile
	}
}

func (p *Pipeline) fail(logger log.Logger, name string, err error) (bool, string) {
	level.Error(logger).Log("msg", "processing failed", "err", err)
	note := NoteOCRError + err.Error()
	p.records.Update(name, types.RecordUpdate{Note: note})
	return false, note
}

func ocrNote(hasMarkdown, hasImages bool) string {
	if hasMarkdown && hasImages {
		return NoteOCRComplete
	}
	var missing []string
	if !hasMarkdown {
		missing = append(missing, "MD")
	}
	if !hasImages {
		missing = append(missing, "images")
	}
	return NoteOCRPartial + strings.Join(missing, ", ")
}

// ConvertBatch converts paths strictly in order, printing a status line per
// document to w and a summary at the end. stop is checked between documents
// only; a document already started runs to completion.
func (p *Pipeline) ConvertBatch(stop context.Context, paths []string, w io.Writer) BatchResult {
	result := BatchResult{RunID: uuid.NewString()}
	logger := log.With(p.logger, "run", result.RunID)
	level.Info(logger).Log("msg", "batch started", "documents", len(paths))
	fmt.Fprintf(w, "batch %s: %d document(s)\n", result.RunID, len(paths))

	for i, path := range paths {
		if stop.Err() != nil {
			result.Stopped = len(paths) - i
			fmt.Fprintf(w, "stopped: %d document(s) not processed\n", result.Stopped)
			level.Warn(logger).Log("msg", "batch stopped", "remaining", result.Stopped)
			break
		}

		name := filepath.Base(path)
		if p.exists(path) {
			fmt.Fprintf(w, "skipped: %s (already exists)\n", name)
			result.Skipped++
			continue
		}

		ok, note := p.convert(context.WithoutCancel(stop), path)
		if ok {
			fmt.Fprintf(w, "converted: %s (%s)\n", name, note)
			result.Converted++
		} else {
			fmt.Fprintf(w, "failed:  %s (%s)\n", name, note)
			result.Failed++
		}
	}

	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed, %d stopped (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Stopped, result.Total())
	level.Info(logger).Log("msg", "batch finished", "converted", result.Converted, "skipped", result.Skipped,
		"failed", result.Failed, "stopped", result.Stopped)
	return result
}

func (p *Pipeline) exists(path string) bool {
	if !p.skipExisting {
		return false
	}
	_, err := os.Stat(filepath.Join(p.markdownDir, workflow.Stem(path)+".md"))
	return err == nil
}
