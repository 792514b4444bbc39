// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docflow/internal/markdown"
	"github.com/pdiddy/docflow/internal/preflight"
	"github.com/pdiddy/docflow/internal/records"
	"github.com/pdiddy/docflow/internal/workflow"
	"github.com/pdiddy/docflow/pkg/types"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")

// fakeOCR returns a canned result per stem. during, when set, runs inside
// Process with the context the pipeline passed in.
type fakeOCR struct {
	results map[string]*types.OCRResult
	errs    map[string]error
	calls   []string
	during  func(ctx context.Context, stem string)
}

func (f *fakeOCR) Process(ctx context.Context, data []byte, stem string) (*types.OCRResult, error) {
	f.calls = append(f.calls, stem)
	if f.during != nil {
		f.during(ctx, stem)
	}
	if err, ok := f.errs[stem]; ok {
		return nil, err
	}
	if r, ok := f.results[stem]; ok {
		return r, nil
	}
	return &types.OCRResult{Pages: []types.OCRPage{{Markdown: "# " + stem}}}, nil
}

func withImage(stem string) *types.OCRResult {
	return &types.OCRResult{Pages: []types.OCRPage{
		{Markdown: "# " + stem + "\n\n![img-0.png](img-0.png)", Images: []types.OCRImage{
			{ID: "img-0.png", ImageBase64: base64.StdEncoding.EncodeToString(pngBytes)},
		}},
		{Markdown: "page two"},
	}}
}

type fakeMaterializer struct {
	out markdown.Output
	err error
}

func (f *fakeMaterializer) Materialize(*types.OCRResult, string) (markdown.Output, error) {
	return f.out, f.err
}

type forwardCall struct {
	doc, mdPath, user string
}

type fakeForwarder struct {
	result *workflow.Result
	err    error
	calls  []forwardCall
}

func (f *fakeForwarder) ForwardDocument(_ context.Context, doc, mdPath, user string) (*workflow.Result, error) {
	f.calls = append(f.calls, forwardCall{doc, mdPath, user})
	if f.err != nil {
		return &workflow.Result{State: workflow.Failed, Error: f.err.Error()}, f.err
	}
	return f.result, nil
}

// noteLog records every note written, then applies the update to the store.
type noteLog struct {
	mu    sync.Mutex
	store *records.Store
	notes []string
}

func (n *noteLog) Update(name string, u types.RecordUpdate) {
	n.mu.Lock()
	if u.Note != "" {
		n.notes = append(n.notes, u.Note)
	}
	n.mu.Unlock()
	n.store.Update(name, u)
}

type nopPersister struct{}

func (nopPersister) Load() ([]types.ProcessingRecord, error) { return nil, nil }
func (nopPersister) Save([]types.ProcessingRecord) error     { return nil }

type env struct {
	dir     string
	outDir  types.OutputConfig
	notes   *noteLog
	ocr     *fakeOCR
	matl    Materializer
	pipeline *Pipeline
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	dir := t.TempDir()
	store, err := records.Open(nopPersister{}, nil)
	require.NoError(t, err)
	out := types.OutputConfig{
		MarkdownDir: filepath.Join(dir, "output", "markdown"),
		ImageDir:    filepath.Join(dir, "output", "images"),
	}
	e := &env{
		dir:    dir,
		outDir: out,
		notes:  &noteLog{store: store},
		ocr:    &fakeOCR{results: map[string]*types.OCRResult{}, errs: map[string]error{}},
		matl:   markdown.New(out, nil),
	}
	e.pipeline = New(e.ocr, e.matl, e.notes, nil, opts...)
	return e
}

func (e *env) pdf(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, preflight.MinimalPDF(2), 0o644))
	return path
}

func (e *env) record(t *testing.T, name string) types.ProcessingRecord {
	t.Helper()
	r, ok := e.notes.store.Get(name)
	require.True(t, ok, "record %s", name)
	return r
}

func TestConvertDocument_Complete(t *testing.T) {
	e := newEnv(t)
	e.ocr.results["report"] = withImage("report")

	ok := e.pipeline.ConvertDocument(context.Background(), e.pdf(t, "report.pdf"))
	require.True(t, ok)

	r := e.record(t, "report.pdf")
	assert.Equal(t, types.FlagYes, r.Markdown)
	assert.Equal(t, types.FlagYes, r.Images)
	assert.Equal(t, 1, r.ImageCount)
	assert.Equal(t, NoteOCRComplete, r.Note)
	assert.Equal(t, []string{NoteOCRInProgress, NoteOCRComplete}, e.notes.notes)

	md, err := os.ReadFile(filepath.Join(e.outDir.MarkdownDir, "report.md"))
	require.NoError(t, err)
	assert.Equal(t, []string{"../images/report/report_p1_img01.png"}, markdown.ImageLinks(md))
}

func TestConvertDocument_Outcomes(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(e *env)
		matl      Materializer
		wantOK    bool
		wantNote  string
		wantFlags [2]types.Flag
	}{
		{
			name:      "no images",
			wantOK:    true,
			wantNote:  "OCR partial: missing images",
			wantFlags: [2]types.Flag{types.FlagYes, types.FlagNo},
		},
		{
			name:      "ocr error",
			setup:     func(e *env) { e.ocr.errs["doc"] = errors.New("HTTP 401") },
			wantOK:    false,
			wantNote:  "OCR error: HTTP 401",
			wantFlags: [2]types.Flag{types.FlagUnset, types.FlagUnset},
		},
		{
			name:      "markdown not written",
			matl:      &fakeMaterializer{err: errors.New("disk full")},
			wantOK:    false,
			wantNote:  "OCR partial: missing MD, images",
			wantFlags: [2]types.Flag{types.FlagNo, types.FlagNo},
		},
		{
			name:      "images saved but markdown not written",
			matl:      &fakeMaterializer{out: markdown.Output{ImageCount: 2}, err: errors.New("disk full")},
			wantOK:    false,
			wantNote:  "OCR partial: missing MD",
			wantFlags: [2]types.Flag{types.FlagNo, types.FlagYes},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			if tt.setup != nil {
				tt.setup(e)
			}
			p := e.pipeline
			if tt.matl != nil {
				p = New(e.ocr, tt.matl, e.notes, nil)
			}

			ok := p.ConvertDocument(context.Background(), e.pdf(t, "doc.pdf"))
			assert.Equal(t, tt.wantOK, ok)

			r := e.record(t, "doc.pdf")
			assert.Equal(t, tt.wantNote, r.Note)
			assert.Equal(t, tt.wantFlags[0], r.Markdown)
			assert.Equal(t, tt.wantFlags[1], r.Images)
			assert.False(t, r.FirstProcessedAt.IsZero())
		})
	}
}

func TestConvertDocument_MissingFileSkipsOCR(t *testing.T) {
	e := newEnv(t)

	ok := e.pipeline.ConvertDocument(context.Background(), filepath.Join(e.dir, "ghost.pdf"))
	assert.False(t, ok)
	assert.Empty(t, e.ocr.calls)
	assert.True(t, strings.HasPrefix(e.record(t, "ghost.pdf").Note, NoteOCRError))
}

func TestConvertDocument_UnparseablePDFStillSent(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(e.dir, "odd.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7 scanner output"), 0o644))

	ok := e.pipeline.ConvertDocument(context.Background(), path)
	assert.True(t, ok)
	assert.Equal(t, []string{"odd"}, e.ocr.calls)
}

func TestConvertDocument_Workflow(t *testing.T) {
	tests := []struct {
		name      string
		forwarder *fakeForwarder
		user      string
		wantNote  string
		wantUser  string
	}{
		{
			name:      "result file found",
			forwarder: &fakeForwarder{result: &workflow.Result{Success: true, FoundResultFile: true, State: workflow.Found}},
			wantNote:  "OCR complete + workflow complete",
			wantUser:  "user_report",
		},
		{
			name:      "no result file",
			forwarder: &fakeForwarder{result: &workflow.Result{Success: true, State: workflow.TimedOut}},
			wantNote:  "OCR complete + workflow succeeded but no result file",
			wantUser:  "user_report",
		},
		{
			name:      "workflow failed",
			forwarder: &fakeForwarder{err: errors.New("running workflow: HTTP 500")},
			wantNote:  "OCR complete + workflow failed: running workflow: HTTP 500",
			wantUser:  "user_report",
		},
		{
			name:      "configured user",
			forwarder: &fakeForwarder{result: &workflow.Result{Success: true, FoundResultFile: true}},
			user:      "batch_user",
			wantNote:  "OCR complete + workflow complete",
			wantUser:  "batch_user",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, WithForwarder(tt.forwarder, tt.user))
			e.ocr.results["report"] = withImage("report")

			ok := e.pipeline.ConvertDocument(context.Background(), e.pdf(t, "report.pdf"))
			assert.True(t, ok, "success means markdown was produced")

			require.Len(t, tt.forwarder.calls, 1)
			call := tt.forwarder.calls[0]
			assert.Equal(t, "report.pdf", call.doc)
			assert.Equal(t, filepath.Join(e.outDir.MarkdownDir, "report.md"), call.mdPath)
			assert.Equal(t, tt.wantUser, call.user)

			assert.Equal(t, tt.wantNote, e.record(t, "report.pdf").Note)
			assert.Equal(t, []string{NoteOCRInProgress, NoteOCRComplete, NoteWorkflowInProgress, tt.wantNote}, e.notes.notes)
		})
	}
}

func TestConvertDocument_NoForwardWithoutMarkdown(t *testing.T) {
	fwd := &fakeForwarder{result: &workflow.Result{Success: true}}
	e := newEnv(t, WithForwarder(fwd, ""))
	e.ocr.errs["doc"] = errors.New("timeout")

	assert.False(t, e.pipeline.ConvertDocument(context.Background(), e.pdf(t, "doc.pdf")))
	assert.Empty(t, fwd.calls)
}

func TestConvertBatch(t *testing.T) {
	e := newEnv(t)
	e.ocr.errs["b"] = errors.New("bad pdf")
	paths := []string{e.pdf(t, "a.pdf"), e.pdf(t, "b.pdf"), e.pdf(t, "c.pdf")}

	var out bytes.Buffer
	result := e.pipeline.ConvertBatch(context.Background(), paths, &out)

	assert.Equal(t, 2, result.Converted)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Stopped)
	assert.True(t, result.HasFailures())
	assert.Equal(t, 3, result.Total())
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, []string{"a", "b", "c"}, e.ocr.calls)

	log := out.String()
	assert.Contains(t, log, "converted: a.pdf")
	assert.Contains(t, log, "failed:  b.pdf (OCR error: bad pdf)")
	assert.Contains(t, log, "Batch summary: 2 converted, 0 skipped, 1 failed, 0 stopped (total: 3)")
}

func TestConvertBatch_StopBetweenDocuments(t *testing.T) {
	e := newEnv(t)
	stop, cancel := context.WithCancel(context.Background())
	defer cancel()

	var inFlightErr error
	e.ocr.during = func(ctx context.Context, stem string) {
		if stem == "a" {
			cancel()
			inFlightErr = ctx.Err()
		}
	}
	paths := []string{e.pdf(t, "a.pdf"), e.pdf(t, "b.pdf"), e.pdf(t, "c.pdf")}

	var out bytes.Buffer
	result := e.pipeline.ConvertBatch(stop, paths, &out)

	assert.NoError(t, inFlightErr, "a started document must not see the stop")
	assert.Equal(t, 1, result.Converted)
	assert.Equal(t, 2, result.Stopped)
	assert.Equal(t, []string{"a"}, e.ocr.calls)
	assert.Contains(t, out.String(), "stopped: 2 document(s) not processed")

	_, ok := e.notes.store.Get("b.pdf")
	assert.False(t, ok)
}

func TestConvertBatch_SkipExisting(t *testing.T) {
	e := newEnv(t)
	e.pipeline = New(e.ocr, e.matl, e.notes, nil, WithSkipExisting(e.outDir.MarkdownDir))
	require.NoError(t, os.MkdirAll(e.outDir.MarkdownDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.outDir.MarkdownDir, "a.md"), []byte("existing"), 0o644))

	var out bytes.Buffer
	result := e.pipeline.ConvertBatch(context.Background(), []string{e.pdf(t, "a.pdf"), e.pdf(t, "b.pdf")}, &out)

	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Converted)
	assert.Equal(t, []string{"b"}, e.ocr.calls)
	assert.Contains(t, out.String(), "skipped: a.pdf (already exists)")
}

func TestDryRun(t *testing.T) {
	e := newEnv(t)
	good := e.pdf(t, "good.pdf")
	odd := filepath.Join(e.dir, "odd.pdf")
	require.NoError(t, os.WriteFile(odd, []byte("%PDF-1.7 ?"), 0o644))
	empty := filepath.Join(e.dir, "empty.pdf")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	var out bytes.Buffer
	result := DryRun([]string{good, odd, empty}, &out)

	assert.Equal(t, 2, result.Converted)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, out.String(), "ok: good.pdf (2 pages,")
	assert.Contains(t, out.String(), "warning: odd.pdf")
	assert.Contains(t, out.String(), "failed:  empty.pdf")
	assert.Empty(t, e.ocr.calls)
}
