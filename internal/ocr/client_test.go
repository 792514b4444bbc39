// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ocr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docflow/internal/httputil"
	"github.com/pdiddy/docflow/pkg/types"
)

// fakeService records the calls made against it and answers like the OCR API.
type fakeService struct {
	mu    sync.Mutex
	calls []string

	uploadStatus int
	urlStatus    int
	ocrStatus    int
	deleteStatus int

	gotUpload struct {
		purpose  string
		filename string
		content  string
	}
	gotOCR ocrRequest
	gotKey string
}

func (f *fakeService) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	f.gotKey = r.Header.Get("Authorization")
}

func (f *fakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func status(code int) int {
	if code == 0 {
		return http.StatusOK
	}
	return code
}

func (f *fakeService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/files", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if code := status(f.uploadStatus); code != http.StatusOK {
			http.Error(w, "upload rejected", code)
			return
		}
		file, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		body, _ := io.ReadAll(file)
		f.gotUpload.purpose = r.FormValue("purpose")
		f.gotUpload.filename = hdr.Filename
		f.gotUpload.content = string(body)
		json.NewEncoder(w).Encode(map[string]any{"id": "file-123", "filename": hdr.Filename, "purpose": "ocr"})
	})
	mux.HandleFunc("GET /v1/files/{id}/url", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if code := status(f.urlStatus); code != http.StatusOK {
			http.Error(w, "no url", code)
			return
		}
		assert.Equal(t, "file-123", r.PathValue("id"))
		assert.Equal(t, "1", r.URL.Query().Get("expiry"))
		json.NewEncoder(w).Encode(map[string]string{"url": "https://signed.example/doc"})
	})
	mux.HandleFunc("POST /v1/ocr", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if code := status(f.ocrStatus); code != http.StatusOK {
			http.Error(w, "ocr failed", code)
			return
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.gotOCR))
		io.WriteString(w, `{
			"model": "mistral-ocr-latest",
			"pages": [
				{"index": 0, "markdown": "# Title\n\n![img-0.jpeg](img-0.jpeg)", "images": [{"id": "img-0.jpeg", "image_base64": "data:image/jpeg;base64,/9j/AA=="}]},
				{"index": 1, "markdown": "Second page", "images": []}
			],
			"usage_info": {"pages_processed": 2, "doc_size_bytes": 1024}
		}`)
	})
	mux.HandleFunc("DELETE /v1/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if code := status(f.deleteStatus); code != http.StatusOK {
			http.Error(w, "cannot delete", code)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": r.PathValue("id"), "deleted": true})
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeService, apiKey string) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	cfg := types.OCRConfig{HTTPConfig: types.HTTPConfig{BaseURL: srv.URL + "/", APIKey: apiKey}}
	return New(cfg, srv.Client(), nil)
}

func TestProcess_Success(t *testing.T) {
	f := &fakeService{}
	c := newTestClient(t, f, "secret")

	result, err := c.Process(context.Background(), []byte("%PDF-1.4 fake"), "report")
	require.NoError(t, err)

	require.Len(t, result.Pages, 2)
	assert.Equal(t, "img-0.jpeg", result.Pages[0].Images[0].ID)
	assert.Equal(t, "Second page", result.Pages[1].Markdown)
	assert.Equal(t, 2, result.UsageInfo.PagesProcessed)

	assert.Equal(t, []string{
		"POST /v1/files",
		"GET /v1/files/file-123/url",
		"POST /v1/ocr",
		"DELETE /v1/files/file-123",
	}, f.Calls())
	assert.Equal(t, "Bearer secret", f.gotKey)
	assert.Equal(t, "ocr", f.gotUpload.purpose)
	assert.Equal(t, "report", f.gotUpload.filename)
	assert.Equal(t, "%PDF-1.4 fake", f.gotUpload.content)

	assert.Equal(t, DefaultModel, f.gotOCR.Model)
	assert.Equal(t, "document_url", f.gotOCR.Document.Type)
	assert.Equal(t, "https://signed.example/doc", f.gotOCR.Document.DocumentURL)
	assert.True(t, f.gotOCR.IncludeImageBase64)
}

func TestProcess_NotConfigured(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := New(types.OCRConfig{HTTPConfig: types.HTTPConfig{BaseURL: srv.URL}}, srv.Client(), nil)
	_, err := c.Process(context.Background(), []byte("x"), "doc")
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Zero(t, hits.Load())
}

func TestProcess_DeletesUploadOnFailure(t *testing.T) {
	tests := []struct {
		name      string
		service   *fakeService
		wantCalls []string
		wantErr   string
	}{
		{
			name:    "signed URL rejected",
			service: &fakeService{urlStatus: http.StatusNotFound},
			wantCalls: []string{
				"POST /v1/files",
				"GET /v1/files/file-123/url",
				"DELETE /v1/files/file-123",
			},
			wantErr: "requesting signed URL",
		},
		{
			name:    "OCR rejected",
			service: &fakeService{ocrStatus: http.StatusInternalServerError},
			wantCalls: []string{
				"POST /v1/files",
				"GET /v1/files/file-123/url",
				"POST /v1/ocr",
				"DELETE /v1/files/file-123",
			},
			wantErr: "running OCR",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.service, "k")
			_, err := c.Process(context.Background(), []byte("pdf"), "doc")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var se *httputil.StatusError
			assert.ErrorAs(t, err, &se)
			assert.Equal(t, tt.wantCalls, tt.service.Calls())
		})
	}
}

func TestProcess_UploadFailureSkipsDelete(t *testing.T) {
	f := &fakeService{uploadStatus: http.StatusUnauthorized}
	c := newTestClient(t, f, "bad")

	_, err := c.Process(context.Background(), []byte("pdf"), "doc")
	require.Error(t, err)

	var se *httputil.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, []string{"POST /v1/files"}, f.Calls())
}

func TestProcess_DeleteFailureIsNotAnError(t *testing.T) {
	f := &fakeService{deleteStatus: http.StatusInternalServerError}
	c := newTestClient(t, f, "k")

	result, err := c.Process(context.Background(), []byte("pdf"), "doc")
	require.NoError(t, err)
	assert.Len(t, result.Pages, 2)
	assert.Contains(t, f.Calls(), "DELETE /v1/files/file-123")
}

func TestNew_Defaults(t *testing.T) {
	c := New(types.OCRConfig{}, nil, nil)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultModel, c.model)
	assert.Equal(t, 1, c.expiry)
	assert.Equal(t, defaultTimeout, c.http.Timeout)
}
