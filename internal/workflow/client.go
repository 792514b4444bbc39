// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/pdiddy/docflow/internal/httputil"
	"github.com/pdiddy/docflow/internal/logging"
	"github.com/pdiddy/docflow/pkg/types"
)

// ErrNotConfigured is returned when no workflow API key is set.
var ErrNotConfigured = errors.New("workflow: API key not configured")

const (
	// DefaultBaseURL is used when no workflow base URL is configured.
	DefaultBaseURL = "http://localhost"

	defaultUploadTimeout = 30 * time.Second
	defaultRunTimeout    = 300 * time.Second

	responseModeBlocking = "blocking"
	transferLocalFile    = "local_file"
	fileTypeDocument     = "document"
)

// Client calls the workflow service: file upload and blocking workflow runs.
type Client struct {
	http          *http.Client
	baseURL       string
	apiKey        string
	uploadTimeout time.Duration
	runTimeout    time.Duration
	logger        log.Logger
}

// NewClient builds a Client from cfg. Timeouts are applied per call through
// the request context, so httpClient should not set its own.
func NewClient(cfg types.WorkflowConfig, httpClient *http.Client, logger log.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	upload := cfg.UploadTimeout
	if upload <= 0 {
		upload = defaultUploadTimeout
	}
	run := cfg.Timeout
	if run <= 0 {
		run = defaultRunTimeout
	}
	return &Client{
		http:          httpClient,
		baseURL:       base,
		apiKey:        cfg.APIKey,
		uploadTimeout: upload,
		runTimeout:    run,
		logger:        log.With(logging.OrNop(logger), "component", "workflow"),
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool { return c.apiKey != "" }

type uploadResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
	MimeType  string `json:"mime_type"`
}

// Upload sends the Markdown file at path as a document attachment and
// returns the service's file id.
func (c *Client) Upload(ctx context.Context, path, user string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	body, contentType, err := httputil.MultipartBody(
		map[string]string{"user": user, "type": fileTypeDocument},
		httputil.FilePart{Field: "file", FileName: filepath.Base(path), ContentType: "text/markdown", Content: f},
	)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	req, err := httputil.NewRequest(ctx, http.MethodPost, c.baseURL+"/v1/files/upload", c.apiKey, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	var resp uploadResponse
	if err := httputil.DoJSON(c.http, req, &resp, http.StatusOK, http.StatusCreated); err != nil {
		return "", fmt.Errorf("uploading %s: %w", filepath.Base(path), err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("uploading %s: response carried no file id", filepath.Base(path))
	}
	level.Info(c.logger).Log("msg", "file uploaded", "file", filepath.Base(path), "file_id", resp.ID)
	return resp.ID, nil
}

type fileInput struct {
	TransferMethod string `json:"transfer_method"`
	UploadFileID   string `json:"upload_file_id"`
	Type           string `json:"type"`
}

type runRequest struct {
	Inputs       map[string]fileInput `json:"inputs"`
	ResponseMode string               `json:"response_mode"`
	User         string               `json:"user"`
}

// RunResponse is the blocking-mode response of a workflow run.
type RunResponse struct {
	WorkflowRunID string  `json:"workflow_run_id"`
	TaskID        string  `json:"task_id"`
	Data          RunData `json:"data"`
}

// RunData carries the outcome of a workflow run.
type RunData struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	Status      string         `json:"status"`
	Outputs     map[string]any `json:"outputs"`
	Error       string         `json:"error"`
	ElapsedTime float64        `json:"elapsed_time"`
	TotalTokens int            `json:"total_tokens"`
}

// Run triggers a blocking workflow run over the uploaded file. Only HTTP 200
// counts as success.
func (c *Client) Run(ctx context.Context, fileID, user string) (*RunResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	payload, err := json.Marshal(runRequest{
		Inputs: map[string]fileInput{
			"file": {TransferMethod: transferLocalFile, UploadFileID: fileID, Type: fileTypeDocument},
		},
		ResponseMode: responseModeBlocking,
		User:         user,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding workflow request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.runTimeout)
	defer cancel()

	req, err := httputil.NewRequest(ctx, http.MethodPost, c.baseURL+"/v1/workflows/run", c.apiKey, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	level.Debug(c.logger).Log("msg", "running workflow", "file_id", fileID, "user", user)
	var resp RunResponse
	if err := httputil.DoJSON(c.http, req, &resp, http.StatusOK); err != nil {
		return nil, fmt.Errorf("running workflow: %w", err)
	}
	level.Info(c.logger).Log("msg", "workflow finished", "file_id", fileID,
		"run_id", resp.WorkflowRunID, "status", resp.Data.Status, "elapsed", resp.Data.ElapsedTime)
	return &resp, nil
}
