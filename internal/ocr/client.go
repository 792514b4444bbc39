// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ocr talks to the remote OCR service: it uploads a document,
// obtains a signed URL for it, runs an OCR job against that URL, and deletes
// the upload afterwards.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/pdiddy/docflow/internal/httputil"
	"github.com/pdiddy/docflow/internal/logging"
	"github.com/pdiddy/docflow/pkg/types"
)

// ErrNotConfigured is returned when no OCR API key is set.
var ErrNotConfigured = errors.New("ocr: API key not configured")

const (
	// DefaultBaseURL is the public OCR API root.
	DefaultBaseURL = "https://api.mistral.ai"

	// DefaultModel is the OCR model used when none is configured.
	DefaultModel = "mistral-ocr-latest"

	// minSignedURLExpiry is the shortest signed-URL lifetime the service allows, in hours.
	minSignedURLExpiry = 1

	defaultTimeout = 5 * time.Minute

	purposeOCR = "ocr"
)

// Client is an OCR service client. Construct it with New.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
	expiry  int
	logger  log.Logger
}

// New builds a Client from cfg. A nil httpClient gets one bounded by cfg.Timeout.
func New(cfg types.OCRConfig, httpClient *http.Client, logger log.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	expiry := cfg.SignedURLExpiry
	if expiry < minSignedURLExpiry {
		expiry = minSignedURLExpiry
	}
	return &Client{
		http:    httpClient,
		baseURL: base,
		apiKey:  cfg.APIKey,
		model:   model,
		expiry:  expiry,
		logger:  log.With(logging.OrNop(logger), "component", "ocr"),
	}
}

type uploadedFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Bytes    int64  `json:"bytes"`
	Purpose  string `json:"purpose"`
}

type signedURL struct {
	URL string `json:"url"`
}

type documentChunk struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type ocrRequest struct {
	Model              string        `json:"model"`
	Document           documentChunk `json:"document"`
	IncludeImageBase64 bool          `json:"include_image_base64"`
}

// Process uploads data under the name stem, runs OCR on it, and returns the
// structured result. The upload is always deleted once it exists, whatever
// the OCR outcome; a failed delete is only logged.
func (c *Client) Process(ctx context.Context, data []byte, stem string) (*types.OCRResult, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	level.Info(c.logger).Log("msg", "uploading document", "doc", stem, "bytes", len(data))
	file, err := c.upload(ctx, data, stem)
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", stem, err)
	}

	defer func() {
		if err := c.delete(context.WithoutCancel(ctx), file.ID); err != nil {
			level.Warn(c.logger).Log("msg", "deleting upload failed", "file_id", file.ID, "err", err)
			return
		}
		level.Debug(c.logger).Log("msg", "upload deleted", "file_id", file.ID)
	}()

	u, err := c.signedURL(ctx, file.ID)
	if err != nil {
		return nil, fmt.Errorf("requesting signed URL for %s: %w", stem, err)
	}

	level.Info(c.logger).Log("msg", "running OCR", "doc", stem, "model", c.model)
	result, err := c.ocr(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("running OCR on %s: %w", stem, err)
	}
	level.Info(c.logger).Log("msg", "OCR finished", "doc", stem, "pages", len(result.Pages))
	return result, nil
}

func (c *Client) upload(ctx context.Context, data []byte, stem string) (*uploadedFile, error) {
	body, contentType, err := httputil.MultipartBody(
		map[string]string{"purpose": purposeOCR},
		httputil.FilePart{Field: "file", FileName: stem, ContentType: "application/pdf", Content: bytes.NewReader(data)},
	)
	if err != nil {
		return nil, err
	}

	req, err := httputil.NewRequest(ctx, http.MethodPost, c.baseURL+"/v1/files", c.apiKey, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	var f uploadedFile
	if err := httputil.DoJSON(c.http, req, &f); err != nil {
		return nil, err
	}
	if f.ID == "" {
		return nil, fmt.Errorf("upload response carried no file id")
	}
	return &f, nil
}

func (c *Client) signedURL(ctx context.Context, fileID string) (string, error) {
	q := url.Values{"expiry": {strconv.Itoa(c.expiry)}}
	endpoint := fmt.Sprintf("%s/v1/files/%s/url?%s", c.baseURL, url.PathEscape(fileID), q.Encode())

	req, err := httputil.NewRequest(ctx, http.MethodGet, endpoint, c.apiKey, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	var s signedURL
	if err := httputil.DoJSON(c.http, req, &s); err != nil {
		return "", err
	}
	if s.URL == "" {
		return "", fmt.Errorf("signed URL response was empty")
	}
	return s.URL, nil
}

func (c *Client) ocr(ctx context.Context, documentURL string) (*types.OCRResult, error) {
	payload, err := json.Marshal(ocrRequest{
		Model:              c.model,
		Document:           documentChunk{Type: "document_url", DocumentURL: documentURL},
		IncludeImageBase64: true,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding OCR request: %w", err)
	}

	req, err := httputil.NewRequest(ctx, http.MethodPost, c.baseURL+"/v1/ocr", c.apiKey, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var result types.OCRResult
	if err := httputil.DoJSON(c.http, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) delete(ctx context.Context, fileID string) error {
	req, err := httputil.NewRequest(ctx, http.MethodDelete, c.baseURL+"/v1/files/"+url.PathEscape(fileID), c.apiKey, nil)
	if err != nil {
		return err
	}
	_, err = httputil.Do(c.http, req)
	return err
}
