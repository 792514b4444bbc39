// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the OCR and workflow clients.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"slices"
	"sort"
	"strings"
)

// maxErrorBody caps how much of a rejected response body is kept in a StatusError.
const maxErrorBody = 2048

// StatusError reports a response whose status code the caller did not accept.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.Code)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// NewRequest builds a request carrying a bearer token. An empty apiKey
// leaves the Authorization header unset.
func NewRequest(ctx context.Context, method, url, apiKey string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return req, nil
}

// Do executes req and returns the full response body. When accept is empty
// any 2xx status is accepted; otherwise only the listed codes are. Any other
// status yields a *StatusError carrying a prefix of the body.
func Do(client *http.Client, req *http.Request, accept ...int) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if !accepted(resp.StatusCode, accept) {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &StatusError{
			Method: req.Method,
			URL:    req.URL.Redacted(),
			Code:   resp.StatusCode,
			Body:   snippet,
		}
	}
	return body, nil
}

// DoJSON executes req like Do and decodes the JSON response into v.
func DoJSON(client *http.Client, req *http.Request, v any, accept ...int) error {
	body, err := Do(client, req, accept...)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func accepted(code int, accept []int) bool {
	if len(accept) == 0 {
		return code >= 200 && code < 300
	}
	return slices.Contains(accept, code)
}

// FilePart describes the single file attached to a multipart form.
type FilePart struct {
	Field       string
	FileName    string
	ContentType string
	Content     io.Reader
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// MultipartBody encodes fields (in key order) followed by file as a
// multipart/form-data body. It returns the body and its Content-Type.
func MultipartBody(fields map[string]string, file FilePart) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", k, err)
		}
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(file.Field), quoteEscaper.Replace(file.FileName)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating file part: %w", err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return nil, "", fmt.Errorf("writing file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
