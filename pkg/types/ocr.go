// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the docflow pipeline:
// configuration, per-document processing records, and OCR results.
package types

// OCRImage is an image embedded in an OCR page. ImageBase64 may carry a
// "data:" URI prefix.
type OCRImage struct {
	ID          string `json:"id" yaml:"id"`
	ImageBase64 string `json:"image_base64,omitempty" yaml:"image_base64,omitempty"`
}

// OCRPage is one page of an OCR result. Markdown references images with
// placeholders of the form ![id](id).
type OCRPage struct {
	Index    int        `json:"index" yaml:"index"`
	Markdown string     `json:"markdown" yaml:"markdown"`
	Images   []OCRImage `json:"images" yaml:"images"`
}

// OCRUsage reports what the OCR service billed for.
type OCRUsage struct {
	PagesProcessed int `json:"pages_processed" yaml:"pages_processed"`
	DocSizeBytes   int `json:"doc_size_bytes" yaml:"doc_size_bytes"`
}

// OCRResult is the structured response of an OCR job, pages in order.
type OCRResult struct {
	Pages     []OCRPage `json:"pages" yaml:"pages"`
	Model     string    `json:"model,omitempty" yaml:"model,omitempty"`
	UsageInfo OCRUsage  `json:"usage_info" yaml:"usage_info"`
}
