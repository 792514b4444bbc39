// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package markdown turns an OCR result into files on disk: one image file per
// embedded image and one Markdown document per input, with image
// placeholders rewritten to point at the saved files.
package markdown

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/pdiddy/docflow/internal/logging"
	"github.com/pdiddy/docflow/pkg/types"
)

// TimeLayout is the timestamp format written into the Markdown header.
const TimeLayout = "2006-01-02 15:04:05"

var errNoPayload = errors.New("image has no payload")

// Output describes what Materialize wrote.
type Output struct {
	// MarkdownPath is the written <stem>.md, or empty when assembly failed.
	MarkdownPath string

	// ImageCount is the number of images saved.
	ImageCount int

	// Images are the saved image paths, in page then image order.
	Images []string

	// Unresolved lists image links in the Markdown that point at no file.
	Unresolved []string
}

// Materializer writes OCR results below a Markdown directory and an image
// directory.
type Materializer struct {
	markdownDir string
	imageDir    string
	logger      log.Logger
	now         func() time.Time
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithClock sets the time source used for the header timestamp.
func WithClock(now func() time.Time) Option {
	return func(m *Materializer) { m.now = now }
}

// New returns a Materializer writing to the directories in cfg.
func New(cfg types.OutputConfig, logger log.Logger, opts ...Option) *Materializer {
	m := &Materializer{
		markdownDir: cfg.MarkdownDir,
		imageDir:    cfg.ImageDir,
		logger:      log.With(logging.OrNop(logger), "component", "markdown"),
		now:         time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Materialize saves the images of result under <imageDir>/<stem>/ and writes
// <markdownDir>/<stem>.md. Individual image failures are logged and skipped.
// If the image directory cannot be created nothing is written and the zero
// Output is returned with the error. If the Markdown cannot be written the
// Output carries the image count but no MarkdownPath.
func (m *Materializer) Materialize(result *types.OCRResult, stem string) (Output, error) {
	if result == nil {
		return Output{}, fmt.Errorf("materializing %s: no OCR result", stem)
	}

	imgDir := filepath.Join(m.imageDir, stem)
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		level.Error(m.logger).Log("msg", "creating image directory failed", "doc", stem, "err", err)
		return Output{}, fmt.Errorf("creating image directory: %w", err)
	}

	level.Info(m.logger).Log("msg", "saving images", "doc", stem)
	out := Output{}
	refs := make(map[string]string)
	for p, page := range result.Pages {
		for i, img := range page.Images {
			path, err := m.saveImage(imgDir, stem, p+1, i+1, img)
			if err != nil {
				if errors.Is(err, errNoPayload) {
					level.Debug(m.logger).Log("msg", "skipping image", "doc", stem, "page", p+1, "image", img.ID, "err", err)
				} else {
					level.Error(m.logger).Log("msg", "saving image failed", "doc", stem, "page", p+1, "image", img.ID, "err", err)
				}
				continue
			}
			out.Images = append(out.Images, path)
			out.ImageCount++
			if img.ID != "" {
				rel, err := m.relativeToMarkdown(path)
				if err != nil {
					level.Warn(m.logger).Log("msg", "cannot relativize image path", "path", path, "err", err)
					continue
				}
				refs[img.ID] = rel
			}
		}
	}
	level.Info(m.logger).Log("msg", "images saved", "doc", stem, "count", out.ImageCount)

	content := m.assemble(result, stem, refs, out.ImageCount)
	mdPath, err := m.writeMarkdown(stem, content)
	if err != nil {
		level.Error(m.logger).Log("msg", "writing markdown failed", "doc", stem, "err", err)
		return out, err
	}
	out.MarkdownPath = mdPath

	out.Unresolved = UnresolvedLinks([]byte(content), filepath.Dir(mdPath))
	if len(out.Unresolved) > 0 {
		level.Warn(m.logger).Log("msg", "markdown has unresolved image links", "doc", stem, "count", len(out.Unresolved), "first", out.Unresolved[0])
	}
	level.Info(m.logger).Log("msg", "markdown written", "doc", stem, "path", mdPath)
	return out, nil
}

func (m *Materializer) saveImage(dir, stem string, page, index int, img types.OCRImage) (string, error) {
	data, err := DecodeImage(img.ImageBase64)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_p%d_img%02d.%s", stem, page, index, DetectImageFormat(data))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	level.Debug(m.logger).Log("msg", "image saved", "file", name, "bytes", len(data))
	return path, nil
}

// relativeToMarkdown returns path relative to the Markdown directory, with
// forward slashes, so links resolve from the written document.
func (m *Materializer) relativeToMarkdown(path string) (string, error) {
	base, err := filepath.Abs(m.markdownDir)
	if err != nil {
		return "", err
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func (m *Materializer) assemble(result *types.OCRResult, stem string, refs map[string]string, images int) string {
	var b strings.Builder
	b.WriteString(Header(stem, m.now(), images))

	pages := make([]string, len(result.Pages))
	for i, page := range result.Pages {
		pages[i] = RewriteImageRefs(page.Markdown, refs)
	}
	b.WriteString(strings.Join(pages, "\n\n"))
	return b.String()
}

func (m *Materializer) writeMarkdown(stem, content string) (string, error) {
	if err := os.MkdirAll(m.markdownDir, 0o755); err != nil {
		return "", fmt.Errorf("creating markdown directory: %w", err)
	}
	path := filepath.Join(m.markdownDir, stem+".md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// Header returns the comment block that opens every generated document,
// followed by a blank line.
func Header(stem string, generated time.Time, images int) string {
	return fmt.Sprintf("<!-- docflow -->\n<!-- source: %s.pdf -->\n<!-- generated: %s -->\n<!-- images: %d -->\n\n",
		stem, generated.Format(TimeLayout), images)
}

// DecodeImage decodes an OCR image payload. A "data:" URI prefix is
// stripped; a prefix without a comma or an empty payload yields an error.
// Characters outside the base64 alphabet, such as line breaks and spaces,
// are dropped before decoding.
func DecodeImage(payload string) ([]byte, error) {
	if payload == "" {
		return nil, errNoPayload
	}
	if strings.HasPrefix(payload, "data:") {
		_, rest, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, fmt.Errorf("malformed data URI: %w", errNoPayload)
		}
		payload = rest
	}
	payload = strings.Map(base64Char, payload)
	if payload == "" {
		return nil, errNoPayload
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("decoding base64: %w", err)
		}
		data = raw
	}
	return data, nil
}

func base64Char(r rune) rune {
	switch {
	case 'A' <= r && r <= 'Z', 'a' <= r && r <= 'z', '0' <= r && r <= '9':
		return r
	case r == '+' || r == '/' || r == '=':
		return r
	}
	return -1
}
