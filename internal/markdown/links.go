// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package markdown

import (
	"net/url"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ImageLinks parses src as Markdown and returns the destination of every
// image node, in document order.
func ImageLinks(src []byte) []string {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var links []string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if img, ok := n.(*ast.Image); ok {
			links = append(links, string(img.Destination))
		}
		return ast.WalkContinue, nil
	})
	return links
}

// UnresolvedLinks returns the local image links in src that do not name an
// existing file relative to baseDir. Links with a URL scheme are ignored.
func UnresolvedLinks(src []byte, baseDir string) []string {
	var missing []string
	for _, link := range ImageLinks(src) {
		if u, err := url.Parse(link); err == nil && u.Scheme != "" {
			continue
		}
		p := filepath.FromSlash(link)
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, link)
		}
	}
	return missing
}
