// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/pdiddy/docflow/internal/preflight"
)

// DryRun checks every path locally without contacting any service and prints
// what a real run would send. Unparseable PDFs count as converted since a
// real run sends them anyway; unreadable files count as failed.
func DryRun(paths []string, w io.Writer) BatchResult {
	var result BatchResult
	var pages int
	for _, path := range paths {
		name := filepath.Base(path)
		r, err := preflight.Check(path)
		switch {
		case errors.Is(err, preflight.ErrUnreadablePDF):
			fmt.Fprintf(w, "warning: %s (%v)\n", name, err)
			result.Converted++
		case err != nil:
			fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
			result.Failed++
		default:
			fmt.Fprintf(w, "ok: %s (%d pages, %d bytes)\n", name, r.Pages, r.Size)
			pages += r.Pages
			result.Converted++
		}
	}
	fmt.Fprintf(w, "\nDry run: %d ready, %d failed, %d pages (total: %d)\n",
		result.Converted, result.Failed, pages, result.Total())
	return result
}
