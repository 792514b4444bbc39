// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package records

import (
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docflow/pkg/types"
)

// ExportYAML writes records to w as a YAML sequence.
func ExportYAML(w io.Writer, records []types.ProcessingRecord) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes records to w as an indented JSON array.
func ExportJSON(w io.Writer, records []types.ProcessingRecord) error {
	if records == nil {
		records = []types.ProcessingRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}
