// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docflow/internal/records"
	"github.com/pdiddy/docflow/pkg/types"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect the per-document processing table",
	Long: `Records reads the processing table (spreadsheet or SQLite, per
records.backend) and lists or exports it.`,
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List processing records",
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := loadRecords()
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No records.")
			return nil
		}
		return printRecords(os.Stdout, recs)
	},
}

var recordsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export processing records as YAML or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		recs, err := loadRecords()
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			defer f.Close()
			w = f
		}

		switch format {
		case "yaml":
			err = records.ExportYAML(w, recs)
		case "json":
			err = records.ExportJSON(w, recs)
		default:
			return fmt.Errorf("unknown format %q (want yaml or json)", format)
		}
		if err != nil {
			return err
		}
		if output != "" {
			fmt.Fprintf(os.Stderr, "Exported %d record(s) to %s\n", len(recs), output)
		}
		return nil
	},
}

func loadRecords() ([]types.ProcessingRecord, error) {
	cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return nil, err
	}
	p, closeFn, err := records.NewPersister(cfg.Records)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return p.Load()
}

func printRecords(w io.Writer, recs []types.ProcessingRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT\tMD\tIMAGES\tCOUNT\tPROCESSED\tWORKFLOW\tRESULT\tNOTE")
	for _, r := range recs {
		processed := ""
		if !r.FirstProcessedAt.IsZero() {
			processed = r.FirstProcessedAt.Format(records.TimeLayout)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.Name, r.Markdown, r.Images, r.ImageCount, processed, r.WorkflowStatus, r.WorkflowResult, r.Note)
	}
	return tw.Flush()
}

func init() {
	recordsExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	recordsExportCmd.Flags().String("output", "", "write to this file instead of stdout")

	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsExportCmd)
	rootCmd.AddCommand(recordsCmd)
}
