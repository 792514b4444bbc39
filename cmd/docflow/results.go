// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docflow/internal/workflow"
)

const mappingTestFile = "mapping_test.txt"

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Work with the workflow result directory",
}

var resultsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the workflow result directory is writable and list recent results",
	Long: `Check creates the workflow result directory if needed, writes
mapping_test.txt into it, and lists the most recent .txt files. When the
directory is a volume shared with the workflow service, the test file should
also be visible from the service side.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
		if err != nil {
			return err
		}
		return checkResultDir(os.Stdout, cfg.Workflow.ResultDir, limit, time.Now())
	},
}

func checkResultDir(w io.Writer, dir string, limit int, now time.Time) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating result directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	fmt.Fprintf(w, "Result directory: %s\n", abs)

	testPath := filepath.Join(dir, mappingTestFile)
	content := fmt.Sprintf("docflow mapping test\nwritten: %s\npath: %s\n", now.Format(time.DateTime), abs)
	if err := os.WriteFile(testPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mappingTestFile, err)
	}
	fmt.Fprintf(w, "Wrote %s\n", mappingTestFile)

	recent, err := workflow.Recent(dir, limit)
	if err != nil {
		return fmt.Errorf("listing result directory: %w", err)
	}
	fmt.Fprintf(w, "Recent .txt files (%d):\n", len(recent))
	for _, rf := range recent {
		fmt.Fprintf(w, "  %s  %s\n", rf.ModTime.Format(time.DateTime), filepath.Base(rf.Path))
	}
	return nil
}

func init() {
	resultsCheckCmd.Flags().Int("limit", 10, "number of recent files to list")

	resultsCmd.AddCommand(resultsCheckCmd)
	rootCmd.AddCommand(resultsCmd)
}
