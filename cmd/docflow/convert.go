// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docflow/internal/convert"
	"github.com/pdiddy/docflow/internal/markdown"
	"github.com/pdiddy/docflow/internal/ocr"
	"github.com/pdiddy/docflow/internal/preflight"
	"github.com/pdiddy/docflow/internal/records"
	"github.com/pdiddy/docflow/internal/workflow"
)

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "OCR documents into Markdown and images",
	Long: `Convert sends each document to the OCR service, saves the embedded images
under the image directory, and writes <stem>.md to the Markdown directory with
image links pointing at the saved files.

With --workflow (or ENABLE_DIFY=true) each generated Markdown file is then
uploaded to the workflow service, the workflow is run, and docflow waits for
its result file in the result directory.

Documents are processed one at a time. Interrupting stops the batch after the
current document finishes.`,
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	skipExisting, _ := cmd.Flags().GetBool("skip-existing")

	paths := args
	if dir != "" {
		found, err := preflight.Collect(dir)
		if err != nil {
			return err
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return errors.New("no documents given: pass files or --dir")
	}

	if dryRun {
		result := convert.DryRun(paths, os.Stdout)
		if result.HasFailures() {
			return fmt.Errorf("%d document(s) failed preflight", result.Failed)
		}
		return nil
	}

	cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workflow") {
		cfg.Workflow.Enabled, _ = cmd.Flags().GetBool("workflow")
	}
	if cmd.Flags().Changed("user") {
		cfg.Workflow.User, _ = cmd.Flags().GetString("user")
	}
	if cfg.OCR.APIKey == "" {
		return fmt.Errorf("%w: set MISTRAL_API_KEY or add .secrets/mistral-api-key", ocr.ErrNotConfigured)
	}

	persister, closeRecords, err := records.NewPersister(cfg.Records)
	if err != nil {
		return err
	}
	defer closeRecords()
	store, err := records.Open(persister, logger)
	if err != nil {
		return err
	}

	opts := []convert.Option{}
	if cfg.Workflow.Enabled {
		fwd := workflow.New(cfg.Workflow, nil, store, logger)
		if !fwd.Configured() {
			level.Warn(logger).Log("msg", "workflow enabled without an API key; forwarding will fail", "hint", "set DIFY_API_KEY")
		}
		opts = append(opts, convert.WithForwarder(fwd, cfg.Workflow.User))
	}
	if skipExisting {
		opts = append(opts, convert.WithSkipExisting(cfg.Output.MarkdownDir))
	}

	pipeline := convert.New(
		ocr.New(cfg.OCR, nil, logger),
		markdown.New(cfg.Output, logger),
		store,
		logger,
		opts...,
	)

	stop, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result := pipeline.ConvertBatch(stop, paths, os.Stdout)
	if result.HasFailures() {
		return fmt.Errorf("%d document(s) failed", result.Failed)
	}
	return nil
}

func init() {
	convertCmd.Flags().String("dir", "", "convert every PDF in this directory")
	convertCmd.Flags().Bool("workflow", false, "forward generated Markdown to the workflow service (default from ENABLE_DIFY)")
	convertCmd.Flags().String("user", "", "workflow user id (default user_<stem>)")
	convertCmd.Flags().Bool("dry-run", false, "check documents locally and report page counts without calling any service")
	convertCmd.Flags().Bool("skip-existing", false, "skip documents whose Markdown already exists")

	rootCmd.AddCommand(convertCmd)
}
