// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docflow/internal/ocr"
	"github.com/pdiddy/docflow/internal/secrets"
	"github.com/pdiddy/docflow/internal/workflow"
	"github.com/pdiddy/docflow/pkg/types"
)

const defaultLogFile = "docflow-debug.log"

// setDefaults registers every configuration key so that viper can resolve
// it from the environment during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ocr.base_url", ocr.DefaultBaseURL)
	v.SetDefault("ocr.api_key", "")
	v.SetDefault("ocr.model", ocr.DefaultModel)
	v.SetDefault("ocr.timeout", 5*time.Minute)
	v.SetDefault("ocr.signed_url_expiry", 1)

	v.SetDefault("workflow.base_url", workflow.DefaultBaseURL)
	v.SetDefault("workflow.api_key", "")
	v.SetDefault("workflow.enabled", false)
	v.SetDefault("workflow.timeout", 300*time.Second)
	v.SetDefault("workflow.upload_timeout", 30*time.Second)
	v.SetDefault("workflow.result_dir", "./output/dify_results")
	v.SetDefault("workflow.user", "")
	v.SetDefault("workflow.max_workers", 2)
	v.SetDefault("workflow.poll.initial_delay", workflow.DefaultInitialDelay)
	v.SetDefault("workflow.poll.interval", workflow.DefaultInterval)
	v.SetDefault("workflow.poll.max_attempts", workflow.DefaultMaxAttempts)
	v.SetDefault("workflow.poll.jitter", time.Duration(0))

	v.SetDefault("output.markdown_dir", "./output/markdown")
	v.SetDefault("output.image_dir", "./output/images")

	v.SetDefault("records.backend", string(types.BackendXLSX))
	v.SetDefault("records.path", "./output/pdf_processing.xlsx")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", defaultLogFile)

	v.SetDefault("max_workers", 3)
}

// bindEnv maps the plain variable names used in .env files onto
// configuration keys. DOCFLOW_<KEY> names are handled by AutomaticEnv and
// take precedence.
func bindEnv(v *viper.Viper) {
	bindings := map[string]string{
		"ocr.api_key":         "MISTRAL_API_KEY",
		"workflow.api_key":    "DIFY_API_KEY",
		"workflow.base_url":   "DIFY_BASE_URL",
		"workflow.enabled":    "ENABLE_DIFY",
		"workflow.result_dir": "DIFY_RESULT_DIR",
		"output.markdown_dir": "MD_OUT_DIR",
		"output.image_dir":    "IMAGE_DIR",
		"records.path":        "EXCEL_PATH",
	}
	for key, env := range bindings {
		v.BindEnv(key, envName(key), env)
	}
}

func envName(key string) string {
	return "DOCFLOW_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// loadConfig builds the configuration value passed to every component.
// Keys missing from every source fall back to files in .secrets/.
func loadConfig(v *viper.Viper, stored map[string]string) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}
	cfg.OCR.APIKey = secrets.Lookup(stored, secrets.KeyOCR, cfg.OCR.APIKey)
	cfg.Workflow.APIKey = secrets.Lookup(stored, secrets.KeyWorkflow, cfg.Workflow.APIKey)
	return cfg, nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Config prints the effective configuration after merging defaults, the
config file, .env, the environment, and .secrets/. API keys are reported as
configured or missing, never printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
		if err != nil {
			return err
		}
		printConfig(os.Stdout, cfg)
		return nil
	},
}

func printConfig(w io.Writer, cfg types.Config) {
	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  OCR API:            %s\n", configured(cfg.OCR.APIKey))
	fmt.Fprintf(w, "  OCR service:        %s (model %s)\n", cfg.OCR.BaseURL, cfg.OCR.Model)
	fmt.Fprintf(w, "  Workflow API:       %s\n", configured(cfg.Workflow.APIKey))
	fmt.Fprintf(w, "  Workflow service:   %s (enabled: %t)\n", cfg.Workflow.BaseURL, cfg.Workflow.Enabled)
	fmt.Fprintln(w, "Output:")
	fmt.Fprintf(w, "  Markdown:           %s\n", cfg.Output.MarkdownDir)
	fmt.Fprintf(w, "  Images:             %s\n", cfg.Output.ImageDir)
	fmt.Fprintf(w, "  Workflow results:   %s\n", cfg.Workflow.ResultDir)
	fmt.Fprintf(w, "  Records:            %s (%s)\n", cfg.Records.Path, cfg.Records.Backend)
	fmt.Fprintln(w, "Processing:")
	fmt.Fprintf(w, "  Max workers:        %d (workflow: %d; documents run sequentially)\n", cfg.MaxWorkers, cfg.Workflow.MaxWorkers)
	fmt.Fprintf(w, "  Result polling:     %s delay, %d x %s\n", cfg.Workflow.Poll.InitialDelay, cfg.Workflow.Poll.MaxAttempts, cfg.Workflow.Poll.Interval)
	fmt.Fprintf(w, "  Debug log:          %s\n", orNone(cfg.Log.File))

	if cfg.OCR.APIKey == "" {
		fmt.Fprintln(w, "\nWarning: no OCR API key. Set MISTRAL_API_KEY in .env or add .secrets/"+secrets.KeyOCR+".")
	}
	if cfg.Workflow.APIKey == "" {
		fmt.Fprintln(w, "\nNote: no workflow API key. Set DIFY_API_KEY to enable workflow forwarding.")
	}
}

func configured(key string) string {
	if key == "" {
		return "missing"
	}
	return "configured"
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func init() {
	rootCmd.AddCommand(configCmd)
}
