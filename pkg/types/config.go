// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that call remote services.
type HTTPConfig struct {
	// BaseURL is the service root (e.g. "https://api.mistral.ai").
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// APIKey is sent as a bearer token. An empty key disables the component.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// OCRConfig holds settings for the OCR client.
type OCRConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Model is the OCR model identifier (e.g. "mistral-ocr-latest").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// SignedURLExpiry is the lifetime of the signed document URL, in hours.
	SignedURLExpiry int `json:"signed_url_expiry" yaml:"signed_url_expiry" mapstructure:"signed_url_expiry"`
}

// PollPolicy controls how the workflow forwarder waits for a result file.
type PollPolicy struct {
	// InitialDelay is the grace period before the first scan (default 5s).
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay" mapstructure:"initial_delay"`

	// Interval is the fixed wait between scans (default 1s).
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// MaxAttempts is the number of scans before giving up (default 120).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// Jitter adds a random wait in [0, Jitter) to each interval. Zero disables it.
	Jitter time.Duration `json:"jitter" yaml:"jitter" mapstructure:"jitter"`
}

// WorkflowConfig holds settings for the workflow forwarder.
type WorkflowConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Enabled controls whether generated Markdown is forwarded at all.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// UploadTimeout bounds the file upload call (default 30s).
	UploadTimeout time.Duration `json:"upload_timeout" yaml:"upload_timeout" mapstructure:"upload_timeout"`

	// ResultDir is the shared directory where the workflow drops result files.
	ResultDir string `json:"result_dir" yaml:"result_dir" mapstructure:"result_dir"`

	// User overrides the per-document "user_<stem>" identifier when set.
	User string `json:"user,omitempty" yaml:"user,omitempty" mapstructure:"user"`

	// MaxWorkers is carried for compatibility; documents are forwarded sequentially.
	MaxWorkers int `json:"max_workers" yaml:"max_workers" mapstructure:"max_workers"`

	Poll PollPolicy `json:"poll" yaml:"poll" mapstructure:"poll"`
}

// RecordBackend selects how the record table is persisted.
type RecordBackend string

const (
	BackendXLSX   RecordBackend = "xlsx"
	BackendSQLite RecordBackend = "sqlite"
)

// RecordsConfig holds settings for the record store.
type RecordsConfig struct {
	// Backend selects the persister: xlsx (default) or sqlite.
	Backend RecordBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Path is the record file (e.g. "output/pdf_processing.xlsx").
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// OutputConfig holds the local output directories.
type OutputConfig struct {
	// MarkdownDir receives <stem>.md files.
	MarkdownDir string `json:"markdown_dir" yaml:"markdown_dir" mapstructure:"markdown_dir"`

	// ImageDir receives <stem>/<stem>_p<page>_img<NN>.<ext> files.
	ImageDir string `json:"image_dir" yaml:"image_dir" mapstructure:"image_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// File is an additional log destination. Empty disables file logging.
	File string `json:"file" yaml:"file" mapstructure:"file"`
}

// Config is the complete configuration, built once at startup and passed to
// each component.
type Config struct {
	OCR      OCRConfig      `json:"ocr" yaml:"ocr" mapstructure:"ocr"`
	Workflow WorkflowConfig `json:"workflow" yaml:"workflow" mapstructure:"workflow"`
	Output   OutputConfig   `json:"output" yaml:"output" mapstructure:"output"`
	Records  RecordsConfig  `json:"records" yaml:"records" mapstructure:"records"`
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`

	// MaxWorkers is carried for compatibility; documents are processed sequentially.
	MaxWorkers int `json:"max_workers" yaml:"max_workers" mapstructure:"max_workers"`
}
