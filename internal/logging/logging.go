// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the structured logger shared by all components.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Options configure New.
type Options struct {
	// Level is one of debug, info, warn, error (default info).
	Level string

	// File is an additional logfmt destination, appended to. Empty disables it.
	File string
}

// New returns a logfmt logger writing to w and, when opts.File is set, to
// that file as well. The returned close function releases the file.
func New(w io.Writer, opts Options) (log.Logger, func() error, error) {
	filter, err := levelOption(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() error { return nil }
	out := w
	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("creating log directory: %w", err)
			}
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file %s: %w", opts.File, err)
		}
		out = io.MultiWriter(w, f)
		closeFn = f.Close
	}

	var logger log.Logger
	logger = log.NewLogfmtLogger(log.NewSyncWriter(out))
	logger = level.NewFilter(logger, filter)
	logger = log.With(logger, "ts", log.DefaultTimestamp, "caller", log.DefaultCaller)
	return logger, closeFn, nil
}

// Nop returns a logger that discards everything. Tests and callers without a
// configured logger use it.
func Nop() log.Logger {
	return log.NewNopLogger()
}

// OrNop returns logger, or a no-op logger when logger is nil.
func OrNop(logger log.Logger) log.Logger {
	if logger == nil {
		return log.NewNopLogger()
	}
	return logger
}

func levelOption(name string) (level.Option, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return level.AllowDebug(), nil
	case "", "info":
		return level.AllowInfo(), nil
	case "warn", "warning":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	default:
		return nil, fmt.Errorf("unknown log level %q: use debug, info, warn, or error", name)
	}
}
