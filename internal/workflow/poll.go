// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/pdiddy/docflow/internal/logging"
	"github.com/pdiddy/docflow/pkg/types"
)

// Default poll policy.
const (
	DefaultInitialDelay = 5 * time.Second
	DefaultInterval     = time.Second
	DefaultMaxAttempts  = 120

	// diagnosticEvery is how many attempts pass between directory listings
	// in the log while waiting.
	diagnosticEvery = 10
	diagnosticFiles = 5
)

// Clock abstracts time for the result watcher.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// ResultFile is a workflow result found on disk.
type ResultFile struct {
	Path    string
	ModTime time.Time
}

// ResultWatcher waits for the workflow's result file to appear in a shared
// directory.
type ResultWatcher struct {
	dir    string
	policy types.PollPolicy
	clock  Clock
	logger log.Logger
}

// NewResultWatcher returns a watcher over dir. Zero fields of policy take
// the defaults; a nil clock is the wall clock.
func NewResultWatcher(dir string, policy types.PollPolicy, clock Clock, logger log.Logger) *ResultWatcher {
	if policy.InitialDelay < 0 {
		policy.InitialDelay = 0
	}
	if policy.InitialDelay == 0 && policy.Interval == 0 && policy.MaxAttempts == 0 {
		policy.InitialDelay = DefaultInitialDelay
	}
	if policy.Interval <= 0 {
		policy.Interval = DefaultInterval
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	if clock == nil {
		clock = realClock{}
	}
	return &ResultWatcher{
		dir:    dir,
		policy: policy,
		clock:  clock,
		logger: log.With(logging.OrNop(logger), "component", "result-watcher"),
	}
}

// Dir returns the watched directory.
func (w *ResultWatcher) Dir() string { return w.dir }

// Wait sleeps for the initial delay, then scans the directory up to
// MaxAttempts times. It returns the newest matching file and true, or false
// once the attempts are exhausted. An error is returned only when ctx ends
// the wait.
func (w *ResultWatcher) Wait(ctx context.Context, stem, user string) (ResultFile, bool, error) {
	patterns := Patterns(stem, user)
	level.Info(w.logger).Log("msg", "waiting for result file", "dir", w.dir, "stem", stem,
		"max_attempts", w.policy.MaxAttempts, "interval", w.policy.Interval)

	start := w.clock.Now()
	if err := w.clock.Sleep(ctx, w.policy.InitialDelay); err != nil {
		return ResultFile{}, false, err
	}

	for attempt := 0; attempt < w.policy.MaxAttempts; attempt++ {
		rf, ok, err := FindNewest(w.dir, patterns)
		if err != nil {
			level.Warn(w.logger).Log("msg", "scanning result directory failed", "dir", w.dir, "err", err)
		}
		if ok {
			level.Info(w.logger).Log("msg", "result file found", "file", filepath.Base(rf.Path),
				"mtime", rf.ModTime.Format(time.DateTime), "attempt", attempt+1, "waited", w.clock.Now().Sub(start))
			return rf, true, nil
		}
		if attempt > 0 && attempt%diagnosticEvery == 0 {
			w.logDiagnostics(attempt, patterns)
		}
		if attempt == w.policy.MaxAttempts-1 {
			break
		}
		if err := w.clock.Sleep(ctx, w.nextInterval()); err != nil {
			return ResultFile{}, false, err
		}
	}

	level.Warn(w.logger).Log("msg", "no result file before timeout", "dir", w.dir, "stem", stem,
		"attempts", w.policy.MaxAttempts, "waited", w.clock.Now().Sub(start))
	return ResultFile{}, false, nil
}

func (w *ResultWatcher) nextInterval() time.Duration {
	d := w.policy.Interval
	if w.policy.Jitter > 0 {
		d += rand.N(w.policy.Jitter)
	}
	return d
}

func (w *ResultWatcher) logDiagnostics(attempt int, patterns []string) {
	level.Info(w.logger).Log("msg", "still waiting", "attempt", attempt, "patterns", strings.Join(patterns[:3], " "))
	recent, err := Recent(w.dir, diagnosticFiles)
	if err != nil {
		level.Debug(w.logger).Log("msg", "listing result directory failed", "err", err)
		return
	}
	for _, rf := range recent {
		level.Info(w.logger).Log("msg", "present", "file", filepath.Base(rf.Path), "mtime", rf.ModTime.Format(time.DateTime))
	}
}

// Patterns returns the result-file globs for a document stem and user id,
// from the most specific to the catch-all, in path.Match syntax. Both values
// are escaped so that glob metacharacters in names match literally.
func Patterns(stem, user string) []string {
	s, u := escapeGlob(stem), escapeGlob(user)
	return []string{
		"user_" + s + "_response*.txt",
		"user_*" + s + "*.txt",
		"*" + s + "*response*.txt",
		"*response*.txt",
		u + "_response*.txt",
	}
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FindNewest matches the names of the entries in dir against every pattern
// and returns the regular file with the latest modification time across all
// matches. Patterns use path.Match syntax, so a backslash escapes the next
// character on every platform, and dir itself is never interpreted as a
// pattern. A missing dir has no matches.
func FindNewest(dir string, patterns []string) (ResultFile, bool, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return ResultFile{}, false, nil
	}
	if err != nil {
		return ResultFile{}, false, err
	}

	var (
		best   ResultFile
		found  bool
		badErr error
	)
	for _, e := range entries {
		if !e.Type().IsRegular() && e.Type()&fs.ModeSymlink == 0 {
			continue
		}
		if !matchesAny(e.Name(), patterns, &badErr) {
			continue
		}
		m := filepath.Join(dir, e.Name())
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if !found || info.ModTime().After(best.ModTime) {
			best = ResultFile{Path: m, ModTime: info.ModTime()}
			found = true
		}
	}
	return best, found, badErr
}

// matchesAny reports whether name matches one of patterns. The first
// malformed pattern is recorded in badErr.
func matchesAny(name string, patterns []string, badErr *error) bool {
	for _, p := range patterns {
		ok, err := path.Match(p, name)
		if err != nil {
			if *badErr == nil {
				*badErr = fmt.Errorf("pattern %q: %w", p, err)
			}
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// Recent returns up to n .txt files in dir, newest first.
func Recent(dir string, n int) ([]ResultFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []ResultFile
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, ResultFile{Path: filepath.Join(dir, e.Name()), ModTime: info.ModTime()})
	}
	slices.SortFunc(files, func(a, b ResultFile) int { return b.ModTime.Compare(a.ModTime) })
	if n > 0 && len(files) > n {
		files = files[:n]
	}
	return files, nil
}
