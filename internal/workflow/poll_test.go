// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docflow/pkg/types"
)

// fakeClock advances virtual time on every Sleep and optionally runs a hook
// before returning, so tests can drop files mid-wait.
type fakeClock struct {
	now     time.Time
	sleeps  []time.Duration
	onSleep func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	if c.onSleep != nil {
		c.onSleep(len(c.sleeps))
	}
	return nil
}

func touch(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("result"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestPatterns(t *testing.T) {
	assert.Equal(t, []string{
		"user_report_response*.txt",
		"user_*report*.txt",
		"*report*response*.txt",
		"*response*.txt",
		"user_report_response*.txt",
	}, Patterns("report", "user_report"))

	p := Patterns("scan[1]*", "u?")
	assert.Equal(t, `user_scan\[1\]\*_response*.txt`, p[0])
	assert.Equal(t, `u\?_response*.txt`, p[4])
}

func TestFindNewest_NewestAcrossPatternsWins(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	touch(t, dir, "user_report_response_1.txt", base)
	touch(t, dir, "other_doc_response.txt", base.Add(2*time.Minute))
	want := touch(t, dir, "user_x_report_final.txt", base.Add(5*time.Minute))
	touch(t, dir, "unrelated.txt", base.Add(10*time.Minute))
	touch(t, dir, "user_report_response_2.md", base.Add(10*time.Minute))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "user_report_response_dir.txt"), 0o755))

	rf, ok, err := FindNewest(dir, Patterns("report", "user_report"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, rf.Path)
	assert.True(t, rf.ModTime.Equal(base.Add(5*time.Minute)))
}

func TestFindNewest_LiteralMetacharacters(t *testing.T) {
	dir := t.TempDir()
	want := touch(t, dir, "user_scan[1]_response.txt", time.Now())

	rf, ok, err := FindNewest(dir, Patterns("scan[1]", "nobody")[:1])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, rf.Path)

	_, ok, err = FindNewest(dir, Patterns("scan1", "nobody")[:1])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindNewest_DirectoryNameIsNotAPattern(t *testing.T) {
	dir := filepath.Join(t.TempDir(), `results [shared]\x`)
	require.NoError(t, os.Mkdir(dir, 0o755))
	want := touch(t, dir, "user_doc_response.txt", time.Now())

	rf, ok, err := FindNewest(dir, Patterns("doc", "user_doc"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, rf.Path)
}

func TestFindNewest_BadPattern(t *testing.T) {
	dir := t.TempDir()
	want := touch(t, dir, "a_response.txt", time.Now())

	rf, ok, err := FindNewest(dir, []string{"[", "*response*.txt"})
	require.Error(t, err)
	require.True(t, ok, "valid patterns still match")
	assert.Equal(t, want, rf.Path)
}

func TestFindNewest_EmptyOrMissingDir(t *testing.T) {
	_, ok, err := FindNewest(t.TempDir(), Patterns("a", "b"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = FindNewest(filepath.Join(t.TempDir(), "missing"), Patterns("a", "b"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWait_FindsFileAppearingLater(t *testing.T) {
	dir := t.TempDir()
	clock := newFakeClock()
	clock.onSleep = func(n int) {
		if n == 4 {
			touch(t, dir, "user_doc_response.txt", time.Now())
		}
	}
	policy := types.PollPolicy{InitialDelay: 5 * time.Second, Interval: time.Second, MaxAttempts: 10}
	w := NewResultWatcher(dir, policy, clock, nil)

	rf, ok, err := w.Wait(context.Background(), "doc", "user_doc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "user_doc_response.txt", filepath.Base(rf.Path))
	assert.Equal(t, []time.Duration{5 * time.Second, time.Second, time.Second, time.Second}, clock.sleeps)
}

func TestWait_ExhaustsAttempts(t *testing.T) {
	clock := newFakeClock()
	policy := types.PollPolicy{InitialDelay: 2 * time.Second, Interval: time.Second, MaxAttempts: 25}
	w := NewResultWatcher(t.TempDir(), policy, clock, nil)

	_, ok, err := w.Wait(context.Background(), "doc", "user_doc")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, clock.sleeps, 25, "initial delay plus one sleep between each of the 25 scans")
	assert.Equal(t, 26*time.Second, clock.now.Sub(newFakeClock().now))
}

func TestWait_Jitter(t *testing.T) {
	clock := newFakeClock()
	policy := types.PollPolicy{Interval: time.Second, MaxAttempts: 20, Jitter: 500 * time.Millisecond}
	w := NewResultWatcher(t.TempDir(), policy, clock, nil)

	_, _, err := w.Wait(context.Background(), "doc", "u")
	require.NoError(t, err)
	require.Len(t, clock.sleeps, 20)
	assert.Zero(t, clock.sleeps[0])
	for _, d := range clock.sleeps[1:] {
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 1500*time.Millisecond)
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := NewResultWatcher(t.TempDir(), types.PollPolicy{}, newFakeClock(), nil)
	_, ok, err := w.Wait(ctx, "doc", "u")
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}

func TestNewResultWatcher_Defaults(t *testing.T) {
	w := NewResultWatcher("dir", types.PollPolicy{}, nil, nil)
	assert.Equal(t, DefaultInitialDelay, w.policy.InitialDelay)
	assert.Equal(t, DefaultInterval, w.policy.Interval)
	assert.Equal(t, DefaultMaxAttempts, w.policy.MaxAttempts)
	assert.IsType(t, realClock{}, w.clock)
}

func TestRealClock_SleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RealClock().Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, RealClock().Sleep(context.Background(), time.Millisecond))
}

func TestRecent(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"a.txt", "b.txt", "c.txt", "d.TXT", "e.txt", "f.txt"} {
		touch(t, dir, name, base.Add(time.Duration(i)*time.Minute))
	}
	touch(t, dir, "z.log", base.Add(time.Hour))

	got, err := Recent(dir, 5)
	require.NoError(t, err)
	var names []string
	for _, rf := range got {
		names = append(names, filepath.Base(rf.Path))
	}
	assert.Equal(t, []string{"f.txt", "e.txt", "d.TXT", "c.txt", "b.txt"}, names)

	_, err = Recent(filepath.Join(dir, "missing"), 5)
	require.Error(t, err)
}
