package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func writeGraph(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, path string, opts ...WatcherOption) *Watcher {
	t.Helper()
	w, err := NewWatcher(path, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var callCount atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() { callCount.Add(1) })
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)

	if count := callCount.Load(); count != 1 {
		t.Errorf("expected 1 callback invocation, got %d", count)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var called atomic.Bool
	d.Trigger(func() { called.Store(true) })
	d.Cancel()

	time.Sleep(100 * time.Millisecond)

	if called.Load() {
		t.Error("callback should not have been invoked after cancel")
	}
}

func TestDebouncer_Flush(t *testing.T) {
	d := NewDebouncer(time.Hour)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Flush()
	d.Flush()

	if got := calls.Load(); got != 1 {
		t.Errorf("expected flush to run the pending call once, got %d", got)
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	d := NewDebouncer(0)
	if d.Duration() != DefaultDebounceDuration {
		t.Errorf("expected default duration %v, got %v", DefaultDebounceDuration, d.Duration())
	}
}

func TestWatcher_DetectsFileChange(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "graph.json")
	writeGraph(t, tmpFile, `{"a": []}`)

	var changed atomic.Bool
	startWatcher(t, tmpFile,
		WithDebounceDuration(50*time.Millisecond),
		WithPollInterval(25*time.Millisecond),
		WithOnChange(func() { changed.Store(true) }),
	)

	time.Sleep(100 * time.Millisecond)
	writeGraph(t, tmpFile, `{"a": ["b"], "b": []}`)

	if !waitFor(t, 2*time.Second, changed.Load) {
		t.Error("expected change to be detected")
	}
}

func TestWatcher_PollingFallback(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "graph.yaml")
	writeGraph(t, tmpFile, "a: []\n")

	var changes atomic.Int32
	w := startWatcher(t, tmpFile,
		WithDebounceDuration(20*time.Millisecond),
		WithPollInterval(25*time.Millisecond),
		WithForcePoll(true),
		WithOnChange(func() { changes.Add(1) }),
	)
	if !w.IsPolling() {
		t.Fatal("expected polling mode")
	}

	time.Sleep(60 * time.Millisecond)
	writeGraph(t, tmpFile, "a: [b]\nb: []\n")

	if !waitFor(t, 2*time.Second, func() bool { return changes.Load() > 0 }) {
		t.Error("expected polling to detect the change")
	}
}

func TestWatcher_ChangedChannel(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "graph.json")
	writeGraph(t, tmpFile, `{}`)

	w := startWatcher(t, tmpFile,
		WithDebounceDuration(20*time.Millisecond),
		WithPollInterval(25*time.Millisecond),
		WithForcePoll(true),
	)

	time.Sleep(60 * time.Millisecond)
	writeGraph(t, tmpFile, `{"x": []}`)

	select {
	case <-w.Changed():
	case <-time.After(2 * time.Second):
		t.Error("expected a value on the Changed channel")
	}
}

func TestWatcher_Directory(t *testing.T) {
	dir := t.TempDir()
	writeGraph(t, filepath.Join(dir, "graph.json"), `{}`)

	for _, poll := range []bool{false, true} {
		name := "fsnotify"
		if poll {
			name = "polling"
		}
		t.Run(name, func(t *testing.T) {
			var changes atomic.Int32
			w := startWatcher(t, dir,
				WithDebounceDuration(20*time.Millisecond),
				WithPollInterval(25*time.Millisecond),
				WithForcePoll(poll),
				WithFilter(func(name string) bool { return strings.HasSuffix(name, ".json") }),
				WithOnChange(func() { changes.Add(1) }),
			)
			if !w.IsDir() {
				t.Fatal("expected directory mode")
			}

			time.Sleep(60 * time.Millisecond)
			writeGraph(t, filepath.Join(dir, "notes.txt"), "ignored "+name)
			time.Sleep(150 * time.Millisecond)
			if got := changes.Load(); got != 0 {
				t.Errorf("filtered file triggered %d changes", got)
			}

			writeGraph(t, filepath.Join(dir, "extra-"+name+".json"), `{"y": []}`)
			if !waitFor(t, 2*time.Second, func() bool { return changes.Load() > 0 }) {
				t.Error("expected new source to be detected")
			}
		})
	}
}

func TestWatcher_EnvForcePolling(t *testing.T) {
	for _, env := range []string{EnvForcePolling, EnvForcePoll} {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, "1")
			tmpFile := filepath.Join(t.TempDir(), "graph.json")
			writeGraph(t, tmpFile, `{}`)

			w := startWatcher(t, tmpFile, WithPollInterval(25*time.Millisecond))
			if !w.IsPolling() {
				t.Fatalf("expected polling mode when %s is set", env)
			}
		})
	}
}

func TestWatcher_RemoteFilesystem_UsesPolling(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "graph.json")
	writeGraph(t, tmpFile, `{}`)

	orig := detectFilesystemTypeFunc
	detectFilesystemTypeFunc = func(string) FilesystemType { return FSTypeNFS }
	t.Cleanup(func() { detectFilesystemTypeFunc = orig })

	w := startWatcher(t, tmpFile, WithPollInterval(25*time.Millisecond))

	if !w.IsPolling() {
		t.Fatal("expected watcher to use polling on remote filesystem")
	}
	if got := w.FilesystemType(); got != FSTypeNFS {
		t.Fatalf("expected filesystem type %v, got %v", FSTypeNFS, got)
	}
}

func TestWatcher_FileRemoved(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "graph.json")
	writeGraph(t, tmpFile, `{}`)

	var removed atomic.Bool
	startWatcher(t, tmpFile,
		WithPollInterval(25*time.Millisecond),
		WithForcePoll(true),
		WithOnError(func(err error) {
			if errors.Is(err, ErrFileRemoved) {
				removed.Store(true)
			}
		}),
	)

	time.Sleep(50 * time.Millisecond)
	if err := os.Remove(tmpFile); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 2*time.Second, removed.Load) {
		t.Error("expected ErrFileRemoved")
	}
}

func TestWatcher_StartStop(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "graph.json")
	writeGraph(t, tmpFile, `{}`)

	w, err := NewWatcher(tmpFile)
	if err != nil {
		t.Fatal(err)
	}
	if w.IsStarted() {
		t.Error("watcher should not be started initially")
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !w.IsStarted() {
		t.Error("watcher should be started")
	}
	if err := w.Start(context.Background()); err != ErrAlreadyStarted {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	w.Stop()
	if w.IsStarted() {
		t.Error("watcher should be stopped")
	}
	w.Stop() // idempotent

	if err := w.Start(context.Background()); err != nil {
		t.Errorf("restart failed: %v", err)
	}
	w.Stop()
}

func TestWatcher_ContextCancelStopsNotifications(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "graph.json")
	writeGraph(t, tmpFile, `{}`)

	ctx, cancel := context.WithCancel(context.Background())
	var changes atomic.Int32
	w, err := NewWatcher(tmpFile,
		WithDebounceDuration(10*time.Millisecond),
		WithPollInterval(20*time.Millisecond),
		WithForcePoll(true),
		WithOnChange(func() { changes.Add(1) }),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	cancel()
	time.Sleep(50 * time.Millisecond)
	writeGraph(t, tmpFile, `{"late": []}`)
	time.Sleep(150 * time.Millisecond)

	if got := changes.Load(); got != 0 {
		t.Errorf("expected no changes after cancel, got %d", got)
	}
}

func TestWatcher_PathAndPollInterval(t *testing.T) {
	w, err := NewWatcher("relative.json", WithPollInterval(5*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(w.Path()) {
		t.Errorf("expected absolute path, got %s", w.Path())
	}
	if w.PollInterval() != 5*time.Second {
		t.Errorf("poll interval = %v", w.PollInterval())
	}

	w, _ = NewWatcher("x.json", WithPollInterval(0))
	if w.PollInterval() != DefaultPollInterval {
		t.Errorf("non-positive interval should keep the default, got %v", w.PollInterval())
	}
}

func TestFilesystemType_String(t *testing.T) {
	tests := []struct {
		fsType   FilesystemType
		expected string
	}{
		{FSTypeUnknown, "unknown"},
		{FSTypeLocal, "local"},
		{FSTypeNFS, "nfs"},
		{FSTypeSMB, "smb"},
		{FSTypeSSHFS, "sshfs"},
		{FSTypeFUSE, "fuse"},
		{FilesystemType(99), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.fsType.String(); got != tc.expected {
			t.Errorf("FilesystemType(%d).String() = %q, expected %q", tc.fsType, got, tc.expected)
		}
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"y", true},
		{"on", true},
		{"0", false},
		{"false", false},
		{"no", false},
		{"", false},
		{"invalid", false},
	}
	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("TEST_ENV_BOOL", tc.value)
			if got := envBool("TEST_ENV_BOOL"); got != tc.expected {
				t.Errorf("envBool(%q) = %v, expected %v", tc.value, got, tc.expected)
			}
		})
	}
}

func TestDetectFilesystemType(t *testing.T) {
	if got := DetectFilesystemType(""); got != FSTypeUnknown {
		t.Errorf("DetectFilesystemType(\"\") = %v, expected FSTypeUnknown", got)
	}

	// A missing file is classified by its parent directory.
	dir := t.TempDir()
	missing := filepath.Join(dir, "does_not_exist.json")
	if got, want := DetectFilesystemType(missing), DetectFilesystemType(dir); got != want {
		t.Errorf("missing file classified %v, parent %v", got, want)
	}
}

func TestParseMounts(t *testing.T) {
	text := `proc /proc proc rw 0 0
host:/export /mnt/nfs nfs4 rw 0 0
user@box:/data /home/me/remote\040dir fuse.sshfs rw 0 0
broken
`
	mounts := parseMounts(text)
	if len(mounts) != 3 {
		t.Fatalf("expected 3 mounts, got %d", len(mounts))
	}
	if mounts[2].dir != "/home/me/remote dir" || mounts[2].fsType != "fuse.sshfs" {
		t.Errorf("mount = %+v", mounts[2])
	}
}

func TestWithin(t *testing.T) {
	tests := []struct {
		path, dir string
		want      bool
	}{
		{"/mnt/nfs/graph.json", "/mnt/nfs", true},
		{"/mnt/nfs", "/mnt/nfs", true},
		{"/mnt/nfsother/x", "/mnt/nfs", false},
		{"/home", "/mnt", false},
		{"/anything", "/", true},
	}
	for _, tt := range tests {
		if got := within(tt.path, tt.dir); got != tt.want {
			t.Errorf("within(%q, %q) = %v, want %v", tt.path, tt.dir, got, tt.want)
		}
	}
}
