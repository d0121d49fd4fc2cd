// Package watcher reports when a graph source changes on disk. It uses
// fsnotify where the filesystem delivers events and polls elsewhere.
// A watched directory reports changes to any file the filter accepts.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/refgraph/pkg/debug"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// Environment variables that force polling mode.
const (
	EnvForcePolling = "REFGRAPH_FORCE_POLLING"
	EnvForcePoll    = "REFGRAPH_FORCE_POLL"
)

// Common errors.
var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithOnChange sets the callback invoked when the source changes.
func WithOnChange(fn func()) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// WithFilter limits which file names inside a watched directory count as
// changes. It is ignored when a single file is watched.
func WithFilter(match func(name string) bool) WatcherOption {
	return func(w *Watcher) {
		w.match = match
	}
}

// Watcher monitors a graph file, or a directory of graph files, for changes.
type Watcher struct {
	path             string
	isDir            bool
	match            func(name string) bool
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func()
	onError          func(error)
	forcePoll        bool
	forcePollEnv     bool
	fsType           FilesystemType

	fsWatcher   *fsnotify.Watcher
	debouncer   *Debouncer
	useFallback bool
	last        signature

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan struct{}
}

// signature is what polling compares between ticks.
type signature struct {
	mtime time.Time
	size  int64
	count int
}

func (s signature) zero() bool { return s.mtime.IsZero() && s.count == 0 }

// NewWatcher creates a new watcher for the given file or directory.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:             absPath,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func() {},
		onError:          func(error) {},
		match:            func(string) bool { return true },
		changeCh:         make(chan struct{}, 1),
	}
	if info, err := os.Stat(absPath); err == nil && info.IsDir() {
		w.isDir = true
	}

	for _, opt := range opts {
		opt(w)
	}

	w.debouncer = NewDebouncer(w.debounceDuration)

	return w, nil
}

// Start begins watching. The watcher stops when ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	w.ctx, w.cancel = context.WithCancel(ctx)

	w.useFallback = false
	w.forcePollEnv = envBool(EnvForcePolling) || envBool(EnvForcePoll)

	w.fsType = DetectFilesystemType(w.path)
	if isRemoteFilesystem(w.fsType) {
		w.useFallback = true
	}

	forcePoll := w.forcePoll || w.forcePollEnv
	if forcePoll {
		w.useFallback = true
	}

	sig, err := w.stat()
	if err != nil && os.IsPermission(err) {
		w.cancel()
		return ErrPermission
	}
	// A missing file is fine; it may be created later.
	w.last = sig

	if !w.useFallback {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.useFallback = true
		} else {
			// Watch the directory itself; editors replace files with atomic renames.
			dir := w.path
			if !w.isDir {
				dir = filepath.Dir(w.path)
			}
			if err := fsw.Add(dir); err != nil {
				fsw.Close()
				w.useFallback = true
			} else {
				w.fsWatcher = fsw
				go w.watchFsnotify()
			}
		}
	}

	if w.useFallback {
		go w.watchPolling()
	}

	debug.Log("watcher: %s (fs=%s, polling=%v)", w.path, w.fsType, w.useFallback)
	w.started = true
	return nil
}

// Stop stops watching. The Changed channel is left open so a reader blocked
// on it does not observe a spurious change.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}

	if w.cancel != nil {
		w.cancel()
	}

	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}

	w.debouncer.Cancel()
	w.started = false
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed returns a channel that receives when the source changes.
// This is an alternative to using the OnChange callback.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

// Path returns the watched path.
func (w *Watcher) Path() string {
	return w.path
}

// IsDir reports whether a directory is being watched.
func (w *Watcher) IsDir() bool {
	return w.isDir
}

// FilesystemType returns the best-effort filesystem classification for the watched path.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// PollInterval returns the polling interval used when polling mode is active.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// relevant reports whether an event for name concerns the watched source.
func (w *Watcher) relevant(name string) bool {
	if w.isDir {
		return filepath.Dir(name) == w.path && w.match(filepath.Base(name))
	}
	return filepath.Base(name) == filepath.Base(w.path)
}

// watchFsnotify monitors using fsnotify events.
func (w *Watcher) watchFsnotify() {
	// Capture channel references to avoid race with Stop() setting fsWatcher to nil
	w.mu.RLock()
	if w.fsWatcher == nil {
		w.mu.RUnlock()
		return
	}
	events := w.fsWatcher.Events
	errs := w.fsWatcher.Errors
	ctx := w.ctx
	w.mu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) {
				continue
			}

			switch {
			case event.Op&fsnotify.Remove != 0 && !w.isDir:
				w.onError(ErrFileRemoved)

			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0:
				w.debouncer.Trigger(w.notifyChange)
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

// stat summarises the watched file, or the matching files of a directory.
func (w *Watcher) stat() (signature, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return signature{}, err
	}
	if !w.isDir {
		return signature{mtime: info.ModTime(), size: info.Size(), count: 1}, nil
	}

	entries, err := os.ReadDir(w.path)
	if err != nil {
		return signature{}, err
	}
	var sig signature
	for _, e := range entries {
		if e.IsDir() || !w.match(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		sig.count++
		sig.size += fi.Size()
		if fi.ModTime().After(sig.mtime) {
			sig.mtime = fi.ModTime()
		}
	}
	return sig, nil
}

// watchPolling monitors using periodic stat checks.
func (w *Watcher) watchPolling() {
	w.mu.RLock()
	ctx := w.ctx
	interval := w.pollInterval
	w.mu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			sig, err := w.stat()
			if err != nil {
				switch {
				case os.IsNotExist(err):
					// Only report if the source existed before
					w.mu.Lock()
					hadFile := !w.last.zero()
					w.last = signature{}
					w.mu.Unlock()
					if hadFile {
						w.onError(ErrFileRemoved)
					}
				case os.IsPermission(err):
					w.onError(ErrPermission)
				default:
					w.onError(err)
				}
				continue
			}

			w.mu.Lock()
			changed := sig != w.last
			w.last = sig
			w.mu.Unlock()

			if changed {
				w.debouncer.Trigger(w.notifyChange)
			}
		}
	}
}

// notifyChange invokes the onChange callback and signals the change channel.
func (w *Watcher) notifyChange() {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()

	// Best effort: a change racing Stop may still be delivered once.
	if !started {
		return
	}

	w.onChange()

	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}
