/*
refresh.go - Source file watcher

PURPOSE:
  Watches the dataset and forecast files and drops the session's memoized
  snapshot when one of them changes on disk, so a re-exported workbook shows
  up without restarting the server.

DESIGN:
  - Watches the parent directories, not the files: spreadsheet tools and
    editors replace a file by writing a temp file and renaming it
  - Events for other files in those directories are ignored
  - Events are debounced per path; a burst of writes clears the session once
  - A changed file clears the whole session; the next query reloads it
  - If a directory cannot be watched, falls back to polling modification
    time and size every PollInterval
  - A forecast file that appears later needs no refresh: absence is never
    memoized (see session.go)

USAGE:
  r := NewRefresher(session, log)
  r.Start()
  // ... later
  r.Stop()

SEE ALSO:
  - session.go: what gets cleared
  - cli/serve.go: started when data.refresh_interval > 0
*/
package dataset

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Refresher modes.
const (
	ModeStopped = "stopped"
	ModeWatch   = "watch"
	ModePoll    = "poll"
)

// fileStamp is what a poll remembers about a file.
type fileStamp struct {
	modTime time.Time
	size    int64
	exists  bool
}

func stampOf(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{modTime: info.ModTime(), size: info.Size(), exists: true}
}

func (a fileStamp) differs(b fileStamp) bool {
	return a.exists != b.exists || a.size != b.size || !a.modTime.Equal(b.modTime)
}

// Refresher clears a Session when its source files change.
type Refresher struct {
	Session      *Session
	Log          *zap.Logger
	Debounce     time.Duration // quiet period before a change is acted on
	PollInterval time.Duration // used only when watching fails

	mu      sync.Mutex
	wg      sync.WaitGroup
	stop    chan struct{}
	watcher *fsnotify.Watcher
	mode    string

	pending map[string]time.Time
	seen    map[string]fileStamp
	lastRun time.Time
}

// NewRefresher creates a refresher with a 500ms debounce and a one-minute
// polling fallback.
func NewRefresher(session *Session, log *zap.Logger) *Refresher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Refresher{
		Session:      session,
		Log:          log,
		Debounce:     500 * time.Millisecond,
		PollInterval: time.Minute,
		mode:         ModeStopped,
		pending:      make(map[string]time.Time),
		seen:         make(map[string]fileStamp),
	}
}

// targets returns the cleaned absolute source paths.
func (rf *Refresher) targets() []string {
	var out []string
	for _, path := range []string{rf.Session.DatasetPath(), rf.Session.ForecastPath()} {
		if path == "" {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		out = append(out, filepath.Clean(path))
	}
	return out
}

// Start begins watching. It is a no-op when already running or when the
// session has no source paths.
func (rf *Refresher) Start() {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.mode != ModeStopped {
		return
	}
	targets := rf.targets()
	if len(targets) == 0 {
		return
	}
	rf.stop = make(chan struct{})

	watcher, err := rf.newWatcher(targets)
	if err == nil {
		rf.watcher = watcher
		rf.mode = ModeWatch
		rf.wg.Add(1)
		go rf.watch(watcher, targets, rf.stop)
		rf.Log.Info("dataset watcher started", zap.Strings("paths", targets))
		return
	}

	rf.Log.Warn("file watching unavailable, polling instead",
		zap.Error(err), zap.Duration("interval", rf.PollInterval))
	if rf.PollInterval <= 0 {
		rf.stop = nil
		return
	}
	rf.mode = ModePoll
	rf.wg.Add(1)
	go rf.poll(rf.PollInterval, rf.stop)
}

func (rf *Refresher) newWatcher(targets []string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	added := make(map[string]bool)
	for _, path := range targets {
		dir := filepath.Dir(path)
		if added[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, err
		}
		added[dir] = true
	}
	return watcher, nil
}

// Stop stops the refresher and waits for its goroutine to exit.
func (rf *Refresher) Stop() {
	rf.mu.Lock()
	if rf.mode == ModeStopped {
		rf.mu.Unlock()
		return
	}
	close(rf.stop)
	watcher := rf.watcher
	rf.watcher, rf.stop = nil, nil
	rf.mode = ModeStopped
	rf.mu.Unlock()

	rf.wg.Wait()
	if watcher != nil {
		if err := watcher.Close(); err != nil {
			rf.Log.Warn("closing dataset watcher", zap.Error(err))
		}
	}
	rf.Log.Info("dataset refresher stopped")
}

// Mode reports whether the refresher is watching, polling or stopped.
func (rf *Refresher) Mode() string {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return rf.mode
}

// =============================================================================
// WATCHING
// =============================================================================

func (rf *Refresher) watch(watcher *fsnotify.Watcher, targets []string, stop <-chan struct{}) {
	defer rf.wg.Done()

	wanted := make(map[string]bool, len(targets))
	for _, path := range targets {
		wanted[path] = true
	}

	tick := rf.Debounce / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	settle := time.NewTicker(tick)
	defer settle.Stop()

	for {
		select {
		case <-stop:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			rf.handleEvent(event, wanted)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			rf.Log.Warn("dataset watcher error", zap.Error(err))
		case now := <-settle.C:
			rf.flush(now)
		}
	}
}

func (rf *Refresher) handleEvent(event fsnotify.Event, wanted map[string]bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	path := filepath.Clean(event.Name)
	if !wanted[path] {
		return
	}
	rf.Log.Debug("source event", zap.String("path", path), zap.String("op", event.Op.String()))

	rf.mu.Lock()
	rf.pending[path] = time.Now()
	rf.mu.Unlock()
}

// flush acts on paths whose last event is older than the debounce window.
func (rf *Refresher) flush(now time.Time) bool {
	rf.mu.Lock()
	var settled []string
	for path, at := range rf.pending {
		if now.Sub(at) >= rf.Debounce {
			settled = append(settled, path)
			delete(rf.pending, path)
		}
	}
	if len(settled) > 0 {
		rf.lastRun = now
	}
	rf.mu.Unlock()

	if len(settled) == 0 {
		return false
	}
	return rf.clear(settled)
}

// =============================================================================
// POLLING
// =============================================================================

func (rf *Refresher) poll(interval time.Duration, stop <-chan struct{}) {
	defer rf.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rf.CheckNow()
	for {
		select {
		case <-ticker.C:
			rf.CheckNow()
		case <-stop:
			return
		}
	}
}

// CheckNow compares the source files with the previous check and clears the
// session if any changed. The first check only records a baseline. It
// reports whether the session was cleared.
func (rf *Refresher) CheckNow() bool {
	rf.mu.Lock()
	rf.lastRun = time.Now()
	var changed []string
	for _, path := range rf.targets() {
		current := stampOf(path)
		previous, known := rf.seen[path]
		rf.seen[path] = current
		if known && current.differs(previous) {
			changed = append(changed, path)
		}
	}
	rf.mu.Unlock()

	if len(changed) == 0 {
		return false
	}
	return rf.clear(changed)
}

func (rf *Refresher) clear(paths []string) bool {
	snap, fs := rf.Session.Cached()
	if snap == nil && fs == nil {
		rf.Log.Debug("source changed, nothing cached", zap.Strings("paths", paths))
		return false
	}
	rf.Session.Clear()
	rf.Log.Info("source changed, dataset cache cleared", zap.Strings("paths", paths))
	return true
}

// LastRun returns when changes were last acted on (watching) or checked
// (polling).
func (rf *Refresher) LastRun() time.Time {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return rf.lastRun
}
