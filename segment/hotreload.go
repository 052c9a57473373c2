package segment

import (
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/vidmask/logger"
)

// TuningWatcher decides whether the tuning file changed since it was last
// read, by modification time.
//
// A file that cannot be stat'ed reports "unchanged": a broken file keeps the
// previous configuration instead of driving a reconfigure on every dirty
// frame. The failure is logged at most once per warn interval so a file
// that stays unreadable does not go unnoticed.
type TuningWatcher struct {
	fs  afero.Fs
	log *zap.SugaredLogger

	mu           sync.Mutex
	path         string
	lastMod      time.Time
	stored       bool
	statFailures int
	warn         *rate.Limiter
	onPathChange func(path string)
}

// NewTuningWatcher creates a watcher over fs. warnInterval spaces stat
// failure warnings.
func NewTuningWatcher(fs afero.Fs, warnInterval time.Duration, log *zap.SugaredLogger) *TuningWatcher {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = logger.ComponentLogger("segment.watcher")
	}
	if warnInterval <= 0 {
		warnInterval = 30 * time.Second
	}
	return &TuningWatcher{
		fs:   fs,
		log:  logger.AddWatchSymbol(log),
		warn: rate.NewLimiter(rate.Every(warnInterval), 1),
	}
}

// OnPathChange registers fn to run, outside the watcher lock, whenever
// SetPath or MarkRead moves the watcher to another file. nil unregisters.
func (w *TuningWatcher) OnPathChange(fn func(path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onPathChange = fn
}

// SetPath points the watcher at path. A different path forgets the stored
// time, so the next check reports a change.
func (w *TuningWatcher) SetPath(path string) {
	w.mu.Lock()
	changed := path != w.path
	if changed {
		w.path = path
		w.stored = false
		w.lastMod = time.Time{}
	}
	fn := w.onPathChange
	w.mu.Unlock()

	if changed && fn != nil {
		fn(path)
	}
}

// Path returns the watched tuning file
func (w *TuningWatcher) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// HasConfigFileChanged compares the on-disk mtime with the stored one
func (w *TuningWatcher) HasConfigFileChanged() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.stored {
		return true
	}
	info, err := w.fs.Stat(w.path)
	if err != nil {
		w.statFailures++
		if w.warn.Allow() {
			w.log.Warnw("Tuning file stat failed, keeping current configuration",
				logger.FieldPath, w.path,
				logger.FieldError, err,
				"failures", w.statFailures)
		}
		return false
	}
	return !info.ModTime().Equal(w.lastMod)
}

// MarkRead stores path's mtime after a successful read
func (w *TuningWatcher) MarkRead(path string) {
	w.mu.Lock()
	changed := path != w.path
	fn := w.onPathChange
	w.markRead(path)
	w.mu.Unlock()

	if changed && fn != nil {
		fn(path)
	}
}

func (w *TuningWatcher) markRead(path string) {
	w.path = path
	info, err := w.fs.Stat(path)
	if err != nil {
		// Forget the old time; the next check reports a change.
		w.stored = false
		w.log.Debugw("Tuning file stat failed after read", logger.FieldPath, path, logger.FieldError, err)
		return
	}
	w.lastMod = info.ModTime()
	w.stored = true
	w.statFailures = 0
}

// LastModified returns the stored mtime, zero if none
func (w *TuningWatcher) LastModified() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastMod
}

// StatFailures counts stat failures since the last successful read
func (w *TuningWatcher) StatFailures() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.statFailures
}
