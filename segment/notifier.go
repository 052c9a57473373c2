package segment

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/logger"
)

// TuningNotifier turns filesystem events on a tuning file into a dirty
// engine. The engine still compares mtimes to decide between a full
// reconfigure and a lightweight patch.
type TuningNotifier struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func()
	debounce time.Duration
	log      *zap.SugaredLogger

	mu    sync.Mutex
	timer *time.Timer

	done     chan struct{}
	stopOnce sync.Once
}

// NewTuningNotifier watches path's directory and calls onChange once per
// burst of writes to path.
func NewTuningNotifier(path string, debounce time.Duration, onChange func()) (*TuningNotifier, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", path)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, errors.Wrapf(err, "failed to watch tuning directory for %s", abs)
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &TuningNotifier{
		path:     abs,
		watcher:  w,
		onChange: onChange,
		debounce: debounce,
		log:      logger.AddWatchSymbol(logger.ComponentLogger("segment.notifier")),
		done:     make(chan struct{}),
	}, nil
}

// Path returns the absolute watched path
func (n *TuningNotifier) Path() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

// SetPath moves the notifier to another tuning file, re-arming the
// directory watch when the file lives elsewhere. On failure the old path
// stays watched.
func (n *TuningNotifier) SetPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve %s", path)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if abs == n.path {
		return nil
	}
	oldDir, newDir := filepath.Dir(n.path), filepath.Dir(abs)
	if oldDir != newDir {
		if err := n.watcher.Add(newDir); err != nil {
			return errors.Wrapf(err, "failed to watch tuning directory for %s", abs)
		}
		if err := n.watcher.Remove(oldDir); err != nil {
			n.log.Debugw("Removing old tuning directory watch failed", logger.FieldPath, oldDir, logger.FieldError, err)
		}
	}
	n.log.Infow("Tuning notifier re-armed", "from", n.path, logger.FieldPath, abs)
	n.path = abs
	return nil
}

// Start begins watching
func (n *TuningNotifier) Start() {
	go n.loop()
}

func (n *TuningNotifier) loop() {
	for {
		select {
		case <-n.done:
			return
		case event, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != n.Path() {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			n.schedule()
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			n.log.Warnw("Tuning notifier error", logger.FieldError, err)
		}
	}
}

func (n *TuningNotifier) schedule() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.debounce, func() {
		select {
		case <-n.done:
			return
		default:
		}
		n.log.Infow("Tuning file changed", logger.FieldPath, n.Path())
		n.onChange()
	})
}

// Stop stops watching. Safe to call multiple times.
func (n *TuningNotifier) Stop() error {
	var err error
	n.stopOnce.Do(func() {
		close(n.done)
		n.mu.Lock()
		if n.timer != nil {
			n.timer.Stop()
		}
		n.mu.Unlock()
		err = n.watcher.Close()
	})
	return err
}
