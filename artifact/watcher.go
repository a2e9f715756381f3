package artifact

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"tptpredict/errors"
	"tptpredict/logger"
)

// Watcher reloads a Loader when one of its artifact files changes.
type Watcher struct {
	loader         *Loader
	watcher        *fsnotify.Watcher
	files          map[string]struct{}
	debouncePeriod time.Duration

	mu            sync.Mutex
	debounceTimer *time.Timer
	done          chan struct{}
	closeOnce     sync.Once
}

// NewWatcher watches the directories holding the loader's artifacts. The
// directories are watched rather than the files so that replace-by-rename
// exports are seen.
func NewWatcher(loader *Loader) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	w := &Watcher{
		loader:         loader,
		watcher:        fw,
		files:          make(map[string]struct{}),
		debouncePeriod: 500 * time.Millisecond,
		done:           make(chan struct{}),
	}
	dirs := make(map[string]struct{})
	for _, p := range loader.Options().Paths() {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "resolve %s", p)
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "failed to watch artifact dir %s", dir)
		}
	}
	return w, nil
}

// Start begins watching in the background.
func (w *Watcher) Start() {
	go w.watchLoop()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, ok := w.files[abs]; !ok {
				continue
			}
			logger.Infow("artifact change detected", "file", event.Name, "op", event.Op.String())
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("artifact watcher error", "error", err)
		}
	}
}

// scheduleReload collapses bursts of events from one export into one reload.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, func() {
		if err := w.loader.Reload(); err != nil {
			logger.Errorw("artifact reload failed, keeping previous artifacts", "error", err)
			return
		}
		logger.Infow("artifacts reloaded")
	})
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}
