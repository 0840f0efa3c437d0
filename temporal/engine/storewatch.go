package engine

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/logger"
)

// DefaultDebounce coalesces bursts of writes into one reload.
const DefaultDebounce = 500 * time.Millisecond

// StoreWatcher reloads the registry when another process writes the
// database file, e.g. a planner inserting tomorrow's events.
type StoreWatcher struct {
	dbPath   string
	watcher  *fsnotify.Watcher
	reload   func(context.Context) error
	debounce time.Duration
	logger   *zap.SugaredLogger

	mu            sync.Mutex
	debounceTimer *time.Timer
	stopped       bool
	done          chan struct{}
}

// NewStoreWatcher watches the directory holding dbPath. SQLite writes land
// in the -wal and -journal siblings, so those names count as changes too.
func NewStoreWatcher(dbPath string, reload func(context.Context) error, log *zap.SugaredLogger) (*StoreWatcher, error) {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", dbPath)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, errors.Wrapf(err, "failed to watch %s", filepath.Dir(abs))
	}
	if log == nil {
		log = logger.Logger
	}
	return &StoreWatcher{
		dbPath:   abs,
		watcher:  watcher,
		reload:   reload,
		debounce: DefaultDebounce,
		logger:   logger.AddDBSymbol(log),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching in a goroutine
func (w *StoreWatcher) Start() {
	go w.watchLoop()
}

// Stop closes the watcher and cancels a pending reload.
func (w *StoreWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *StoreWatcher) watchLoop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !w.isStoreFile(event.Name) {
				continue
			}
			w.logger.Debugw("Store change detected",
				logger.FieldPath, event.Name,
				"op", event.Op.String())
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("Store watcher error", logger.FieldError, err.Error())
		}
	}
}

func (w *StoreWatcher) isStoreFile(name string) bool {
	base := filepath.Base(name)
	db := filepath.Base(w.dbPath)
	if base == db {
		return true
	}
	suffix := strings.TrimPrefix(base, db)
	return suffix != base && (suffix == "-wal" || suffix == "-journal")
}

// scheduleReload restarts the debounce timer
func (w *StoreWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, func() {
		if err := w.reload(context.Background()); err != nil {
			w.logger.Errorw("Registry reload after store change failed", logger.FieldError, err.Error())
		}
	})
}
