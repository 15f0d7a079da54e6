package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
	"github.com/Veraticus/activity-detector/pkg/logging"
)

// DefaultDebounce collapses bursts of filesystem events, such as an editor
// save, into one signal.
const DefaultDebounce = 50 * time.Millisecond

var defaultIgnorePaths = []string{".git", "node_modules", ".DS_Store"}

// FileWatcher reports writes under a set of directory trees.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	roots    []string
	signal   string
	debounce time.Duration
	ignore   []string
	logger   *slog.Logger

	closeOnce sync.Once
}

// NewFileWatcher watches every directory under paths.
func NewFileWatcher(paths []string, logger *slog.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &FileWatcher{
		watcher:  watcher,
		roots:    append([]string(nil), paths...),
		signal:   SignalFileChange,
		debounce: DefaultDebounce,
		ignore:   defaultIgnorePaths,
		logger:   logger,
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", root, err)
		}
		if !info.IsDir() {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: not a directory", root)
		}
		w.watchDirRecursive(root)
	}

	return w, nil
}

// Name implements Source.
func (w *FileWatcher) Name() string {
	return "files"
}

// Roots returns the watched directory trees.
func (w *FileWatcher) Roots() []string {
	return append([]string(nil), w.roots...)
}

// watchDirRecursive adds root and every subdirectory to the watcher.
func (w *FileWatcher) watchDirRecursive(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Debug("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *FileWatcher) ignored(path string) bool {
	base := filepath.Base(path)
	for _, ignore := range w.ignore {
		if base == ignore {
			return true
		}
	}
	return false
}

// Run dispatches one signal per burst of writes until ctx is cancelled.
// The watcher is closed when Run returns.
func (w *FileWatcher) Run(ctx context.Context, d interfaces.SignalDispatcher) error {
	defer func() { _ = w.Close() }()

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer

	for {
		select {
		case <-ctx.Done():
			debounceTimer.Stop()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if w.ignored(event.Name) {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.watchDirRecursive(event.Name)
				}
			}

			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			d.Dispatch(w.signal)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// Close releases the underlying watcher. It is safe to call more than once.
func (w *FileWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
	})
	return err
}
