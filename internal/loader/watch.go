package loader

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"agentfabric/internal/logging"
)

// watcher invalidates cached callables when their artifacts change on disk.
// This covers out-of-band edits; in-process replacement already invalidates
// explicitly.
type watcher struct {
	fs   *fsnotify.Watcher
	done chan struct{}
}

// Watch starts watching the given artifact directories. Events on *.go
// files invalidate the component named after the file. Calling Watch twice
// replaces the previous watcher.
func (l *Loader) Watch(dirs ...string) error {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := fs.Add(dir); err != nil {
			fs.Close()
			return err
		}
	}

	if l.watcher != nil {
		l.watcher.stop()
	}
	w := &watcher{fs: fs, done: make(chan struct{})}
	l.watcher = w

	go l.watchLoop(w)
	logging.Loader().Debugw("artifact watch started", "dirs", dirs)
	return nil
}

func (l *Loader) watchLoop(w *watcher) {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename|fsnotify.Create) == 0 {
				continue
			}
			name := componentName(event.Name)
			if name == "" {
				continue
			}
			l.Invalidate(name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Loader().Warnw("artifact watch error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the artifact watcher, if running.
func (l *Loader) Close() error {
	if l.watcher == nil {
		return nil
	}
	w := l.watcher
	l.watcher = nil
	return w.stop()
}

func (w *watcher) stop() error {
	close(w.done)
	return w.fs.Close()
}

// componentName maps an artifact path to its component name, or "" for
// files that are not artifacts.
func componentName(path string) string {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".go") {
		return ""
	}
	return strings.TrimSuffix(base, ".go")
}
