package workspace

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/yourorg/seekd/internal/logging"
)

// watcher evicts overlay entries whose backing file changes on disk out from
// under the open document. Directories are watched rather than files so
// rename-and-replace saves (the common editor pattern) are still observed.
type watcher struct {
	ws *Workspace
	fw *fsnotify.Watcher

	mu      sync.Mutex
	tracked map[string]int // watched directory -> tracked file count
	files   map[string]struct{}
	done    chan struct{}
}

// StartWatcher begins watching the directories of open documents. It is a
// no-op if already started.
func (w *Workspace) StartWatcher() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	wt := &watcher{
		ws:      w,
		fw:      fw,
		tracked: make(map[string]int),
		files:   make(map[string]struct{}),
		done:    make(chan struct{}),
	}
	for p := range w.overlay {
		wt.track(p)
	}
	w.watcher = wt
	go wt.run()
	return nil
}

// StopWatcher tears the watcher down.
func (w *Workspace) StopWatcher() {
	w.mu.Lock()
	wt := w.watcher
	w.watcher = nil
	w.mu.Unlock()
	if wt != nil {
		close(wt.done)
		_ = wt.fw.Close()
	}
}

func (wt *watcher) track(path string) {
	dir := filepath.Dir(path)
	wt.mu.Lock()
	defer wt.mu.Unlock()
	if _, ok := wt.files[path]; ok {
		return
	}
	wt.files[path] = struct{}{}
	wt.tracked[dir]++
	if wt.tracked[dir] == 1 {
		if err := wt.fw.Add(dir); err != nil {
			wt.ws.logger.Warn("watch add failed",
				logging.String("dir", dir), logging.Error(err))
		}
	}
}

func (wt *watcher) untrack(path string) {
	dir := filepath.Dir(path)
	wt.mu.Lock()
	defer wt.mu.Unlock()
	if _, ok := wt.files[path]; !ok {
		return
	}
	delete(wt.files, path)
	wt.tracked[dir]--
	if wt.tracked[dir] <= 0 {
		delete(wt.tracked, dir)
		_ = wt.fw.Remove(dir)
	}
}

func (wt *watcher) run() {
	for {
		select {
		case <-wt.done:
			return
		case ev, ok := <-wt.fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename|fsnotify.Create) == 0 {
				continue
			}
			path := normalize(ev.Name)
			wt.mu.Lock()
			_, tracked := wt.files[path]
			wt.mu.Unlock()
			if tracked {
				wt.ws.evict(path)
				wt.untrack(path)
			}
		case err, ok := <-wt.fw.Errors:
			if !ok {
				return
			}
			wt.ws.logger.Warn("watcher error", logging.Error(err))
		}
	}
}
