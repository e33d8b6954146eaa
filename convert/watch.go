package convert

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/duniatools/fcbfile/errors"
)

// Watcher reports edits made to markup files outside the tool. Events
// carries the path of each changed markup file, debounced so a single save
// from an editor arrives once.
type Watcher struct {
	watcher *fsnotify.Watcher
	Events  chan string
	Errors  chan error
	closeCh chan struct{}
	once    sync.Once
}

// Watch starts a Watcher over the directories holding the loaded level's
// markup files. Consumers pass each event to CheckMarkup and decide with
// Authority whether to ReloadMarkup.
func (o *Orchestrator) Watch() (*Watcher, error) {
	o.mu.Lock()
	seen := make(map[string]bool)
	var dirs []string
	for _, e := range o.entries {
		dir := filepath.Dir(e.markupPath)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	o.mu.Unlock()
	if len(dirs) == 0 {
		return nil, errors.New("no loaded level to watch")
	}
	sort.Strings(dirs)
	return NewWatcher(dirs...)
}

// NewWatcher watches dirs for markup file changes.
func NewWatcher(dirs ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	watcher := &Watcher{
		watcher: w,
		Events:  make(chan string, 16),
		Errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

// Close stops the watcher. The Events and Errors channels close once the
// watch loop drains.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.Errors)
	defer close(w.Events)
	last := make(map[string]time.Time)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !isMarkupPath(event.Name) {
				continue
			}
			now := time.Now()
			if t, ok := last[event.Name]; ok && now.Sub(t) < 100*time.Millisecond {
				continue
			}
			last[event.Name] = now
			select {
			case w.Events <- event.Name:
			case <-w.closeCh:
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			case <-w.closeCh:
				return
			}
		case <-w.closeCh:
			return
		}
	}
}

func isMarkupPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), markupSuffix)
}
