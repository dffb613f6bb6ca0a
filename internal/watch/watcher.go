// Package watch reports images that appear in or disappear from the viewed
// directories. The loader's path list is fixed for a session, so changes are
// only surfaced as notices.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"minimg/internal/decode"
	serr "minimg/internal/errors"
	"minimg/internal/log"
)

// ChangeKind classifies a Change
type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
	Modified
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "modified"
	}
}

// Change is one image event detected by the watcher
type Change struct {
	Path      string
	Kind      ChangeKind
	Timestamp time.Time
	Op        fsnotify.Op
}

// Summary counts the changes seen since the watcher started
type Summary struct {
	Added, Removed, Modified int
}

// Total returns the number of changes of any kind
func (s Summary) Total() int {
	return s.Added + s.Removed + s.Modified
}

// Changed counts the changes that make the viewed list stale
func (s Summary) Changed() int {
	return s.Added + s.Removed
}

// Notice is the status line text for a stale list, or "" while it is current
func (s Summary) Notice() string {
	if n := s.Changed(); n > 0 {
		return fmt.Sprintf("%d changed, restart to refresh", n)
	}
	return ""
}

// Source is the part of a Watcher the viewers use: Changes wakes them up,
// Summary holds the counts to show
type Source interface {
	Changes() <-chan Change
	Summary() Summary
}

// Watcher monitors directories for image changes using fsnotify
type Watcher struct {
	directories []string

	// known holds the paths the viewer is showing
	known map[string]bool

	// isImage decides which files are worth reporting
	isImage func(path string) bool

	changes   chan Change
	stopChan  chan struct{}
	loopDone  chan struct{}
	fsWatcher *fsnotify.Watcher

	mutex   sync.RWMutex
	running bool
	stopped bool
	summary Summary
}

// New creates a watcher that knows about paths. Events for files outside
// that list are only reported when they look like images.
func New(paths []string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, serr.Wrap(err, "failed to create fsnotify watcher")
	}

	known := make(map[string]bool, len(paths))
	for _, p := range paths {
		known[filepath.Clean(p)] = true
	}
	return &Watcher{
		known:     known,
		isImage:   decode.HasImageExtension,
		changes:   make(chan Change, 16),
		stopChan:  make(chan struct{}),
		loopDone:  make(chan struct{}),
		fsWatcher: fsWatcher,
	}, nil
}

// AddDirectory adds a directory to watch
func (w *Watcher) AddDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return serr.NewFileError("error accessing directory", dir, serr.FileNotFound, err)
	}
	if !info.IsDir() {
		return serr.NewFileError("not a directory", dir, serr.InvalidPath, nil)
	}

	if err := w.fsWatcher.Add(dir); err != nil {
		return serr.NewFileError("failed to watch directory", dir, serr.FileAccessDenied, err)
	}

	w.mutex.Lock()
	found := false
	for _, existing := range w.directories {
		if existing == dir {
			found = true
			break
		}
	}
	if !found {
		w.directories = append(w.directories, dir)
	}
	w.mutex.Unlock()
	log.LogWithFields(log.F("directory", dir)).Debug("Watching directory")
	return nil
}

// AddDirectoriesOf watches the parent directory of every known path
func (w *Watcher) AddDirectoriesOf(paths []string) error {
	seen := make(map[string]bool)
	for _, p := range paths {
		dir := filepath.Dir(p)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := w.AddDirectory(dir); err != nil {
			return err
		}
	}
	return nil
}

// Changes returns the channel that delivers changes. It is closed by Stop.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Start begins processing fsnotify events
func (w *Watcher) Start() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.running {
		return serr.New("watcher already running")
	}
	if w.stopped {
		return serr.New("watcher is stopped")
	}
	w.running = true

	go w.loop()
	log.Debug("Watcher started")
	return nil
}

func (w *Watcher) loop() {
	defer close(w.loopDone)
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if change, ok := w.classify(event); ok {
				w.emit(change)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.LogWithError(err).Warn("fsnotify watcher error")

		case <-w.stopChan:
			return
		}
	}
}

// classify maps a raw event to an image change, dropping the rest
func (w *Watcher) classify(event fsnotify.Event) (Change, bool) {
	path := filepath.Clean(event.Name)

	w.mutex.Lock()
	defer w.mutex.Unlock()

	change := Change{Path: path, Timestamp: time.Now(), Op: event.Op}
	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		if !w.known[path] && !w.isImage(path) {
			return Change{}, false
		}
		delete(w.known, path)
		change.Kind = Removed
		w.summary.Removed++

	case event.Op.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !w.isImage(path) {
			return Change{}, false
		}
		if w.known[path] {
			change.Kind = Modified
			w.summary.Modified++
		} else {
			w.known[path] = true
			change.Kind = Added
			w.summary.Added++
		}

	case event.Op.Has(fsnotify.Write):
		if !w.known[path] {
			return Change{}, false
		}
		change.Kind = Modified
		w.summary.Modified++

	default:
		return Change{}, false
	}
	return change, true
}

// emit never blocks; the summary still counts a dropped change
func (w *Watcher) emit(c Change) {
	select {
	case w.changes <- c:
	default:
		log.LogWithFields(log.F("file", c.Path)).Warn("Change channel is full, dropped change")
	}
}

// Stop halts the watcher, releases the fsnotify handle and closes the
// change channel. It is safe to call on a watcher that never started.
func (w *Watcher) Stop() {
	w.mutex.Lock()
	if w.stopped {
		w.mutex.Unlock()
		return
	}
	w.stopped = true
	wasRunning := w.running
	w.running = false
	close(w.stopChan)
	w.mutex.Unlock()

	if err := w.fsWatcher.Close(); err != nil {
		log.LogWithError(err).Error("Error closing fsnotify watcher")
	}
	if wasRunning {
		<-w.loopDone
	}
	close(w.changes)
	log.Debug("Watcher stopped")
}

// Directories returns the directories being watched
func (w *Watcher) Directories() []string {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	dirs := make([]string, len(w.directories))
	copy(dirs, w.directories)
	return dirs
}

// Summary returns the changes counted so far
func (w *Watcher) Summary() Summary {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.summary
}
