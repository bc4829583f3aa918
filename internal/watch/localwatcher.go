package watch

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/notewell/notesync/internal/reconcile"
	"github.com/notewell/notesync/internal/utils"
	"github.com/rjeczalik/notify"
)

const (
	defaultLocalDebounce = 200 * time.Millisecond
	localEventBufferSize = 64
)

// FSLocalWatcher is the concrete LocalWatcher: a plain directory on disk,
// walked in full on every debounced burst. Grounded on the teacher's
// FileWatcher, generalized from per-path delta events to the full-snapshot
// contract §6 requires of this watcher.
type FSLocalWatcher struct {
	dir      string
	ignore   *IgnoreList
	observer LocalObserver
	debounce time.Duration

	rawEvents chan notify.EventInfo
	done      chan struct{}
	wg        sync.WaitGroup

	timerMu sync.Mutex
	timer   *time.Timer
}

func NewFSLocalWatcher(dir string, observer LocalObserver) *FSLocalWatcher {
	return &FSLocalWatcher{
		dir:      dir,
		ignore:   NewIgnoreList(dir),
		observer: observer,
		debounce: defaultLocalDebounce,
		done:     make(chan struct{}),
	}
}

// Start ensures the directory exists, reports the initial gathered
// snapshot, then begins watching for changes. A failure here (typically a
// POSIX errno from the underlying notify syscall) is fatal per §6 and is
// returned unwrapped-enough for the orchestrator to log its cause.
func (w *FSLocalWatcher) Start() error {
	if err := utils.EnsureDir(w.dir); err != nil {
		return fmt.Errorf("create local watch dir %s: %w", w.dir, err)
	}
	w.ignore.Load()

	set, err := w.scan()
	if err != nil {
		return fmt.Errorf("initial local scan: %w", err)
	}
	w.observer.DidFinishGatheringLocal(set)

	w.rawEvents = make(chan notify.EventInfo, localEventBufferSize)
	if err := notify.Watch(w.dir+"/...", w.rawEvents, notify.Write, notify.Create, notify.Remove, notify.Rename); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.wg.Add(1)
	go w.loop()

	slog.Info("watch", "op", "local_start", "dir", w.dir)
	return nil
}

func (w *FSLocalWatcher) Stop() {
	close(w.done)
	if w.rawEvents != nil {
		notify.Stop(w.rawEvents)
	}
	w.wg.Wait()
	slog.Info("watch", "op", "local_stop", "dir", w.dir)
}

func (w *FSLocalWatcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			w.timerMu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timerMu.Unlock()
			return
		case ev, ok := <-w.rawEvents:
			if !ok {
				return
			}
			if w.ignore.ShouldIgnore(ev.Path()) {
				continue
			}
			w.scheduleFlush()
		}
	}
}

// scheduleFlush restarts the debounce timer on every event, so a burst of
// writes to the same file collapses into a single rescan.
func (w *FSLocalWatcher) scheduleFlush() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *FSLocalWatcher) flush() {
	set, err := w.scan()
	if err != nil {
		w.observer.DidReceiveLocalMonitorError(err)
		return
	}
	w.observer.DidUpdateLocal(set)
}

// scan walks dir and builds a full LocalSet, filtered to the single
// accepted content type (Markdown notes) and to whatever the ignore list
// excludes.
func (w *FSLocalWatcher) scan() (reconcile.LocalSet, error) {
	set := make(reconcile.LocalSet)

	err := filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(w.dir, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if w.ignore.ShouldIgnore(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.ignore.ShouldIgnore(rel) || !utils.IsAcceptedNote(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		set[rel] = reconcile.LocalItem{
			Name:        rel,
			URL:         path,
			Size:        info.Size(),
			HasSize:     true,
			ContentType: utils.DetectContentType(rel),
			// Go's fs.FileInfo carries no reliable creation time across
			// platforms; modification time doubles as both fields.
			CreatedAt:  info.ModTime().Unix(),
			ModifiedAt: info.ModTime().Unix(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}
