package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/notewell/notesync/internal/reconcile"
	"github.com/notewell/notesync/internal/utils"
)

const (
	defaultCloudBatch = time.Second
	trashDirName      = ".Trash"
	notDownloadedExt  = ".notdownloaded"
	downloadErrorExt  = ".downloaderror"
	uploadErrorExt    = ".uploaderror"
	conflictInfix     = ".conflict-"
)

// FSCloudWatcher stands in for the platform's ubiquitous-container
// watcher: a plain directory, watched with fsnotify instead of the
// rjeczalik/notify recursive watcher the local side uses, batched on a
// ~1s interval per §6. Sidecar files (dot-suffixed, in the spirit of the
// teacher's marker scheme in sync_marker.go) carry the three per-item
// attributes CloudSet needs that a plain file can't: isDownloaded,
// hasUnresolvedConflicts, and the two error slots.
//
// FSCloudWatcher also implements iocoord.CloudStore: the same directory
// this type observes is the one the orchestrator writes through.
type FSCloudWatcher struct {
	dir      string
	ignore   *IgnoreList
	observer CloudObserver
	batch    time.Duration

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup

	timerMu sync.Mutex
	timer   *time.Timer

	ignoreOnceMu sync.Mutex
	ignoreOnce   map[string]time.Time
}

func NewFSCloudWatcher(dir string, observer CloudObserver) *FSCloudWatcher {
	return &FSCloudWatcher{
		dir:        dir,
		ignore:     NewIgnoreList(dir),
		observer:   observer,
		batch:      defaultCloudBatch,
		done:       make(chan struct{}),
		ignoreOnce: make(map[string]time.Time),
	}
}

func (w *FSCloudWatcher) Start() error {
	if err := utils.EnsureDir(w.dir); err != nil {
		return fmt.Errorf("create cloud container dir %s: %w", w.dir, err)
	}
	if err := utils.EnsureDir(filepath.Join(w.dir, trashDirName)); err != nil {
		return fmt.Errorf("create cloud trash dir: %w", err)
	}
	w.ignore.Load()

	set, err := w.scan()
	if err != nil {
		return fmt.Errorf("initial cloud scan: %w", err)
	}
	w.observer.DidFinishGatheringCloud(set)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create cloud fsnotify watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return fmt.Errorf("watch cloud container: %w", err)
	}
	if err := fw.Add(filepath.Join(w.dir, trashDirName)); err != nil {
		fw.Close()
		return fmt.Errorf("watch cloud trash: %w", err)
	}
	w.watcher = fw

	w.wg.Add(1)
	go w.loop()

	slog.Info("watch", "op", "cloud_start", "dir", w.dir)
	return nil
}

func (w *FSCloudWatcher) Stop() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.wg.Wait()
	slog.Info("watch", "op", "cloud_stop", "dir", w.dir)
}

func (w *FSCloudWatcher) IgnoreOnce(path string) {
	w.ignoreOnceMu.Lock()
	defer w.ignoreOnceMu.Unlock()
	w.ignoreOnce[path] = time.Now().Add(w.batch * 2)
}

func (w *FSCloudWatcher) isIgnoredOnce(path string) bool {
	w.ignoreOnceMu.Lock()
	defer w.ignoreOnceMu.Unlock()
	expiry, ok := w.ignoreOnce[path]
	if !ok {
		return false
	}
	delete(w.ignoreOnce, path)
	return time.Now().Before(expiry)
}

func (w *FSCloudWatcher) loop() {
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
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.isIgnoredOnce(ev.Name) || w.ignore.ShouldIgnore(ev.Name) {
				continue
			}
			w.scheduleFlush()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.observer.DidReceiveCloudUnavailable(err)
		}
	}
}

func (w *FSCloudWatcher) scheduleFlush() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.batch, w.flush)
}

func (w *FSCloudWatcher) flush() {
	set, err := w.scan()
	if err != nil {
		w.observer.DidReceiveCloudUnavailable(err)
		return
	}
	w.observer.DidUpdateCloud(set)
}

// scan rebuilds the full CloudSet: non-trashed live entries keyed by
// name, trashed entries keyed by a disambiguated ".Trash/name" so a
// live item and its trashed predecessor can coexist in one map — see
// reconcile.indexCloud, which groups by the item's Name field rather than
// by this key.
func (w *FSCloudWatcher) scan() (reconcile.CloudSet, error) {
	set := make(reconcile.CloudSet)

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == trashDirName {
			continue
		}
		name := entry.Name()
		if isSidecarOrConflict(name) {
			continue
		}
		if w.ignore.ShouldIgnore(name) || !utils.IsAcceptedNote(name) {
			continue
		}

		item, err := w.buildItem(name, filepath.Join(w.dir, name), false)
		if err != nil {
			return nil, err
		}
		set[name] = item
	}

	trashDir := filepath.Join(w.dir, trashDirName)
	trashEntries, err := os.ReadDir(trashDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, entry := range trashEntries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if isSidecarOrConflict(name) || !utils.IsAcceptedNote(name) {
			continue
		}
		item, err := w.buildItem(name, filepath.Join(trashDir, name), true)
		if err != nil {
			return nil, err
		}
		set[trashDirName+"/"+name] = item
	}

	return set, nil
}

func (w *FSCloudWatcher) buildItem(name, path string, inTrash bool) (reconcile.CloudItem, error) {
	info, err := os.Stat(path)
	if err != nil {
		return reconcile.CloudItem{}, err
	}

	item := reconcile.CloudItem{
		Name:        name,
		URL:         path,
		Size:        info.Size(),
		HasSize:     true,
		ContentType: utils.DetectContentType(name),
		CreatedAt:   info.ModTime().Unix(),
		ModifiedAt:  info.ModTime().Unix(),
		IsInTrash:   inTrash,
	}

	item.IsDownloaded = !utils.FileExists(path + notDownloadedExt)
	item.HasUnresolvedConflicts = len(conflictSiblings(filepath.Dir(path), name)) > 0

	if raw, err := os.ReadFile(path + downloadErrorExt); err == nil {
		item.DownloadingError = decodeSidecarError(name, raw)
	}
	if raw, err := os.ReadFile(path + uploadErrorExt); err == nil {
		item.UploadingError = decodeSidecarError(name, raw)
	}

	return item, nil
}

func isSidecarOrConflict(name string) bool {
	return strings.HasSuffix(name, notDownloadedExt) ||
		strings.HasSuffix(name, downloadErrorExt) ||
		strings.HasSuffix(name, uploadErrorExt) ||
		strings.Contains(name, conflictInfix)
}

func conflictSiblings(dir, name string) []string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	matches, _ := filepath.Glob(filepath.Join(dir, stem+conflictInfix+"*"+ext))
	return matches
}

type sidecarError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeSidecarError(item string, raw []byte) *reconcile.SyncError {
	var se sidecarError
	if err := json.Unmarshal(raw, &se); err != nil {
		return reconcile.NewSyncError(reconcile.ErrInternal, item, err)
	}
	return reconcile.NewSyncError(reconcile.ErrorCode(se.Code), item, fmt.Errorf("%s", se.Message))
}

// --- iocoord.CloudStore ---

func (w *FSCloudWatcher) ReadBytes(_ context.Context, item reconcile.CloudItem) ([]byte, error) {
	return os.ReadFile(item.URL)
}

func (w *FSCloudWatcher) WriteBytes(_ context.Context, name string, body []byte, modTime time.Time) error {
	path := filepath.Join(w.dir, name)
	w.IgnoreOnce(path)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return err
	}
	os.Remove(path + notDownloadedExt)
	return os.Chtimes(path, modTime, modTime)
}

func (w *FSCloudWatcher) MoveToTrash(_ context.Context, name string) error {
	trashPath := filepath.Join(w.dir, trashDirName, name)
	if utils.FileExists(trashPath) {
		if err := os.Remove(trashPath); err != nil {
			return fmt.Errorf("evict stale trash entry for %s: %w", name, err)
		}
	}
	w.IgnoreOnce(trashPath)
	return os.Rename(filepath.Join(w.dir, name), trashPath)
}

func (w *FSCloudWatcher) StartDownloading(_ context.Context, item reconcile.CloudItem) error {
	marker := item.URL + notDownloadedExt
	if !utils.FileExists(marker) {
		return nil
	}
	w.IgnoreOnce(item.URL)
	return os.Remove(marker)
}

func (w *FSCloudWatcher) ConflictVersions(_ context.Context, item reconcile.CloudItem) ([]reconcile.CloudItem, error) {
	base, err := w.buildItem(item.Name, item.URL, item.IsInTrash)
	if err != nil {
		return nil, err
	}
	versions := []reconcile.CloudItem{base}

	for _, path := range conflictSiblings(filepath.Dir(item.URL), item.Name) {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		versions = append(versions, reconcile.CloudItem{
			Name:         item.Name,
			URL:          path,
			Size:         info.Size(),
			HasSize:      true,
			ContentType:  item.ContentType,
			ModifiedAt:   info.ModTime().Unix(),
			IsDownloaded: true,
		})
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].ModifiedAt > versions[j].ModifiedAt })
	return versions, nil
}

func (w *FSCloudWatcher) ReadVersionBytes(_ context.Context, version reconcile.CloudItem) ([]byte, error) {
	return os.ReadFile(version.URL)
}

func (w *FSCloudWatcher) ClearAlternateVersions(_ context.Context, name string) error {
	dir := filepath.Join(w.dir)
	for _, path := range conflictSiblings(dir, name) {
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}
