// Package orchestrator implements spec §4.6-§4.7 and the concurrency
// model of §5: it owns the two watchers, the Reconciler, a serialized
// work lane, and the reload-latch side effect, and it is the only caller
// of reconcile.Reconciler.Resolve. Grounded on the teacher's SyncManager
// (internal/client/sync/sync_manager.go) and SyncEngine's watcher/event
// pump (sync_engine.go's handleWatcherEvents/handleSocketEvents), adapted
// from the teacher's mutex-guarded "one sync at a time" discipline to the
// spec's explicit single-lane executor.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/notewell/notesync/internal/iocoord"
	"github.com/notewell/notesync/internal/reconcile"
	"github.com/notewell/notesync/internal/watch"
)

const (
	// backgroundExtensionWindow is the finite background-execution window
	// requested when the application backgrounds mid-sync (spec §5).
	backgroundExtensionWindow = 25 * time.Second
	laneBuffer                = 256
)

// BookmarksReloader is the downstream "reload bookmarks" hook spec §6
// names: a single idempotent call with no parameters and no return.
type BookmarksReloader interface {
	LoadBookmarks()
}

// Orchestrator wires the two watchers into the Reconciler and the
// Reconciler's outgoing events into the Coordinator, entirely on one
// serialized lane.
type Orchestrator struct {
	sessionID string // correlates this run's log lines; a fresh ID per New

	reconciler  *reconcile.Reconciler
	coordinator *iocoord.Coordinator
	local       iocoord.LocalWriter
	config      iocoord.ConfigStore

	localWatcher watch.LocalWatcher
	cloudWatcher watch.CloudWatcher
	reloader     BookmarksReloader

	lifecycle LifecycleSignal
	extender  BackgroundExtender

	lane      *lane // owns reconciler state + all I/O dispatch
	main      *lane // owns the reload latch side effect + extension teardown
	downloads *downloadDispatcher

	reloadLatch bool // exclusively owned by lane
	stopped     atomic.Bool
	inFlight    atomic.Int32

	watchersPaused bool

	wg   sync.WaitGroup
	done chan struct{}
}

// New wires an Orchestrator around its Reconciler and the two I/O
// primitives that don't double as watchers. The Coordinator itself is
// built in AttachWatchers, not here: the cloud-side iocoord.CloudStore is
// implemented by the same concrete type as the cloud watcher
// (FSCloudWatcher), and that watcher needs this Orchestrator as its
// observer — so the Coordinator can't be assembled until the caller has
// built the watchers, which in turn can't happen until New returns.
func New(
	reconciler *reconcile.Reconciler,
	local iocoord.LocalWriter,
	config iocoord.ConfigStore,
	reloader BookmarksReloader,
	lifecycle LifecycleSignal,
) *Orchestrator {
	o := &Orchestrator{
		sessionID:  uuid.New().String(),
		reconciler: reconciler,
		local:      local,
		config:     config,
		reloader:   reloader,
		lifecycle:  lifecycle,
		lane:       newLane(laneBuffer),
		main:       newLane(laneBuffer),
		downloads:  newDownloadDispatcher(),
		done:       make(chan struct{}),
	}
	o.extender = NewTimedExtender(o.onExtensionExpired)
	return o
}

// AttachWatchers completes construction. Call it after New, passing
// watchers built with this Orchestrator as their observer, and before
// Start. cloudStore is almost always the same value as cloudWatcher
// under its iocoord.CloudStore face — FSCloudWatcher implements both —
// but the two are accepted separately so a caller wiring in a different
// backing store for tests isn't forced to also fake the watcher.
func (o *Orchestrator) AttachWatchers(localWatcher watch.LocalWatcher, cloudWatcher watch.CloudWatcher, cloudStore iocoord.CloudStore) {
	o.localWatcher = localWatcher
	o.cloudWatcher = cloudWatcher
	o.coordinator = iocoord.NewCoordinator(o.local, cloudStore, o.config, o)
}

// Start subscribes to lifecycle transitions and performs the initial
// foreground start: start the cloud watcher, and on its success start the
// local watcher, per spec §4.6.
func (o *Orchestrator) Start() error {
	if o.localWatcher == nil || o.cloudWatcher == nil {
		return fmt.Errorf("orchestrator: AttachWatchers must be called before Start")
	}
	if err := o.startWatchers(); err != nil {
		return err
	}
	slog.Info("orchestrator", "op", "start", "session", o.sessionID)
	if o.lifecycle != nil {
		o.wg.Add(1)
		go o.watchLifecycle()
	}
	return nil
}

func (o *Orchestrator) startWatchers() error {
	if err := o.cloudWatcher.Start(); err != nil {
		return fmt.Errorf("start cloud watcher: %w", err)
	}
	if err := o.localWatcher.Start(); err != nil {
		o.cloudWatcher.Stop()
		return fmt.Errorf("start local watcher: %w", err)
	}
	o.watchersPaused = false
	return nil
}

// Stop tears down both watchers and stops both lanes. The task each lane
// is running is allowed to complete; tasks still queued may be dropped,
// and nothing new is accepted afterward.
func (o *Orchestrator) Stop() {
	close(o.done)
	o.localWatcher.Stop()
	o.cloudWatcher.Stop()
	o.wg.Wait()
	o.lane.Stop()
	o.downloads.Wait()
	o.main.Stop()
}

// Cancel implements the user-toggled-sync-off path of spec §5: reset() on
// the Reconciler, stop() on both watchers. In-flight tasks may complete,
// but the lane discipline means nothing further mutates state afterward.
func (o *Orchestrator) Cancel() {
	o.stopped.Store(true)
	o.localWatcher.Stop()
	o.cloudWatcher.Stop()
	o.lane.Post(func() { o.reconciler.Reset() })
}

func (o *Orchestrator) watchLifecycle() {
	defer o.wg.Done()
	for {
		select {
		case <-o.done:
			return
		case <-o.lifecycle.Foreground():
			o.onForeground()
		case <-o.lifecycle.Background():
			o.onBackground()
		}
	}
}

func (o *Orchestrator) onForeground() {
	o.main.Post(func() {
		o.extender.EndExtension()
		if !o.watchersPaused {
			return
		}
		if err := o.startWatchers(); err != nil {
			slog.Error("orchestrator", "op", "resume_watchers", "error", err)
		}
	})
}

func (o *Orchestrator) onBackground() {
	if o.inFlight.Load() > 0 {
		o.extender.BeginExtension(backgroundExtensionWindow)
		return
	}
	o.pauseWatchers()
}

func (o *Orchestrator) onExtensionExpired() {
	o.main.Post(o.pauseWatchers)
}

func (o *Orchestrator) pauseWatchers() {
	o.localWatcher.Stop()
	o.cloudWatcher.Stop()
	o.watchersPaused = true
}

// --- watch.LocalObserver ---

func (o *Orchestrator) DidFinishGatheringLocal(set reconcile.LocalSet) {
	o.lane.Post(func() { o.handleIncoming(reconcile.DidFinishGatheringLocal(set)) })
}

func (o *Orchestrator) DidUpdateLocal(set reconcile.LocalSet) {
	o.lane.Post(func() { o.handleIncoming(reconcile.DidUpdateLocal(set)) })
}

func (o *Orchestrator) DidReceiveLocalMonitorError(err error) {
	o.lane.Post(func() {
		o.HandleSyncError(reconcile.NewSyncError(reconcile.ErrInternal, "", err))
	})
}

// --- watch.CloudObserver ---

func (o *Orchestrator) DidFinishGatheringCloud(set reconcile.CloudSet) {
	o.lane.Post(func() { o.handleIncoming(reconcile.DidFinishGatheringCloud(set)) })
}

func (o *Orchestrator) DidUpdateCloud(set reconcile.CloudSet) {
	o.lane.Post(func() { o.handleIncoming(reconcile.DidUpdateCloud(set)) })
}

func (o *Orchestrator) DidReceiveCloudUnavailable(err error) {
	o.lane.Post(func() {
		o.HandleSyncError(reconcile.NewSyncError(reconcile.ErrCloudUnavailable, "", err))
	})
}

// handleIncoming runs entirely on the lane: it feeds event to the
// Reconciler, then dispatches every returned OutgoingEvent in order,
// finishing with the batch-commit reload-latch check of spec §4.6.
func (o *Orchestrator) handleIncoming(event reconcile.IncomingEvent) {
	if o.stopped.Load() {
		return
	}

	o.inFlight.Add(1)
	defer o.inFlight.Add(-1)

	out := o.reconciler.Resolve(event)
	if len(out) == 0 {
		return
	}

	for _, ev := range orderDownloadsByPriority(out) {
		if o.stopped.Load() {
			return
		}
		if ev.Kind == reconcile.KindStartDownloading {
			o.downloads.Dispatch(context.Background(), ev, o.coordinator.Dispatch, o.HandleSyncError)
			continue
		}
		reload, err := o.coordinator.Dispatch(context.Background(), ev)
		if err != nil {
			o.HandleSyncError(reconcile.NewSyncError(reconcile.ErrInternal, ev.Name(), err))
			continue
		}
		if reload {
			o.reloadLatch = true
		}
	}

	if o.reloadLatch {
		o.reloadLatch = false
		o.main.Post(o.reloader.LoadBookmarks)
	}
}

// orderDownloadsByPriority re-orders a contiguous run of StartDownloading
// events within one batch, smallest item first. Spec §4.3 leaves
// intra-sub-category ordering unspecified, so this is a legitimate
// scheduling choice: small notes materialize ahead of large attachments
// queued in the same batch.
func orderDownloadsByPriority(events []reconcile.OutgoingEvent) []reconcile.OutgoingEvent {
	downloadCount := 0
	for _, e := range events {
		if e.Kind == reconcile.KindStartDownloading {
			downloadCount++
		}
	}
	if downloadCount < 2 {
		return events
	}

	ordered := make([]reconcile.OutgoingEvent, 0, downloadCount)
	for _, e := range events {
		if e.Kind == reconcile.KindStartDownloading {
			ordered = append(ordered, e)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Cloud.Size < ordered[j].Cloud.Size
	})

	out := make([]reconcile.OutgoingEvent, 0, len(events))
	next := 0
	for _, e := range events {
		if e.Kind == reconcile.KindStartDownloading {
			out = append(out, ordered[next])
			next++
			continue
		}
		out = append(out, e)
	}
	return out
}

// HandleSyncError implements iocoord.ErrorSink: classify per spec §7 and
// either stop the session or log and continue.
func (o *Orchestrator) HandleSyncError(err *reconcile.SyncError) {
	if err == nil {
		return
	}
	if err.Code.Fatal() {
		slog.Error("sync", "op", "fatal_error", "session", o.sessionID, "code", err.Code, "item", err.Item, "error", err.Err)
		o.stopSynchronization()
		return
	}
	slog.Warn("sync", "op", "transient_error", "code", err.Code, "item", err.Item, "error", err.Err)
}

func (o *Orchestrator) stopSynchronization() {
	if !o.stopped.CompareAndSwap(false, true) {
		return
	}
	o.main.Post(func() {
		o.localWatcher.Stop()
		o.cloudWatcher.Stop()
	})
}

// Stopped reports whether a fatal error has ended this session.
func (o *Orchestrator) Stopped() bool {
	return o.stopped.Load()
}

var errStopped = errors.New("orchestrator: session stopped")

// Err returns errStopped once a fatal error has ended the session, nil
// otherwise. Exposed for callers (e.g. the daemon's health check) that
// want a plain error rather than polling Stopped().
func (o *Orchestrator) Err() error {
	if o.stopped.Load() {
		return errStopped
	}
	return nil
}
