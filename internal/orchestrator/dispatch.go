package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/notewell/notesync/internal/reconcile"
)

// maxConcurrentDownloads bounds how many StartDownloading requests can be
// in flight against the cloud layer at once. Spec §5: "downloads do not
// block the lane — they return immediately after requesting
// materialization," so the semaphore that enforces this bound is acquired
// inside the spawned goroutine, never on the caller's (lane) goroutine.
const maxConcurrentDownloads = 4

// downloadDispatcher fires StartDownloading requests in the background.
// Dispatch itself never blocks: it spawns a goroutine and returns, and
// that goroutine — not the lane — waits for a semaphore slot if the bound
// is already saturated.
type downloadDispatcher struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func newDownloadDispatcher() *downloadDispatcher {
	return &downloadDispatcher{sem: make(chan struct{}, maxConcurrentDownloads)}
}

// Dispatch launches the request and returns immediately; any error is
// routed to sink on its own goroutine rather than returned, since
// StartDownloading never carries the reload latch and a failed
// materialization request is always the transient, per-item
// ErrFileUnavailable case of spec §7.
func (d *downloadDispatcher) Dispatch(ctx context.Context, ev reconcile.OutgoingEvent, dispatch func(context.Context, reconcile.OutgoingEvent) (bool, error), sink func(*reconcile.SyncError)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sem <- struct{}{}
		defer func() { <-d.sem }()

		if _, err := dispatch(ctx, ev); err != nil {
			slog.Warn("orchestrator", "op", "start_downloading", "item", ev.Name(), "error", err)
			sink(reconcile.NewSyncError(reconcile.ErrFileUnavailable, ev.Name(), err))
		}
	}()
}

// Wait blocks until every dispatched download has returned. Used by Stop
// so a shutdown doesn't abandon in-flight requests mid-write.
func (d *downloadDispatcher) Wait() {
	d.wg.Wait()
}
