// Package watch implements the two external collaborators spec §6
// delegates to the Reconciler: a local directory watcher and a
// cloud-metadata watcher. Both report full snapshots, never deltas — the
// Reconciler never walks a directory itself.
package watch

import "github.com/notewell/notesync/internal/reconcile"

// LocalObserver receives the local watcher's three callback kinds.
type LocalObserver interface {
	DidFinishGatheringLocal(reconcile.LocalSet)
	DidUpdateLocal(reconcile.LocalSet)
	DidReceiveLocalMonitorError(error)
}

// CloudObserver receives the cloud watcher's callback kinds, plus a
// distinct fatal "account unavailable" signal.
type CloudObserver interface {
	DidFinishGatheringCloud(reconcile.CloudSet)
	DidUpdateCloud(reconcile.CloudSet)
	DidReceiveCloudUnavailable(error)
}

// LocalWatcher is the contract spec §6 names for the local directory
// watcher: gather once, then debounced full-snapshot updates.
type LocalWatcher interface {
	Start() error
	Stop()
}

// CloudWatcher is the contract spec §6 names for the cloud-metadata
// watcher: gather once, then batched full-snapshot updates.
type CloudWatcher interface {
	Start() error
	Stop()
	// IgnoreOnce suppresses the next observed write to path, used by the
	// download worker so materializing a file doesn't bounce back as a
	// spurious update.
	IgnoreOnce(path string)
}
