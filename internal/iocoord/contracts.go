// Package iocoord implements the per-task workers that carry out the
// OutgoingEvents the reconciler produces: the file-coordinated reads,
// writes, trashes, and conflict resolutions described in spec §4.6-4.7.
// Nothing in this package touches reconcile.Reconciler state directly —
// it is purely a collection of side effects keyed off one OutgoingEvent
// at a time, run on the orchestrator's single serialized lane.
package iocoord

import (
	"context"
	"time"

	"github.com/notewell/notesync/internal/reconcile"
)

// LocalWriter performs the local-filesystem half of the dispatch table.
// The concrete implementation in localfs.go operates under the same
// directory the local watcher observes, so every write it performs is
// visible to that watcher on its next debounced burst.
type LocalWriter interface {
	// WriteAtomic writes body to name under the watched root using a
	// temp-file-then-rename sequence, then stamps the result's mtime.
	WriteAtomic(name string, body []byte, modTime time.Time) error
	ReadBytes(name string) ([]byte, error)
	Remove(name string) error
	Rename(oldName, newName string) error
	Exists(name string) bool
}

// CloudStore performs the cloud-container half of the dispatch table.
// It is satisfied by the concrete cloud watcher adapter in
// internal/watch, which treats a plain directory as a stand-in for the
// platform's ubiquitous container.
type CloudStore interface {
	ReadBytes(ctx context.Context, item reconcile.CloudItem) ([]byte, error)
	WriteBytes(ctx context.Context, name string, body []byte, modTime time.Time) error

	// MoveToTrash relocates the live cloud entry for name into the trash
	// tier, first removing any stale trash entry of the same name so
	// trash names stay unique.
	MoveToTrash(ctx context.Context, name string) error

	// StartDownloading asks the cloud layer to begin materializing item's
	// bytes. It must not block on completion; the caller observes
	// completion via the next cloud snapshot.
	StartDownloading(ctx context.Context, item reconcile.CloudItem) error

	// ConflictVersions enumerates the alternate versions competing with
	// item, most-recent last is not guaranteed — callers must sort.
	ConflictVersions(ctx context.Context, item reconcile.CloudItem) ([]reconcile.CloudItem, error)
	ReadVersionBytes(ctx context.Context, version reconcile.CloudItem) ([]byte, error)

	// ClearAlternateVersions removes every conflict-sibling file of name.
	// Callers must have already folded the winning version's bytes into
	// name's own base path (via WriteBytes) before calling this, since
	// every sibling — including a former winner — is deleted.
	ClearAlternateVersions(ctx context.Context, name string) error
}

// ConfigStore persists the single durable flag the reconciler needs
// across restarts.
type ConfigStore interface {
	SetInitialSyncFinished(done bool) error
}

// ErrorSink is where classified DidReceiveError events land; it decides
// whether a fatal code should stop the session.
type ErrorSink interface {
	HandleSyncError(err *reconcile.SyncError)
}
