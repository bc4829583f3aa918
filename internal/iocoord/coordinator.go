package iocoord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/notewell/notesync/internal/reconcile"
)

// Coordinator carries out one OutgoingEvent per Dispatch call. It has no
// concurrency of its own. Every kind except StartDownloading is dispatched
// serially on the orchestrator's lane; StartDownloading is dispatched from
// the orchestrator's download goroutines, several at once, and touches
// only CloudStore.StartDownloading.
type Coordinator struct {
	local  LocalWriter
	cloud  CloudStore
	config ConfigStore
	errors ErrorSink
}

func NewCoordinator(local LocalWriter, cloud CloudStore, config ConfigStore, errors ErrorSink) *Coordinator {
	return &Coordinator{local: local, cloud: cloud, config: config, errors: errors}
}

// Dispatch performs the side effect event implies and reports whether the
// downstream "reload bookmarks" latch should be set, per the table in
// spec §4.6.
func (c *Coordinator) Dispatch(ctx context.Context, event reconcile.OutgoingEvent) (reload bool, err error) {
	switch event.Kind {
	case reconcile.KindCreateLocal, reconcile.KindUpdateLocal:
		return true, c.writeLocal(ctx, event.Cloud)
	case reconcile.KindRemoveLocal:
		return true, c.removeLocal(event.Cloud)
	case reconcile.KindStartDownloading:
		return false, c.cloud.StartDownloading(ctx, event.Cloud)
	case reconcile.KindCreateCloud, reconcile.KindUpdateCloud:
		return false, c.writeCloud(ctx, event.Local)
	case reconcile.KindRemoveCloud:
		return false, c.cloud.MoveToTrash(ctx, event.Local.Name)
	case reconcile.KindResolveVersionsConflict:
		return true, c.resolveVersionsConflict(ctx, event.Cloud)
	case reconcile.KindResolveInitialSyncConflict:
		return true, c.resolveInitialSyncConflict(event.Local)
	case reconcile.KindDidFinishInitialSync:
		return false, c.config.SetInitialSyncFinished(true)
	case reconcile.KindDidReceiveError:
		c.errors.HandleSyncError(event.Err)
		return false, nil
	default:
		return false, fmt.Errorf("iocoord: unhandled outgoing event kind %q", event.Kind)
	}
}

func (c *Coordinator) writeLocal(ctx context.Context, item reconcile.CloudItem) error {
	body, err := c.cloud.ReadBytes(ctx, item)
	if err != nil {
		return fmt.Errorf("read %s from cloud: %w", item.Name, err)
	}
	if err := c.local.WriteAtomic(item.Name, body, modTime(item.ModifiedAt)); err != nil {
		return fmt.Errorf("write %s locally: %w", item.Name, err)
	}
	slog.Info("sync", "op", "write_local", "name", item.Name, "size", humanize.Bytes(uint64(len(body))))
	return nil
}

func (c *Coordinator) removeLocal(item reconcile.CloudItem) error {
	if !c.local.Exists(item.Name) {
		return nil
	}
	if err := c.local.Remove(item.Name); err != nil {
		return fmt.Errorf("remove %s locally: %w", item.Name, err)
	}
	slog.Info("sync", "op", "remove_local", "name", item.Name)
	return nil
}

func (c *Coordinator) writeCloud(ctx context.Context, item reconcile.LocalItem) error {
	body, err := c.local.ReadBytes(item.Name)
	if err != nil {
		return fmt.Errorf("read %s locally: %w", item.Name, err)
	}
	if err := c.cloud.WriteBytes(ctx, item.Name, body, modTime(item.ModifiedAt)); err != nil {
		return fmt.Errorf("write %s to cloud: %w", item.Name, err)
	}
	slog.Info("sync", "op", "write_cloud", "name", item.Name, "size", humanize.Bytes(uint64(len(body))))
	return nil
}

func modTime(unixSeconds int64) time.Time {
	return time.Unix(unixSeconds, 0)
}
