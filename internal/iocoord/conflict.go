package iocoord

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/notewell/notesync/internal/reconcile"
)

// resolveVersionsConflict implements the ResolveVersionsConflict row:
// enumerate the competing cloud versions, pick the most recent, preserve
// the current local copy under a generated name, replace the current
// file with the winning version, then clear the remaining alternates.
func (c *Coordinator) resolveVersionsConflict(ctx context.Context, item reconcile.CloudItem) error {
	versions, err := c.cloud.ConflictVersions(ctx, item)
	if err != nil {
		return fmt.Errorf("enumerate conflict versions for %s: %w", item.Name, err)
	}
	if len(versions) == 0 {
		return nil
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].ModifiedAt > versions[j].ModifiedAt
	})
	winner := versions[0]

	if c.local.Exists(item.Name) {
		preserved := GeneratePreservedName(item.Name, c.local.Exists)
		if err := c.local.Rename(item.Name, preserved); err != nil {
			return fmt.Errorf("preserve current copy of %s: %w", item.Name, err)
		}
		slog.Warn("sync", "op", "resolve_conflict", "name", item.Name, "preserved_as", preserved)
	}

	body, err := c.cloud.ReadVersionBytes(ctx, winner)
	if err != nil {
		return fmt.Errorf("read winning version of %s: %w", item.Name, err)
	}
	if err := c.local.WriteAtomic(item.Name, body, modTime(winner.ModifiedAt)); err != nil {
		return fmt.Errorf("write winning version of %s: %w", item.Name, err)
	}

	// The winner may be a conflict-sibling rather than the base version
	// itself — fold its bytes into the canonical cloud path before
	// clearing siblings, or the base would go stale and the sibling
	// would keep reappearing as an unresolved conflict on every scan.
	if winner.URL != item.URL {
		if err := c.cloud.WriteBytes(ctx, item.Name, body, modTime(winner.ModifiedAt)); err != nil {
			return fmt.Errorf("fold winning version of %s into base: %w", item.Name, err)
		}
	}

	if err := c.cloud.ClearAlternateVersions(ctx, item.Name); err != nil {
		return fmt.Errorf("clear alternate versions of %s: %w", item.Name, err)
	}

	return nil
}

// resolveInitialSyncConflict implements the ResolveInitialSyncConflict
// row: rename the local file so it re-appears as a fresh CreateCloud in
// the next diff, leaving the cloud version free to land untouched.
func (c *Coordinator) resolveInitialSyncConflict(item reconcile.LocalItem) error {
	if !c.local.Exists(item.Name) {
		return nil
	}
	preserved := GeneratePreservedName(item.Name, c.local.Exists)
	if err := c.local.Rename(item.Name, preserved); err != nil {
		return fmt.Errorf("preserve local copy of %s for initial sync: %w", item.Name, err)
	}
	slog.Info("sync", "op", "resolve_initial_sync_conflict", "name", item.Name, "preserved_as", preserved)
	return nil
}
