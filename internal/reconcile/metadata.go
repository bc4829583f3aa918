// Package reconcile implements the synchronization state manager: a pure,
// single-threaded reconciler that compares a local document set against a
// cloud document set and emits the outgoing events needed to bring them
// into agreement.
package reconcile

// MetadataItem is the set of accessors shared by LocalItem and CloudItem.
// There is no subtype relationship between the two — they are independent
// record types that happen to expose the same read-only view.
type MetadataItem interface {
	ItemName() string
	ItemURL() string
	ItemSize() (int64, bool)
	ItemContentType() string
	ItemCreatedAt() int64
	ItemModifiedAt() int64
}

// LocalItem describes a single file observed on the local side.
//
// CreatedAt and ModifiedAt are seconds-since-epoch, truncated to whole
// seconds. The truncation is load-bearing: cross-side equality comparisons
// throughout the reconciler rely on this resolution, so callers must not
// construct a LocalItem with sub-second precision smuggled into these
// fields.
type LocalItem struct {
	Name        string
	URL         string
	Size        int64
	HasSize     bool
	ContentType string
	CreatedAt   int64
	ModifiedAt  int64
}

func (i LocalItem) ItemName() string        { return i.Name }
func (i LocalItem) ItemURL() string         { return i.URL }
func (i LocalItem) ItemSize() (int64, bool) { return i.Size, i.HasSize }
func (i LocalItem) ItemContentType() string { return i.ContentType }
func (i LocalItem) ItemCreatedAt() int64    { return i.CreatedAt }
func (i LocalItem) ItemModifiedAt() int64   { return i.ModifiedAt }

// CloudItem is the superset of LocalItem carried by the cloud side.
type CloudItem struct {
	Name        string
	URL         string
	Size        int64
	HasSize     bool
	ContentType string
	CreatedAt   int64
	ModifiedAt  int64

	// IsDownloaded is true iff the full byte content is materialized
	// locally in the ubiquitous container.
	IsDownloaded bool
	// IsInTrash is true iff the item's path lies under the cloud trash
	// directory.
	IsInTrash bool
	// HasUnresolvedConflicts is true iff the cloud layer is advertising
	// more than one concurrent version of this item.
	HasUnresolvedConflicts bool

	// DownloadingError and UploadingError are pre-classified by the cloud
	// watcher that produced this snapshot (see internal/watch) — the
	// reconciler only relays them, it does not itself re-derive the
	// taxonomy in errors.go from a raw cause.
	DownloadingError *SyncError
	UploadingError   *SyncError
}

func (i CloudItem) ItemName() string        { return i.Name }
func (i CloudItem) ItemURL() string         { return i.URL }
func (i CloudItem) ItemSize() (int64, bool) { return i.Size, i.HasSize }
func (i CloudItem) ItemContentType() string { return i.ContentType }
func (i CloudItem) ItemCreatedAt() int64    { return i.CreatedAt }
func (i CloudItem) ItemModifiedAt() int64   { return i.ModifiedAt }

// LocalSet is a snapshot of the local side, keyed by item name.
type LocalSet map[string]LocalItem

// CloudSet is a snapshot of the cloud side, keyed by item name.
type CloudSet map[string]CloudItem

// Clone returns a shallow copy of the set, safe to retain independently of
// the original map.
func (s LocalSet) Clone() LocalSet {
	out := make(LocalSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of the set, safe to retain independently of
// the original map.
func (s CloudSet) Clone() CloudSet {
	out := make(CloudSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
