package reconcile

// Reconciler is a pure, single-threaded state object. Given its retained
// snapshots and one incoming event, Resolve produces an ordered list of
// outgoing events and updates its snapshots. It performs no I/O and is
// safe to use without internal locking as long as the caller serializes
// calls to Resolve — see the orchestrator's single work lane.
type Reconciler struct {
	localSnapshot LocalSet
	cloudSnapshot CloudSet

	localGathered bool
	cloudGathered bool

	// initialReconciled guards the quiescence rule so that the full
	// four-way reconciliation in reconcileInitial fires at most once:
	// the first event that completes the local+cloud gathered pair.
	initialReconciled bool

	// isInitialSync mirrors config.didFinishInitialSynchronization's
	// negation at construction time. Cleared by the reconciler itself at
	// the end of the first post-gathering reconciliation (see §4.3).
	isInitialSync bool
}

// NewReconciler constructs a Reconciler. isInitialSync should be true iff
// the orchestrator has no durable record of a prior successful full sync.
func NewReconciler(isInitialSync bool) *Reconciler {
	return &Reconciler{
		localSnapshot: make(LocalSet),
		cloudSnapshot: make(CloudSet),
		isInitialSync: isInitialSync,
	}
}

// Reset clears all retained state, including the gathered flags and the
// initial-sync flag. Used when the user toggles synchronization off.
func (r *Reconciler) Reset() {
	r.localSnapshot = make(LocalSet)
	r.cloudSnapshot = make(CloudSet)
	r.localGathered = false
	r.cloudGathered = false
	r.initialReconciled = false
	r.isInitialSync = false
}

// IsInitialSync reports whether the reconciler still believes this is the
// first-ever sync for the installation.
func (r *Reconciler) IsInitialSync() bool {
	return r.isInitialSync
}

// Resolve is the Reconciler's single public entry point: feed it one
// observation, get back the ordered outgoing events it implies.
func (r *Reconciler) Resolve(event IncomingEvent) []OutgoingEvent {
	switch event.Kind {
	case KindDidFinishGatheringLocal:
		r.localSnapshot = event.Local
		r.localGathered = true
		return r.maybeReconcileInitial()
	case KindDidFinishGatheringCloud:
		r.cloudSnapshot = event.Cloud
		r.cloudGathered = true
		return r.maybeReconcileInitial()
	case KindDidUpdateLocal:
		return r.diffLocal(event.Local)
	case KindDidUpdateCloud:
		return r.diffCloud(event.Cloud)
	default:
		return nil
	}
}

// maybeReconcileInitial implements the quiescence rule: both gathering
// events must land before anything is returned, and the full
// reconciliation runs exactly once.
func (r *Reconciler) maybeReconcileInitial() []OutgoingEvent {
	if r.initialReconciled || !r.localGathered || !r.cloudGathered {
		return nil
	}
	r.initialReconciled = true
	return r.reconcileInitial()
}

// reconcileInitial implements the four-way dispatch table in §4.3.
func (r *Reconciler) reconcileInitial() []OutgoingEvent {
	local := r.localSnapshot
	cloud := r.cloudSnapshot

	var out []OutgoingEvent

	switch {
	case len(local) == 0 && len(cloud) == 0:
		// nothing to do
	case len(local) == 0 && len(cloud) > 0:
		out = append(out, r.createLocalFromCloud(cloud)...)
	case len(local) > 0 && len(cloud) == 0:
		for _, l := range local {
			out = append(out, CreateCloud(l))
		}
	default:
		if r.isInitialSync {
			for name, l := range local {
				if _, ok := cloud[name]; ok {
					out = append(out, ResolveInitialSyncConflict(l))
				}
			}
		}
		out = append(out, r.diffCloud(cloud)...)
		out = append(out, r.diffLocal(local)...)
	}

	if r.isInitialSync {
		out = append(out, DidFinishInitialSync())
		r.isInitialSync = false
	}

	return out
}

// createLocalFromCloud handles the "local empty, cloud non-empty" row:
// every non-trashed cloud item either starts downloading or, if its bytes
// are already present, is created locally outright.
func (r *Reconciler) createLocalFromCloud(cloud CloudSet) []OutgoingEvent {
	var starts, creates []OutgoingEvent
	for _, c := range cloud {
		if c.IsInTrash {
			continue
		}
		if c.IsDownloaded {
			creates = append(creates, CreateLocal(c))
		} else {
			starts = append(starts, StartDownloading(c))
		}
	}
	return append(starts, creates...)
}

// cloudIndex groups a CloudSet by item name rather than by map key, since
// a trashed item and its still-live counterpart can share a name while
// occupying distinct map slots (the concrete watcher disambiguates trash
// entries in the key so the set can carry both generations at once — see
// watch.FSCloudWatcher.scan).
type cloudIndex struct {
	nonTrash map[string]CloudItem
	trashed  map[string][]CloudItem
}

func indexCloud(cloud CloudSet) cloudIndex {
	idx := cloudIndex{
		nonTrash: make(map[string]CloudItem),
		trashed:  make(map[string][]CloudItem),
	}
	for _, c := range cloud {
		if c.IsInTrash {
			idx.trashed[c.Name] = append(idx.trashed[c.Name], c)
		} else {
			idx.nonTrash[c.Name] = c
		}
	}
	return idx
}

func latestModifiedAt(items []CloudItem) int64 {
	var max int64
	for i, c := range items {
		if i == 0 || c.ModifiedAt > max {
			max = c.ModifiedAt
		}
	}
	return max
}

// diffCloud implements the cloud-side diff of §4.5, for both the
// standalone DidUpdateCloud path and the incremental pass inside
// reconcileInitial.
func (r *Reconciler) diffCloud(newCloud CloudSet) []OutgoingEvent {
	var out []OutgoingEvent

	// Step 1: error extraction. Does not halt the diff.
	for _, c := range newCloud {
		if c.DownloadingError != nil {
			out = append(out, DidReceiveError(c.DownloadingError))
		}
		if c.UploadingError != nil {
			out = append(out, DidReceiveError(c.UploadingError))
		}
	}

	// Step 2: unresolved-conflict extraction. Short-circuits without
	// touching cloudSnapshot if anything is found.
	var conflicts []OutgoingEvent
	for _, c := range newCloud {
		if !c.IsInTrash && c.HasUnresolvedConflicts {
			conflicts = append(conflicts, ResolveVersionsConflict(c))
		}
	}
	if len(conflicts) > 0 {
		return append(out, conflicts...)
	}

	// Step 3: compute the three disjoint subsets of the cloud namespace.
	idx := indexCloud(newCloud)
	local := r.localSnapshot

	var toRemoveFromLocal, toCreateInLocal, toUpdateInLocal []CloudItem

	for name, trashGenerations := range idx.trashed {
		for _, c := range trashGenerations {
			trashWins := true
			if nt, ok := idx.nonTrash[name]; ok && nt.ModifiedAt > c.ModifiedAt {
				trashWins = false
			}
			if !trashWins {
				continue
			}
			if l, ok := local[name]; ok && l.ModifiedAt <= c.ModifiedAt {
				toRemoveFromLocal = append(toRemoveFromLocal, c)
			}
		}
	}

	for name, c := range idx.nonTrash {
		l, existsLocally := local[name]
		switch {
		case !existsLocally:
			toCreateInLocal = append(toCreateInLocal, c)
		case r.isInitialSync:
			// Relaxed rule: the initial-conflict pass has already
			// scheduled the local copy for preservation under a new
			// name, so matching-by-name alone is enough to update.
			toUpdateInLocal = append(toUpdateInLocal, c)
		case l.ModifiedAt < c.ModifiedAt:
			toUpdateInLocal = append(toUpdateInLocal, c)
		}
	}

	// Step 4: download gating.
	var starts, removes, creates, updates []OutgoingEvent
	for _, c := range toCreateInLocal {
		if c.IsDownloaded {
			creates = append(creates, CreateLocal(c))
		} else {
			starts = append(starts, StartDownloading(c))
		}
	}
	for _, c := range toUpdateInLocal {
		if c.IsDownloaded {
			updates = append(updates, UpdateLocal(c))
		} else {
			starts = append(starts, StartDownloading(c))
		}
	}
	for _, c := range toRemoveFromLocal {
		if c.IsDownloaded {
			removes = append(removes, RemoveLocal(c))
		}
		// A trashed item whose tombstone metadata isn't materialized yet
		// produces no event this cycle; the next snapshot re-evaluates it.
	}

	out = append(out, starts...)
	out = append(out, removes...)
	out = append(out, creates...)
	out = append(out, updates...)

	r.cloudSnapshot = newCloud
	return out
}

// diffLocal implements the local-side diff of §4.4.
func (r *Reconciler) diffLocal(newLocal LocalSet) []OutgoingEvent {
	prevLocal := r.localSnapshot
	idx := indexCloud(r.cloudSnapshot)

	var toRemoveFromCloud, toCreateInCloud, toUpdateInCloud []LocalItem

	for name, l := range prevLocal {
		if _, stillExists := newLocal[name]; !stillExists {
			toRemoveFromCloud = append(toRemoveFromCloud, l)
		}
	}

	for name, l := range newLocal {
		if _, hasNonTrash := idx.nonTrash[name]; hasNonTrash {
			continue
		}
		trashGenerations, hasTrash := idx.trashed[name]
		if !hasTrash {
			toCreateInCloud = append(toCreateInCloud, l)
			continue
		}
		if latestModifiedAt(trashGenerations) < l.ModifiedAt {
			toCreateInCloud = append(toCreateInCloud, l)
		}
	}

	if !r.isInitialSync {
		for name, l := range newLocal {
			if nt, ok := idx.nonTrash[name]; ok && nt.ModifiedAt < l.ModifiedAt {
				toUpdateInCloud = append(toUpdateInCloud, l)
			}
		}
	}

	var out []OutgoingEvent
	for _, l := range toRemoveFromCloud {
		out = append(out, RemoveCloud(l))
	}
	for _, l := range toCreateInCloud {
		out = append(out, CreateCloud(l))
	}
	for _, l := range toUpdateInCloud {
		out = append(out, UpdateCloud(l))
	}

	r.localSnapshot = newLocal
	return out
}
