package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(events []OutgoingEvent) []OutgoingKind {
	out := make([]OutgoingKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func countKind(events []OutgoingEvent, kind OutgoingKind) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestBothEmpty_FirstSync_OnlyFinishesInitialSync(t *testing.T) {
	r := NewReconciler(true)

	out := r.Resolve(DidFinishGatheringLocal(LocalSet{}))
	assert.Empty(t, out)

	out = r.Resolve(DidFinishGatheringCloud(CloudSet{}))
	require.Len(t, out, 1)
	assert.Equal(t, KindDidFinishInitialSync, out[0].Kind)
	assert.False(t, r.IsInitialSync())
}

func TestLocalOnly_PopulatesCloud(t *testing.T) {
	r := NewReconciler(true)

	local := LocalSet{
		"a.md": {Name: "a.md", ModifiedAt: 100},
		"b.md": {Name: "b.md", ModifiedAt: 200},
	}

	out := r.Resolve(DidFinishGatheringLocal(local))
	assert.Empty(t, out)

	out = r.Resolve(DidFinishGatheringCloud(CloudSet{}))
	require.Len(t, out, 3)
	assert.Equal(t, 2, countKind(out, KindCreateCloud))
	assert.Equal(t, 1, countKind(out, KindDidFinishInitialSync))
}

func TestCloudOnly_AllTrashed_NoLocalCreation(t *testing.T) {
	r := NewReconciler(true)

	cloud := CloudSet{
		".Trash/a.md": {Name: "a.md", ModifiedAt: 100, IsInTrash: true, IsDownloaded: true},
	}

	out := r.Resolve(DidFinishGatheringCloud(cloud))
	assert.Empty(t, out)

	out = r.Resolve(DidFinishGatheringLocal(LocalSet{}))
	require.Len(t, out, 1)
	assert.Equal(t, KindDidFinishInitialSync, out[0].Kind)
}

func TestMixed_NewerSideWins(t *testing.T) {
	r := NewReconciler(false)

	local := LocalSet{
		"a.md": {Name: "a.md", ModifiedAt: 200}, // newer locally
		"b.md": {Name: "b.md", ModifiedAt: 100}, // newer in cloud
	}
	cloud := CloudSet{
		"a.md": {Name: "a.md", ModifiedAt: 100, IsDownloaded: true},
		"b.md": {Name: "b.md", ModifiedAt: 200, IsDownloaded: true},
	}

	r.Resolve(DidFinishGatheringLocal(local))
	out := r.Resolve(DidFinishGatheringCloud(cloud))

	require.Len(t, out, 2)
	ks := kinds(out)
	assert.Contains(t, ks, KindUpdateCloud)
	assert.Contains(t, ks, KindUpdateLocal)
}

func TestTwoPhaseDownload_NotYetDownloaded(t *testing.T) {
	r := NewReconciler(false)
	r.Resolve(DidFinishGatheringLocal(LocalSet{}))
	out := r.Resolve(DidFinishGatheringCloud(CloudSet{
		"a.md": {Name: "a.md", ModifiedAt: 100, IsDownloaded: false},
	}))

	require.Len(t, out, 1)
	assert.Equal(t, KindStartDownloading, out[0].Kind)

	out = r.Resolve(DidUpdateCloud(CloudSet{
		"a.md": {Name: "a.md", ModifiedAt: 100, IsDownloaded: true},
	}))
	require.Len(t, out, 1)
	assert.Equal(t, KindCreateLocal, out[0].Kind)
}

func TestUnresolvedConflict_ShortCircuits(t *testing.T) {
	r := NewReconciler(false)
	r.Resolve(DidFinishGatheringLocal(LocalSet{
		"a.md": {Name: "a.md", ModifiedAt: 100},
	}))
	cloud := CloudSet{
		"a.md": {Name: "a.md", ModifiedAt: 50, IsDownloaded: true, HasUnresolvedConflicts: true},
	}
	out := r.Resolve(DidFinishGatheringCloud(cloud))

	require.Len(t, out, 1)
	assert.Equal(t, KindResolveVersionsConflict, out[0].Kind)

	// the cloud snapshot must not have been committed
	assert.Empty(t, r.cloudSnapshot)
}

func TestDidReceiveError_DoesNotHaltDiff(t *testing.T) {
	r := NewReconciler(false)
	r.Resolve(DidFinishGatheringLocal(LocalSet{}))
	r.Resolve(DidFinishGatheringCloud(CloudSet{}))

	out := r.Resolve(DidUpdateCloud(CloudSet{
		"a.md": {
			Name:             "a.md",
			ModifiedAt:       100,
			IsDownloaded:     false,
			DownloadingError: NewSyncError(ErrFileUnavailable, "a.md", nil),
		},
	}))

	ks := kinds(out)
	assert.Contains(t, ks, KindDidReceiveError)
	assert.Contains(t, ks, KindStartDownloading)
}

func TestTrashDominance_EqualTimestampTrashWins(t *testing.T) {
	r := NewReconciler(false)
	r.Resolve(DidFinishGatheringLocal(LocalSet{
		"a.md": {Name: "a.md", ModifiedAt: 100},
	}))
	r.Resolve(DidFinishGatheringCloud(CloudSet{}))

	out := r.Resolve(DidUpdateCloud(CloudSet{
		".Trash/a.md": {Name: "a.md", ModifiedAt: 100, IsInTrash: true, IsDownloaded: true},
	}))

	require.Len(t, out, 1)
	assert.Equal(t, KindRemoveLocal, out[0].Kind)
}

func TestInitialSyncConflict_PreservesLocalCopy(t *testing.T) {
	r := NewReconciler(true)
	r.Resolve(DidFinishGatheringLocal(LocalSet{
		"a.md": {Name: "a.md", ModifiedAt: 100},
	}))
	out := r.Resolve(DidFinishGatheringCloud(CloudSet{
		"a.md": {Name: "a.md", ModifiedAt: 50, IsDownloaded: true},
	}))

	ks := kinds(out)
	assert.Contains(t, ks, KindResolveInitialSyncConflict)
	assert.Contains(t, ks, KindUpdateLocal)
	assert.Contains(t, ks, KindDidFinishInitialSync)
}

func TestReset_ClearsAllState(t *testing.T) {
	r := NewReconciler(true)
	r.Resolve(DidFinishGatheringLocal(LocalSet{"a.md": {Name: "a.md"}}))
	r.Reset()

	assert.False(t, r.localGathered)
	assert.False(t, r.cloudGathered)
	assert.False(t, r.IsInitialSync())
	assert.Empty(t, r.localSnapshot)
	assert.Empty(t, r.cloudSnapshot)
}
