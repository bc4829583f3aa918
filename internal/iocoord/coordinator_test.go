package iocoord

import (
	"context"
	"testing"
	"time"

	"github.com/notewell/notesync/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocal struct {
	files   map[string][]byte
	renamed map[string]string
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{files: map[string][]byte{}, renamed: map[string]string{}}
}

func (f *fakeLocal) WriteAtomic(name string, body []byte, _ time.Time) error {
	f.files[name] = body
	return nil
}
func (f *fakeLocal) ReadBytes(name string) ([]byte, error) { return f.files[name], nil }
func (f *fakeLocal) Remove(name string) error              { delete(f.files, name); return nil }
func (f *fakeLocal) Rename(oldName, newName string) error {
	f.files[newName] = f.files[oldName]
	delete(f.files, oldName)
	f.renamed[oldName] = newName
	return nil
}
func (f *fakeLocal) Exists(name string) bool { _, ok := f.files[name]; return ok }

type fakeCloud struct {
	bytes           map[string][]byte
	trashed         []string
	started         []string
	versions        map[string][]reconcile.CloudItem
	clearedVersions []string
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{bytes: map[string][]byte{}, versions: map[string][]reconcile.CloudItem{}}
}

func (f *fakeCloud) ReadBytes(_ context.Context, item reconcile.CloudItem) ([]byte, error) {
	return f.bytes[item.Name], nil
}
func (f *fakeCloud) WriteBytes(_ context.Context, name string, body []byte, _ time.Time) error {
	f.bytes[name] = body
	return nil
}
func (f *fakeCloud) MoveToTrash(_ context.Context, name string) error {
	f.trashed = append(f.trashed, name)
	return nil
}
func (f *fakeCloud) StartDownloading(_ context.Context, item reconcile.CloudItem) error {
	f.started = append(f.started, item.Name)
	return nil
}
func (f *fakeCloud) ConflictVersions(_ context.Context, item reconcile.CloudItem) ([]reconcile.CloudItem, error) {
	return f.versions[item.Name], nil
}
func (f *fakeCloud) ReadVersionBytes(_ context.Context, version reconcile.CloudItem) ([]byte, error) {
	return f.bytes[version.URL], nil
}
func (f *fakeCloud) ClearAlternateVersions(_ context.Context, name string) error {
	f.clearedVersions = append(f.clearedVersions, name)
	delete(f.versions, name)
	return nil
}

type fakeConfig struct{ finished bool }

func (f *fakeConfig) SetInitialSyncFinished(done bool) error { f.finished = done; return nil }

type fakeErrorSink struct{ received []*reconcile.SyncError }

func (f *fakeErrorSink) HandleSyncError(err *reconcile.SyncError) {
	f.received = append(f.received, err)
}

func TestDispatch_CreateLocal_WritesFromCloud(t *testing.T) {
	local, cloud := newFakeLocal(), newFakeCloud()
	cloud.bytes["a.md"] = []byte("hello")
	c := NewCoordinator(local, cloud, &fakeConfig{}, &fakeErrorSink{})

	reload, err := c.Dispatch(context.Background(), reconcile.CreateLocal(reconcile.CloudItem{Name: "a.md"}))
	require.NoError(t, err)
	assert.True(t, reload)
	assert.Equal(t, []byte("hello"), local.files["a.md"])
}

func TestDispatch_CreateCloud_WritesFromLocal(t *testing.T) {
	local, cloud := newFakeLocal(), newFakeCloud()
	local.files["a.md"] = []byte("world")
	c := NewCoordinator(local, cloud, &fakeConfig{}, &fakeErrorSink{})

	reload, err := c.Dispatch(context.Background(), reconcile.CreateCloud(reconcile.LocalItem{Name: "a.md"}))
	require.NoError(t, err)
	assert.False(t, reload)
	assert.Equal(t, []byte("world"), cloud.bytes["a.md"])
}

func TestDispatch_RemoveCloud_MovesToTrash(t *testing.T) {
	local, cloud := newFakeLocal(), newFakeCloud()
	c := NewCoordinator(local, cloud, &fakeConfig{}, &fakeErrorSink{})

	_, err := c.Dispatch(context.Background(), reconcile.RemoveCloud(reconcile.LocalItem{Name: "a.md"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md"}, cloud.trashed)
}

func TestDispatch_StartDownloading_NoReloadLatch(t *testing.T) {
	local, cloud := newFakeLocal(), newFakeCloud()
	c := NewCoordinator(local, cloud, &fakeConfig{}, &fakeErrorSink{})

	reload, err := c.Dispatch(context.Background(), reconcile.StartDownloading(reconcile.CloudItem{Name: "a.md"}))
	require.NoError(t, err)
	assert.False(t, reload)
	assert.Equal(t, []string{"a.md"}, cloud.started)
}

func TestDispatch_DidFinishInitialSync_PersistsConfig(t *testing.T) {
	local, cloud := newFakeLocal(), newFakeCloud()
	cfg := &fakeConfig{}
	c := NewCoordinator(local, cloud, cfg, &fakeErrorSink{})

	_, err := c.Dispatch(context.Background(), reconcile.DidFinishInitialSync())
	require.NoError(t, err)
	assert.True(t, cfg.finished)
}

func TestDispatch_DidReceiveError_RoutesToSink(t *testing.T) {
	local, cloud := newFakeLocal(), newFakeCloud()
	sink := &fakeErrorSink{}
	c := NewCoordinator(local, cloud, &fakeConfig{}, sink)

	syncErr := reconcile.NewSyncError(reconcile.ErrQuotaExceeded, "a.md", nil)
	_, err := c.Dispatch(context.Background(), reconcile.DidReceiveError(syncErr))
	require.NoError(t, err)
	require.Len(t, sink.received, 1)
	assert.Equal(t, reconcile.ErrQuotaExceeded, sink.received[0].Code)
}

func TestResolveInitialSyncConflict_RenamesLocalFile(t *testing.T) {
	local, cloud := newFakeLocal(), newFakeCloud()
	local.files["notes.md"] = []byte("mine")
	c := NewCoordinator(local, cloud, &fakeConfig{}, &fakeErrorSink{})

	_, err := c.Dispatch(context.Background(), reconcile.ResolveInitialSyncConflict(reconcile.LocalItem{Name: "notes.md"}))
	require.NoError(t, err)
	assert.False(t, local.Exists("notes.md"))
	assert.True(t, local.Exists("notes_1.md"))
}

func TestResolveVersionsConflict_PreservesAndReplaces(t *testing.T) {
	local, cloud := newFakeLocal(), newFakeCloud()
	local.files["notes.md"] = []byte("current")
	cloud.bytes["url-old"] = []byte("older")
	cloud.bytes["url-new"] = []byte("newer")
	cloud.versions["notes.md"] = []reconcile.CloudItem{
		{Name: "notes.md", URL: "url-old", ModifiedAt: 100},
		{Name: "notes.md", URL: "url-new", ModifiedAt: 200},
	}
	c := NewCoordinator(local, cloud, &fakeConfig{}, &fakeErrorSink{})

	_, err := c.Dispatch(context.Background(), reconcile.ResolveVersionsConflict(reconcile.CloudItem{Name: "notes.md"}))
	require.NoError(t, err)
	assert.Equal(t, []byte("current"), local.files["notes_1.md"])
	assert.Equal(t, []byte("newer"), local.files["notes.md"])

	// The winner ("url-new") isn't the base version, so its bytes must be
	// folded back into the cloud's canonical path — otherwise the base
	// stays stale and the sibling keeps reappearing as an unresolved
	// conflict on every subsequent scan.
	assert.Equal(t, []byte("newer"), cloud.bytes["notes.md"])
	assert.Equal(t, []string{"notes.md"}, cloud.clearedVersions)
}

func TestResolveVersionsConflict_WinnerIsBase_NoRedundantFold(t *testing.T) {
	local, cloud := newFakeLocal(), newFakeCloud()
	local.files["notes.md"] = []byte("current")
	cloud.bytes["notes.md"] = []byte("newer")
	cloud.bytes["url-old"] = []byte("older")
	cloud.versions["notes.md"] = []reconcile.CloudItem{
		{Name: "notes.md", URL: "notes.md", ModifiedAt: 200},
		{Name: "notes.md", URL: "url-old", ModifiedAt: 100},
	}
	c := NewCoordinator(local, cloud, &fakeConfig{}, &fakeErrorSink{})

	_, err := c.Dispatch(context.Background(), reconcile.ResolveVersionsConflict(reconcile.CloudItem{Name: "notes.md", URL: "notes.md"}))
	require.NoError(t, err)
	assert.Equal(t, []byte("newer"), local.files["notes.md"])
	assert.Equal(t, []byte("newer"), cloud.bytes["notes.md"])
	assert.Equal(t, []string{"notes.md"}, cloud.clearedVersions)
}
