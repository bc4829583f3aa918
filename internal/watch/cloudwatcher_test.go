package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/notewell/notesync/internal/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCloudDir(t *testing.T) string {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, trashDirName), 0o755))
	return dir
}

func TestFSCloudWatcher_Scan_NotDownloadedMarker(t *testing.T) {
	dir := setupCloudDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"+notDownloadedExt), nil, 0o644))

	w := NewFSCloudWatcher(dir, nil)
	w.ignore.Load()

	set, err := w.scan()
	require.NoError(t, err)
	require.Contains(t, set, "a.md")
	assert.False(t, set["a.md"].IsDownloaded)
}

func TestFSCloudWatcher_Scan_TrashedEntryKeyedSeparately(t *testing.T) {
	dir := setupCloudDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, trashDirName, "a.md"), []byte("gone"), 0o644))

	w := NewFSCloudWatcher(dir, nil)
	w.ignore.Load()

	set, err := w.scan()
	require.NoError(t, err)
	item, ok := set[trashDirName+"/a.md"]
	require.True(t, ok)
	assert.True(t, item.IsInTrash)
	assert.Equal(t, "a.md", item.Name)
}

func TestFSCloudWatcher_Scan_ConflictSiblingsMarkUnresolved(t *testing.T) {
	dir := setupCloudDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("mine"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"+conflictInfix+"1.md"), []byte("theirs"), 0o644))

	w := NewFSCloudWatcher(dir, nil)
	w.ignore.Load()

	set, err := w.scan()
	require.NoError(t, err)
	require.Contains(t, set, "a.md")
	assert.True(t, set["a.md"].HasUnresolvedConflicts)
}

func TestFSCloudWatcher_ResolveConflict_ConvergesToNoUnresolvedConflicts(t *testing.T) {
	dir := setupCloudDir(t)
	basePath := filepath.Join(dir, "a.md")
	siblingPath := filepath.Join(dir, "a"+conflictInfix+"1.md")
	require.NoError(t, os.WriteFile(basePath, []byte("mine"), 0o644))
	require.NoError(t, os.WriteFile(siblingPath, []byte("theirs"), 0o644))

	older := time.Now().Add(-time.Hour).Truncate(time.Second)
	newer := time.Now().Truncate(time.Second)
	require.NoError(t, os.Chtimes(basePath, older, older))
	require.NoError(t, os.Chtimes(siblingPath, newer, newer))

	w := NewFSCloudWatcher(dir, nil)
	w.ignore.Load()
	ctx := context.Background()

	item, err := w.buildItem("a.md", basePath, false)
	require.NoError(t, err)
	require.True(t, item.HasUnresolvedConflicts)

	// The sibling, not the base, is the winner here — the scenario the
	// review flagged: ConflictVersions sorts base and siblings together
	// purely by ModifiedAt.
	versions, err := w.ConflictVersions(ctx, item)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	winner := versions[0]
	assert.Equal(t, siblingPath, winner.URL)

	body, err := w.ReadVersionBytes(ctx, winner)
	require.NoError(t, err)
	require.NoError(t, w.WriteBytes(ctx, item.Name, body, newer))
	require.NoError(t, w.ClearAlternateVersions(ctx, item.Name))

	set, err := w.scan()
	require.NoError(t, err)
	require.Contains(t, set, "a.md")
	assert.False(t, set["a.md"].HasUnresolvedConflicts, "conflict sibling must not resurrect on the next scan")
	assert.NoFileExists(t, siblingPath)

	folded, err := os.ReadFile(basePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("theirs"), folded)
}

func TestFSCloudWatcher_StartDownloading_ClearsMarker(t *testing.T) {
	dir := setupCloudDir(t)
	path := filepath.Join(dir, "a.md")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(path+notDownloadedExt, nil, 0o644))

	w := NewFSCloudWatcher(dir, nil)
	require.NoError(t, w.StartDownloading(context.Background(), reconcile.CloudItem{Name: "a.md", URL: path}))
	assert.NoFileExists(t, path+notDownloadedExt)
}
