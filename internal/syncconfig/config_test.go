package syncconfig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesZeroValueConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	s, err := Open(path)
	require.NoError(t, err)

	assert.FileExists(t, path)
	assert.True(t, s.IsInitialSync())
}

func TestSetInitialSyncFinished_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.SetInitialSyncFinished(true))
	assert.False(t, s.IsInitialSync())

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.False(t, reopened.IsInitialSync())
}

func TestSetDirs_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.SetDirs("/notes", "/cloud"))

	cfg, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "/notes", cfg.LocalDir)
	assert.Equal(t, "/cloud", cfg.CloudDir)
}

func TestIsInitialSync_MissingFileDefaultsTrue(t *testing.T) {
	s := &Store{path: filepath.Join(t.TempDir(), "missing.yaml")}
	assert.True(t, s.IsInitialSync())
}
