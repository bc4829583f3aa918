package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceLock_SingleInstance(t *testing.T) {
	dir := t.TempDir()

	l1 := New(dir)
	l2 := New(dir)

	require.NoError(t, l1.Acquire())

	err := l2.Acquire()
	require.ErrorIs(t, err, ErrAlreadyRunning)

	lockPath := filepath.Join(dir, fileName)
	assert.FileExists(t, lockPath)

	require.NoError(t, l1.Release())
	_, statErr := os.Stat(lockPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)

	require.NoError(t, l2.Acquire())
	t.Cleanup(func() { _ = l2.Release() })
}
