// Package lock guards against two notesyncd daemons racing the same local
// directory. Grounded on the teacher's Workspace.Lock/Unlock pair
// (internal/client/workspace/workspace.go).
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/notewell/notesync/internal/utils"
)

var ErrAlreadyRunning = errors.New("lock: another notesyncd instance holds this directory")

const fileName = ".notesync.lock"

// InstanceLock wraps a single flock.Flock file placed inside the watched
// local directory.
type InstanceLock struct {
	fl *flock.Flock
}

func New(localDir string) *InstanceLock {
	return &InstanceLock{fl: flock.New(filepath.Join(localDir, fileName))}
}

// Acquire takes the lock or returns ErrAlreadyRunning. It never blocks.
func (l *InstanceLock) Acquire() error {
	if err := utils.EnsureDir(filepath.Dir(l.fl.Path())); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	locked, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return ErrAlreadyRunning
	}
	return nil
}

// Release unlocks and removes the lock file, a no-op if this process never
// held it.
func (l *InstanceLock) Release() error {
	if !l.fl.Locked() {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release instance lock: %w", err)
	}
	return os.Remove(l.fl.Path())
}
