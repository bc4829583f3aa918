package iocoord

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/notewell/notesync/internal/utils"
)

// LocalFS is the default LocalWriter: a plain directory on disk, the same
// root the local watcher observes.
type LocalFS struct {
	root   string
	tmpDir string
}

// NewLocalFS builds a LocalFS rooted at root. A ".notesync-tmp" directory
// under root holds the temp files used for atomic writes; its name is on
// the ignore list the local watcher applies so the rename-in doesn't
// trigger a spurious didUpdate.
func NewLocalFS(root string) *LocalFS {
	return &LocalFS{root: root, tmpDir: filepath.Join(root, ".notesync-tmp")}
}

func (fs *LocalFS) abs(name string) string {
	return filepath.Join(fs.root, name)
}

// WriteAtomic writes body to a temp file in tmpDir, syncs and renames it
// into place, then stamps the destination's mtime to modTime so the next
// local snapshot compares equal to the cloud metadata that produced it.
func (fs *LocalFS) WriteAtomic(name string, body []byte, modTime time.Time) error {
	path := fs.abs(name)

	if err := utils.EnsureParent(path); err != nil {
		return fmt.Errorf("ensure parent: %w", err)
	}
	if err := utils.EnsureDir(fs.tmpDir); err != nil {
		return fmt.Errorf("ensure temp dir: %w", err)
	}

	tempFile, err := os.CreateTemp(fs.tmpDir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(body); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	success = true

	if err := os.Chtimes(path, modTime, modTime); err != nil {
		return fmt.Errorf("stamp mtime on %s: %w", path, err)
	}
	return nil
}

func (fs *LocalFS) ReadBytes(name string) ([]byte, error) {
	return os.ReadFile(fs.abs(name))
}

func (fs *LocalFS) Remove(name string) error {
	err := os.Remove(fs.abs(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (fs *LocalFS) Rename(oldName, newName string) error {
	oldPath, newPath := fs.abs(oldName), fs.abs(newName)
	if err := utils.EnsureParent(newPath); err != nil {
		return fmt.Errorf("ensure parent: %w", err)
	}
	return os.Rename(oldPath, newPath)
}

func (fs *LocalFS) Exists(name string) bool {
	return utils.FileExists(fs.abs(name))
}
