package watch

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/notewell/notesync/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

// defaultIgnoreLines keeps the watchers from reacting to their own
// bookkeeping files and to the usual editor/OS noise.
var defaultIgnoreLines = []string{
	".notesyncignore",
	".notesync-tmp/",
	".notesync.lock",
	".Trash/",
	// IDE/editor
	".vscode",
	".idea",
	".git",
	"*.tmp",
	"*.log",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
}

// IgnoreList wraps a compiled gitignore matcher with an optional override
// file read from the watched directory's root.
type IgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string) *IgnoreList {
	return &IgnoreList{baseDir: baseDir}
}

func (l *IgnoreList) Load() {
	ignorePath := filepath.Join(l.baseDir, ".notesyncignore")
	lines := defaultIgnoreLines

	if utils.FileExists(ignorePath) {
		file, err := os.Open(ignorePath)
		if err != nil {
			slog.Warn("watch", "op", "load_ignore", "path", ignorePath, "error", err)
		} else {
			defer file.Close()
			scanner := bufio.NewScanner(file)
			rules := 0
			for scanner.Scan() {
				if line := scanner.Text(); line != "" {
					lines = append(lines, line)
					rules++
				}
			}
			slog.Info("watch", "op", "load_ignore", "path", ignorePath, "rules", rules)
		}
	}

	l.ignore = gitignore.CompileIgnoreLines(lines...)
}

func (l *IgnoreList) ShouldIgnore(path string) bool {
	if l.ignore == nil {
		l.Load()
	}
	return l.ignore.MatchesPath(path)
}
