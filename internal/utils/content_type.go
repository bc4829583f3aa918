package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

// DetectContentType returns a best-effort MIME type for path, preferring
// the plain-text detection used for the note formats notesyncd watches.
func DetectContentType(path string) string {
	if isTextLike(path) {
		return "text/plain; charset=utf-8"
	}
	if mimeType := mime.TypeByExtension(filepath.Ext(path)); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}

func isTextLike(path string) bool {
	return strings.HasSuffix(path, ".md") ||
		strings.HasSuffix(path, ".markdown") ||
		strings.HasSuffix(path, ".txt")
}

// IsAcceptedNote reports whether path matches the single content type the
// local watcher filters on (§6): Markdown notes.
func IsAcceptedNote(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}
