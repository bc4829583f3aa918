package iocoord

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// preservedNamePattern matches a name that already carries a preserved-copy
// suffix, e.g. "notes_3" in "notes_3.md".
var preservedNamePattern = regexp.MustCompile(`^(.*)_(\d+)$`)

// GeneratePreservedName produces the next available "stem_N.ext" name for
// base, probing the filesystem via exists until it finds a name that is
// not already taken. If base's stem already ends in "_N", the probe
// continues from N+1 rather than restarting at 1.
func GeneratePreservedName(base string, exists func(name string) bool) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	n := 1
	if m := preservedNamePattern.FindStringSubmatch(stem); m != nil {
		stem = m[1]
		if parsed, err := strconv.Atoi(m[2]); err == nil {
			n = parsed + 1
		}
	}

	for {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if !exists(candidate) {
			return candidate
		}
		n++
	}
}
