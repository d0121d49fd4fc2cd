package watcher

import (
	"path/filepath"
	"strings"
)

type mountEntry struct {
	dir    string
	fsType string
}

// parseMounts reads /proc/mounts formatted text. Octal escapes for spaces in
// mount points are decoded.
func parseMounts(text string) []mountEntry {
	var mounts []mountEntry
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		dir := strings.NewReplacer(`\040`, " ", `\011`, "\t").Replace(fields[1])
		mounts = append(mounts, mountEntry{dir: dir, fsType: fields[2]})
	}
	return mounts
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	if dir == "/" {
		return true
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, "../"))
}
