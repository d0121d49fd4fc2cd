//go:build !linux

package watcher

import "os"

// detectFilesystemType has no statfs magic to inspect on this platform; a
// path that exists is treated as local.
func detectFilesystemType(path string) FilesystemType {
	if _, err := os.Stat(path); err != nil {
		return FSTypeUnknown
	}
	return FSTypeLocal
}
