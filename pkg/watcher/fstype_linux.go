//go:build linux

package watcher

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Superblock magic numbers from linux/magic.h.
const (
	nfsSuperMagic   = 0x6969
	smbSuperMagic   = 0x517B
	cifsMagicNumber = 0xFF534D42
	smb2MagicNumber = 0xFE534D42
	fuseSuperMagic  = 0x65735546
)

func detectFilesystemType(path string) FilesystemType {
	p := path
	for {
		if _, err := os.Stat(p); err == nil {
			break
		}
		parent := filepath.Dir(p)
		if parent == p {
			return FSTypeUnknown
		}
		p = parent
	}

	var st unix.Statfs_t
	if err := unix.Statfs(p, &st); err != nil {
		return FSTypeUnknown
	}

	switch uint32(st.Type) {
	case nfsSuperMagic:
		return FSTypeNFS
	case smbSuperMagic, cifsMagicNumber, smb2MagicNumber:
		return FSTypeSMB
	case fuseSuperMagic:
		// sshfs is the common FUSE mount for shared graphs; both poll.
		if isSSHFSMount(p) {
			return FSTypeSSHFS
		}
		return FSTypeFUSE
	default:
		return FSTypeLocal
	}
}

// isSSHFSMount reports whether the longest /proc/mounts entry covering path
// is an sshfs mount.
func isSSHFSMount(path string) bool {
	data, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	best, bestType := "", ""
	for _, m := range parseMounts(string(data)) {
		if within(abs, m.dir) && len(m.dir) > len(best) {
			best, bestType = m.dir, m.fsType
		}
	}
	return bestType == "fuse.sshfs" || bestType == "sshfs"
}
