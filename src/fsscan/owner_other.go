//go:build windows

package fsscan

import "os"

// statOwner has no equivalent on Windows; FileStat.UID/GID are left zero.
func statOwner(info os.FileInfo) (uid, gid uint32, ok bool) {
	return 0, 0, false
}
