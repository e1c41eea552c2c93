//go:build !windows

package fsscan

import (
	"os"
	"syscall"
)

// statOwner extracts the uid/gid of a file, following please's own
// fs_unix.go convention of reaching into info.Sys() for the platform-
// specific stat struct rather than re-stat-ing.
func statOwner(info os.FileInfo) (uid, gid uint32, ok bool) {
	s, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, false
	}
	return s.Uid, s.Gid, true
}
