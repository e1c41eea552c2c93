// Package fsscan provides the deterministic directory walk and on-demand
// chunked reads FileSync needs to mirror a local context tree to the
// daemon (spec.md §4.2). It is grounded on please's src/fs package: the
// same directory-walking library (karrick/godirwalk) and the same
// "translate mode bits, don't trust raw os.FileInfo" discipline fs/hash.go
// uses, generalized to the daemon's filesystem encoding instead of a
// plain content hash.
package fsscan

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/karrick/godirwalk"

	"github.com/DiverOfDark/peelbox/src/logging"
)

var log = logging.MustGetLogger("fsscan")

// Daemon filesystem mode bits (spec.md §3 FileStat): NOT raw Unix st_mode.
const (
	modeDir     uint32 = 0x80000000
	modeSymlink uint32 = 0x08000000
	modePerm    uint32 = 0x1FF // low 9 bits
)

// FileStat is one entry of a context scan (spec.md §3).
type FileStat struct {
	RelPath  string
	AbsPath  string
	Size     int64
	Mode     uint32
	UID      uint32
	GID      uint32
	ModTime  int64 // unix seconds
	Linkname string
	IsDir    bool
}

// Scan walks root and returns every entry (directories, symlinks, regular
// files) in strict lexicographic order of RelPath, honoring m. The root
// itself is never included (spec.md §4.2 "Omit the root itself").
func Scan(root string, m *Matcher) ([]FileStat, error) {
	root = filepath.Clean(root)
	var stats []FileStat
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == root {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			isDir := de.IsDir()
			if m.Excluded(rel, isDir) {
				if isDir {
					return filepath.SkipDir
				}
				return nil
			}
			info, err := os.Lstat(path)
			if err != nil {
				return err
			}
			st, err := toFileStat(root, rel, path, info)
			if err != nil {
				return err
			}
			stats = append(stats, st)
			return nil
		},
		Unsorted: true, // we sort explicitly below for an explicit, total order
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].RelPath < stats[j].RelPath })
	log.Debug("scanned %s: %d entries", root, len(stats))
	return stats, nil
}

func toFileStat(root, rel, abs string, info os.FileInfo) (FileStat, error) {
	st := FileStat{
		RelPath: rel,
		AbsPath: abs,
		ModTime: info.ModTime().Unix(),
		IsDir:   info.IsDir(),
	}
	perm := uint32(info.Mode().Perm()) & modePerm
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		dest, err := os.Readlink(abs)
		if err != nil {
			return FileStat{}, err
		}
		st.Linkname = dest
		st.Mode = modeSymlink | perm
	case info.IsDir():
		st.Mode = modeDir | perm
	default:
		st.Size = info.Size()
		st.Mode = perm
	}
	if uid, gid, ok := statOwner(info); ok {
		st.UID, st.GID = uid, gid
	}
	return st, nil
}
