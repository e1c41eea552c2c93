package fsscan

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/DiverOfDark/peelbox/src/digest"
)

// HashContext computes the content hash used as the Local source op's
// "local.unique" attr (spec.md §4.2 "Context hash"): for every included
// entry, its relative path bytes, plus size and mtime for every entry that
// is not a directory (directories contribute their path only), so that content changes
// invalidate the cache even when the directory structure does not.
func HashContext(root string, m *Matcher) (digest.Digest, error) {
	stats, err := Scan(root, m)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	for _, st := range stats {
		h.Write([]byte(st.RelPath))
		if !st.IsDir {
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], uint64(st.Size))
			h.Write(buf[:])
			binary.LittleEndian.PutUint64(buf[:], uint64(st.ModTime))
			h.Write(buf[:])
		}
	}
	return digest.FromSum(h.Sum(nil)), nil
}
