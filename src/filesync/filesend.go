package filesync

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/DiverOfDark/peelbox/src/fsscan"
	"github.com/DiverOfDark/peelbox/src/wire"
)

// ErrTarStreamUnimplemented is returned by TarStream: the daemon's tar
// transfer mode is not exercised by any Peelbox build path (the transfer
// Exec always captures a plain directory tree into /out), so there is
// nothing here to ground an implementation on.
var ErrTarStreamUnimplemented = errors.New("filesync: TarStream is unimplemented")

// PushFile sends a single file to the daemon over s: one STAT, then DATA
// chunks, then the empty-DATA terminator and a FIN (spec.md §4.4
// "FileSend", the inverse direction of Provider.Serve — content is pushed
// without waiting for a REQ). Used for delivering the final build
// artifact's FileSend session back to the caller.
func PushFile(s Stream, localPath, relPath string) error {
	fi, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("filesync: stating %s: %w", localPath, err)
	}
	cr, err := fsscan.OpenChunks(localPath)
	if err != nil {
		return fmt.Errorf("filesync: opening %s: %w", localPath, err)
	}
	defer cr.Close()

	st := wire.Stat{RelPath: relPath, Size: fi.Size(), Mode: uint32(fi.Mode().Perm())}
	if err := s.Send(&wire.Packet{Type: wire.PacketStat, Stat: &st}); err != nil {
		return fmt.Errorf("filesync: sending stat for %s: %w", relPath, err)
	}
	for {
		chunk, err := cr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("filesync: reading %s: %w", localPath, err)
		}
		if err := s.Send(&wire.Packet{Type: wire.PacketData, Data: chunk}); err != nil {
			return err
		}
	}
	if err := s.Send(&wire.Packet{Type: wire.PacketData, Data: []byte{}}); err != nil {
		return err
	}
	return s.Send(&wire.Packet{Type: wire.PacketFin})
}

// TarStream is named but not implemented; see ErrTarStreamUnimplemented.
func TarStream(Stream, string) error {
	return ErrTarStreamUnimplemented
}
