// Package filesync implements the FileSync pull-mode transfer protocol
// (spec.md §4.3): a provider lists every entry of a local context as a
// sequence of STAT packets terminated by an empty sentinel STAT, then
// serves file content on demand as the consumer issues REQ packets by
// implicit (stream-position) id.
//
// It is grounded on please's src/remote/fs package, which streams build
// output blobs to/from a remote execution service over a similar
// request/chunk discipline, and on src/fs/hash.go's "stat everything up
// front, read content lazily" split.
package filesync

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/DiverOfDark/peelbox/src/fsscan"
	"github.com/DiverOfDark/peelbox/src/logging"
	"github.com/DiverOfDark/peelbox/src/wire"
)

var log = logging.MustGetLogger("filesync")

// Stream is the minimal bidirectional packet transport DiffCopy and Serve
// need; the rpc package's hand-written packetStream implements it over a
// gRPC stream.
type Stream interface {
	Send(*wire.Packet) error
	Recv() (*wire.Packet, error)
}

// Provider serves one named local context. Only one DiffCopy may run
// against a Provider at a time (spec.md §4.3 "Concurrency"): a Session
// hosts one Provider per registered context name and DiffCopy calls for
// the same context are serialized against each other.
type Provider struct {
	mu   sync.Mutex
	root string
	m    *fsscan.Matcher
}

// NewProvider creates a Provider rooted at root, honoring m's exclusions.
func NewProvider(root string, m *fsscan.Matcher) *Provider {
	return &Provider{root: root, m: m}
}

// Serve runs the provider side of the protocol to completion: list, then
// serve REQ'd content until the consumer sends FIN.
func (p *Provider) Serve(s Stream) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats, err := fsscan.Scan(p.root, p.m)
	if err != nil {
		return fmt.Errorf("filesync: scanning %s: %w", p.root, err)
	}
	for _, st := range stats {
		ws := toWireStat(st)
		if err := s.Send(&wire.Packet{Type: wire.PacketStat, Stat: &ws}); err != nil {
			return fmt.Errorf("filesync: sending stat for %s: %w", st.RelPath, err)
		}
	}
	// Sentinel: an empty Stat marks the end of metadata (spec.md §4.3
	// ordering guarantee "all STATs before sentinel STAT before any DATA").
	if err := s.Send(&wire.Packet{Type: wire.PacketStat, Stat: &wire.Stat{}}); err != nil {
		return fmt.Errorf("filesync: sending sentinel stat: %w", err)
	}

	for {
		req, err := s.Recv()
		if err != nil {
			return fmt.Errorf("filesync: receiving request: %w", err)
		}
		switch req.Type {
		case wire.PacketFin:
			log.Debug("filesync: consumer finished, %d entries served", len(stats))
			return nil
		case wire.PacketReq:
			if err := p.serveOne(s, stats, req.ID); err != nil {
				return err
			}
		default:
			return fmt.Errorf("filesync: unexpected packet type %d while serving", req.Type)
		}
	}
}

func (p *Provider) serveOne(s Stream, stats []fsscan.FileStat, id uint32) error {
	if int(id) >= len(stats) {
		return s.Send(&wire.Packet{Type: wire.PacketErr, ID: id, Data: []byte("filesync: unknown file id")})
	}
	st := stats[id]
	if st.IsDir || st.Linkname != "" {
		// No content to stream; a single empty DATA closes it out.
		return s.Send(&wire.Packet{Type: wire.PacketData, ID: id, Data: []byte{}})
	}
	cr, err := fsscan.OpenChunks(st.AbsPath)
	if err != nil {
		return s.Send(&wire.Packet{Type: wire.PacketErr, ID: id, Data: []byte(err.Error())})
	}
	defer cr.Close()
	for {
		chunk, err := cr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return s.Send(&wire.Packet{Type: wire.PacketErr, ID: id, Data: []byte(err.Error())})
		}
		if err := s.Send(&wire.Packet{Type: wire.PacketData, ID: id, Data: chunk}); err != nil {
			return err
		}
	}
	return s.Send(&wire.Packet{Type: wire.PacketData, ID: id, Data: []byte{}})
}

// DiffCopy runs the consumer side of the protocol: read every STAT up to
// the sentinel, then under destRoot create directories and symlinks
// directly and REQ and write every other entry, finally signalling FIN.
func DiffCopy(s Stream, destRoot string) ([]fsscan.FileStat, error) {
	var stats []fsscan.FileStat
	for {
		pkt, err := s.Recv()
		if err != nil {
			return nil, fmt.Errorf("filesync: receiving stat: %w", err)
		}
		if pkt.Type != wire.PacketStat {
			return nil, fmt.Errorf("filesync: expected STAT, got packet type %d", pkt.Type)
		}
		if pkt.Stat.RelPath == "" {
			break // sentinel
		}
		stats = append(stats, fromWireStat(*pkt.Stat))
	}

	for id, st := range stats {
		dest := filepath.Join(destRoot, filepath.FromSlash(st.RelPath))
		if st.IsDir {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return nil, fmt.Errorf("filesync: creating %s: %w", dest, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return nil, fmt.Errorf("filesync: creating %s: %w", filepath.Dir(dest), err)
		}
		if st.Linkname != "" {
			if err := os.Symlink(st.Linkname, dest); err != nil {
				return nil, fmt.Errorf("filesync: symlinking %s: %w", dest, err)
			}
			continue
		}
		if err := s.Send(&wire.Packet{Type: wire.PacketReq, ID: uint32(id)}); err != nil {
			return nil, fmt.Errorf("filesync: requesting %s: %w", st.RelPath, err)
		}
		if err := receiveFile(s, dest, uint32(id)); err != nil {
			return nil, err
		}
	}

	if err := s.Send(&wire.Packet{Type: wire.PacketFin}); err != nil {
		return nil, fmt.Errorf("filesync: sending fin: %w", err)
	}
	return stats, nil
}

func receiveFile(s Stream, dest string, id uint32) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("filesync: creating %s: %w", dest, err)
	}
	defer f.Close()
	for {
		pkt, err := s.Recv()
		if err != nil {
			return fmt.Errorf("filesync: receiving data for %s: %w", dest, err)
		}
		switch pkt.Type {
		case wire.PacketErr:
			return fmt.Errorf("filesync: provider error for %s: %s", dest, string(pkt.Data))
		case wire.PacketData:
			if pkt.ID != id {
				return fmt.Errorf("filesync: data id mismatch for %s: got %d want %d", dest, pkt.ID, id)
			}
			if len(pkt.Data) == 0 {
				return nil // terminator
			}
			if _, err := f.Write(pkt.Data); err != nil {
				return fmt.Errorf("filesync: writing %s: %w", dest, err)
			}
		default:
			return fmt.Errorf("filesync: unexpected packet type %d receiving data", pkt.Type)
		}
	}
}

func toWireStat(st fsscan.FileStat) wire.Stat {
	return wire.Stat{
		RelPath:  st.RelPath,
		Size:     st.Size,
		Mode:     st.Mode,
		UID:      st.UID,
		GID:      st.GID,
		ModTime:  st.ModTime,
		Linkname: st.Linkname,
		IsDir:    st.IsDir,
	}
}

func fromWireStat(s wire.Stat) fsscan.FileStat {
	return fsscan.FileStat{
		RelPath:  s.RelPath,
		Size:     s.Size,
		Mode:     s.Mode,
		UID:      s.UID,
		GID:      s.GID,
		ModTime:  s.ModTime,
		Linkname: s.Linkname,
		IsDir:    s.IsDir,
	}
}
