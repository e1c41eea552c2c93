package filesync

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/DiverOfDark/peelbox/src/fsscan"
	"github.com/DiverOfDark/peelbox/src/wire"
)

// pipeStream connects a Provider and a consumer in-process over buffered
// channels, standing in for the gRPC stream the rpc package provides.
type pipeStream struct {
	out chan *wire.Packet
	in  chan *wire.Packet
}

func newPipe() (a, b *pipeStream) {
	c1 := make(chan *wire.Packet, 64)
	c2 := make(chan *wire.Packet, 64)
	return &pipeStream{out: c1, in: c2}, &pipeStream{out: c2, in: c1}
}

func (p *pipeStream) Send(pkt *wire.Packet) error {
	p.out <- pkt
	return nil
}

func (p *pipeStream) Recv() (*wire.Packet, error) {
	return <-p.in, nil
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiffCopyRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), []byte("hello"))
	writeFile(t, filepath.Join(src, "sub", "b.txt"), []byte("world"))

	provider := NewProvider(src, fsscan.NewMatcher(src))
	providerSide, consumerSide := newPipe()

	var wg sync.WaitGroup
	wg.Add(1)
	var serveErr error
	go func() {
		defer wg.Done()
		serveErr = provider.Serve(providerSide)
	}()

	dest := t.TempDir()
	stats, err := DiffCopy(consumerSide, dest)
	if err != nil {
		t.Fatal(err)
	}
	wg.Wait()
	if serveErr != nil {
		t.Fatalf("Serve returned error: %v", serveErr)
	}
	if len(stats) != 3 {
		t.Fatalf("expected 3 entries (a.txt, sub, sub/b.txt), got %d: %+v", len(stats), stats)
	}

	gotA, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	if err != nil || string(gotA) != "hello" {
		t.Fatalf("a.txt mismatch: %q err=%v", gotA, err)
	}
	gotB, err := os.ReadFile(filepath.Join(dest, "sub", "b.txt"))
	if err != nil || string(gotB) != "world" {
		t.Fatalf("sub/b.txt mismatch: %q err=%v", gotB, err)
	}
}

func TestDiffCopyEmptyContext(t *testing.T) {
	src := t.TempDir()
	provider := NewProvider(src, fsscan.NewMatcher(src))
	providerSide, consumerSide := newPipe()

	go provider.Serve(providerSide)

	dest := t.TempDir()
	stats, err := DiffCopy(consumerSide, dest)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 0 {
		t.Fatalf("expected 0 entries, got %d", len(stats))
	}
}

func TestPushFileRoundTrip(t *testing.T) {
	src := t.TempDir()
	path := filepath.Join(src, "artifact.bin")
	writeFile(t, path, make([]byte, fsscan.ChunkSize+10))

	a, b := newPipe()
	go PushFile(a, path, "artifact.bin")

	pkt, err := b.Recv()
	if err != nil || pkt.Type != wire.PacketStat {
		t.Fatalf("expected leading STAT, got %+v err=%v", pkt, err)
	}
	if pkt.Stat.Size != fsscan.ChunkSize+10 {
		t.Fatalf("unexpected size in stat: %d", pkt.Stat.Size)
	}

	var total int
	for {
		pkt, err := b.Recv()
		if err != nil {
			t.Fatal(err)
		}
		if pkt.Type == wire.PacketFin {
			break
		}
		if pkt.Type != wire.PacketData {
			t.Fatalf("unexpected packet type %d", pkt.Type)
		}
		if len(pkt.Data) == 0 {
			continue
		}
		total += len(pkt.Data)
	}
	if total != fsscan.ChunkSize+10 {
		t.Fatalf("expected %d total bytes, got %d", fsscan.ChunkSize+10, total)
	}
}
