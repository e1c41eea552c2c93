package fsscan

import (
	"errors"
	"io"
	"os"
)

// ChunkSize is the maximum size of a single chunk FSScan hands to
// FileSync (spec.md §4.2 "each ≤ 1 MiB").
const ChunkSize = 1 << 20

// ChunkReader streams a single file as a sequence of chunks. It is not
// restartable (spec.md §4.2): once exhausted, open a new ChunkReader to
// re-read.
type ChunkReader struct {
	f    *os.File
	done bool
}

// OpenChunks opens absPath for chunked reading.
func OpenChunks(absPath string) (*ChunkReader, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	return &ChunkReader{f: f}, nil
}

// Next returns the next chunk, never larger than ChunkSize. Callers are
// expected to append their own implicit end-of-file signal once Next
// returns io.EOF (FileSync sends a final empty DATA packet for this,
// spec.md §4.3) — Next itself never synthesizes an empty chunk.
func (c *ChunkReader) Next() ([]byte, error) {
	if c.done {
		return nil, io.EOF
	}
	buf := make([]byte, ChunkSize)
	n, err := io.ReadFull(c.f, buf)
	if errors.Is(err, io.EOF) {
		c.done = true
		return nil, io.EOF
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	if n < ChunkSize {
		c.done = true
	}
	return buf[:n], nil
}

// Close releases the underlying file handle.
func (c *ChunkReader) Close() error {
	return c.f.Close()
}
