package fsscan

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestScanEmptyContext(t *testing.T) {
	dir := t.TempDir()
	stats, err := Scan(dir, NewMatcher(dir))
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 0 {
		t.Fatalf("expected 0 stats for empty context, got %d", len(stats))
	}
}

func TestScanLexOrderAndCount(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), []byte("b"))
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("a"))
	writeFile(t, filepath.Join(dir, "sub", "c.txt"), []byte("c"))
	stats, err := Scan(dir, NewMatcher(dir))
	if err != nil {
		t.Fatal(err)
	}
	// a.txt, b.txt, sub, sub/c.txt = 4 entries
	if len(stats) != 4 {
		t.Fatalf("expected 4 entries, got %d: %+v", len(stats), stats)
	}
	for i := 1; i < len(stats); i++ {
		if stats[i-1].RelPath >= stats[i].RelPath {
			t.Fatalf("not in strict lex order: %s >= %s", stats[i-1].RelPath, stats[i].RelPath)
		}
	}
}

func TestScanHonorsGitignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".gitignore"), []byte("*.log\nbuild/\n"))
	writeFile(t, filepath.Join(dir, "keep.txt"), []byte("x"))
	writeFile(t, filepath.Join(dir, "debug.log"), []byte("x"))
	writeFile(t, filepath.Join(dir, "build", "out.bin"), []byte("x"))
	stats, err := Scan(dir, NewMatcher(dir))
	if err != nil {
		t.Fatal(err)
	}
	for _, st := range stats {
		if st.RelPath == "debug.log" || st.RelPath == "build" || st.RelPath == "build/out.bin" {
			t.Fatalf("expected %s to be excluded, stats: %+v", st.RelPath, stats)
		}
	}
	found := false
	for _, st := range stats {
		if st.RelPath == "keep.txt" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected keep.txt to survive scan: %+v", stats)
	}
}

func TestScanAlwaysExcludesGitDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/main"))
	writeFile(t, filepath.Join(dir, "main.go"), []byte("package main"))
	stats, err := Scan(dir, NewMatcher(dir))
	if err != nil {
		t.Fatal(err)
	}
	for _, st := range stats {
		if st.RelPath == ".git" || st.RelPath == ".git/HEAD" {
			t.Fatalf(".git should always be excluded: %+v", stats)
		}
	}
}

func TestHashContextStableAcrossRescans(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("hello"))
	h1, err := HashContext(dir, NewMatcher(dir))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashContext(dir, NewMatcher(dir))
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("HashContext not stable: %s != %s", h1, h2)
	}
}

func TestHashContextChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("hello"))
	h1, err := HashContext(dir, NewMatcher(dir))
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("hello world, much longer"))
	// Force a distinct mtime in case the filesystem's resolution is coarse.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(filepath.Join(dir, "a.txt"), future, future); err != nil {
		t.Fatal(err)
	}
	h2, err := HashContext(dir, NewMatcher(dir))
	if err != nil {
		t.Fatal(err)
	}
	if h1 == h2 {
		t.Fatal("expected HashContext to change when file content/size changes")
	}
}

func TestChunkReaderBoundaries(t *testing.T) {
	dir := t.TempDir()

	// 0-byte file: zero real chunks, caller sends one terminator.
	zeroPath := filepath.Join(dir, "zero")
	writeFile(t, zeroPath, nil)
	cr, err := OpenChunks(zeroPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cr.Next(); err != io.EOF {
		t.Fatalf("expected immediate io.EOF for 0-byte file, got %v", err)
	}
	cr.Close()

	// Exactly ChunkSize: one full chunk, then EOF.
	exactPath := filepath.Join(dir, "exact")
	writeFile(t, exactPath, make([]byte, ChunkSize))
	cr, err = OpenChunks(exactPath)
	if err != nil {
		t.Fatal(err)
	}
	chunk, err := cr.Next()
	if err != nil || len(chunk) != ChunkSize {
		t.Fatalf("expected one full %d-byte chunk, got %d bytes err=%v", ChunkSize, len(chunk), err)
	}
	if _, err := cr.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after exact chunk, got %v", err)
	}
	cr.Close()

	// ChunkSize+1: full chunk then a 1-byte chunk, then EOF.
	overPath := filepath.Join(dir, "over")
	writeFile(t, overPath, make([]byte, ChunkSize+1))
	cr, err = OpenChunks(overPath)
	if err != nil {
		t.Fatal(err)
	}
	c1, err := cr.Next()
	if err != nil || len(c1) != ChunkSize {
		t.Fatalf("expected full chunk first, got %d err=%v", len(c1), err)
	}
	c2, err := cr.Next()
	if err != nil || len(c2) != 1 {
		t.Fatalf("expected 1-byte final chunk, got %d err=%v", len(c2), err)
	}
	if _, err := cr.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after final short chunk, got %v", err)
	}
	cr.Close()
}
