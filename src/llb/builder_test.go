package llb

import (
	"testing"

	"github.com/DiverOfDark/peelbox/src/wire"
)

func TestAddOpDefaultsPlatform(t *testing.T) {
	b := New("ctx")
	i, dg, err := b.AddOp(wire.Op{Kind: wire.KindSource, Source: &wire.SourceOp{Identifier: "docker-image://x"}})
	if err != nil {
		t.Fatal(err)
	}
	if i != 0 {
		t.Fatalf("expected first op at index 0, got %d", i)
	}
	if dg == "" {
		t.Fatal("expected non-empty digest")
	}
	if b.Digest(0) != dg {
		t.Fatalf("Digest(0) = %s, want %s", b.Digest(0), dg)
	}
	var recorded wire.Op
	if err := recorded.Unmarshal(b.ops[0]); err != nil {
		t.Fatal(err)
	}
	if def := wire.DefaultPlatform(); recorded.Platform.OS != def.OS || recorded.Platform.Architecture != def.Architecture {
		t.Fatalf("expected unset platform to default to %s/%s, got %+v", def.OS, def.Architecture, recorded.Platform)
	}
}

func TestAddOpDigestsDifferForDifferentOps(t *testing.T) {
	b := New("ctx")
	_, d1, err := b.AddOp(wire.Op{Kind: wire.KindSource, Source: &wire.SourceOp{Identifier: "a"}})
	if err != nil {
		t.Fatal(err)
	}
	_, d2, err := b.AddOp(wire.Op{Kind: wire.KindSource, Source: &wire.SourceOp{Identifier: "b"}})
	if err != nil {
		t.Fatal(err)
	}
	if d1 == d2 {
		t.Fatal("expected different ops to produce different digests")
	}
}

func TestSetProjectNameDefaultsWhenEmpty(t *testing.T) {
	b := New("ctx").SetProjectName("")
	if b.projectName != "default" {
		t.Fatalf("expected default project name, got %q", b.projectName)
	}
}
