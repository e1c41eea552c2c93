package llb

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DiverOfDark/peelbox/src/digest"
	"github.com/DiverOfDark/peelbox/src/specfmt"
	"github.com/DiverOfDark/peelbox/src/wire"
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

func sampleSpec() specfmt.BuildSpec {
	return specfmt.BuildSpec{
		Build: specfmt.BuildStage{
			Packages: []string{"gcc", "make"},
			Commands: []string{"make build"},
			Env:      map[string]string{"CGO_ENABLED": "0"},
			Cache:    []string{"/root/.cache"},
		},
		Runtime: specfmt.RuntimeStage{
			Packages: []string{"ca-certificates"},
			Copy:     []specfmt.CopyEntry{{From: "/src/app", To: "app"}},
		},
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), []byte("package main"))

	b1 := New("ctx").SetContextPath(dir).SetProjectName("myproj")
	out1, err := Compile(b1, sampleSpec())
	if err != nil {
		t.Fatal(err)
	}

	b2 := New("ctx").SetContextPath(dir).SetProjectName("myproj")
	out2, err := Compile(b2, sampleSpec())
	if err != nil {
		t.Fatal(err)
	}

	if string(out1) != string(out2) {
		t.Fatal("Compile is not deterministic across identical inputs")
	}
}

func TestCompileRoundTripsAndEndsInReference(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), []byte("package main"))

	b := New("ctx").SetContextPath(dir).SetProjectName("myproj")
	out, err := Compile(b, sampleSpec())
	if err != nil {
		t.Fatal(err)
	}

	var def wire.Definition
	if err := def.Unmarshal(out); err != nil {
		t.Fatal(err)
	}
	if len(def.Ops) != len(def.Digests) {
		t.Fatalf("Ops/Digests length mismatch: %d vs %d", len(def.Ops), len(def.Digests))
	}

	var last wire.Op
	if err := last.Unmarshal(def.Ops[len(def.Ops)-1]); err != nil {
		t.Fatal(err)
	}
	if last.Kind != wire.KindReference {
		t.Fatalf("expected last op to be a Reference, got kind %d", last.Kind)
	}
	if len(last.Inputs) != 1 {
		t.Fatalf("expected Reference to have exactly one input, got %d", len(last.Inputs))
	}
}

func TestCompileDigestsMatchReencoding(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), []byte("package main"))

	b := New("ctx").SetContextPath(dir).SetProjectName("myproj")
	out, err := Compile(b, sampleSpec())
	if err != nil {
		t.Fatal(err)
	}
	var def wire.Definition
	if err := def.Unmarshal(out); err != nil {
		t.Fatal(err)
	}
	for i, opBytes := range def.Ops {
		want := def.Digests[i]
		got := string(digest.Of(opBytes))
		if got != want {
			t.Fatalf("op %d: recorded digest %s does not match re-hash %s", i, want, got)
		}
	}
}

func TestCompileRequiresContextPath(t *testing.T) {
	b := New("ctx")
	if _, err := Compile(b, sampleSpec()); err == nil {
		t.Fatal("expected error when context path is unset")
	}
}

func TestCompileWiresContextIntoBuildCommands(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), []byte("package main"))

	b := New("ctx").SetContextPath(dir).SetProjectName("myproj")
	out, err := Compile(b, sampleSpec())
	if err != nil {
		t.Fatal(err)
	}

	var def wire.Definition
	if err := def.Unmarshal(out); err != nil {
		t.Fatal(err)
	}

	var contextDigest string
	for i, opBytes := range def.Ops {
		var op wire.Op
		if err := op.Unmarshal(opBytes); err != nil {
			t.Fatal(err)
		}
		if op.Kind == wire.KindSource && strings.HasPrefix(op.Source.Identifier, "local://") {
			contextDigest = def.Digests[i]
		}
	}
	if contextDigest == "" {
		t.Fatal("expected a local:// context Source op in the compiled Definition")
	}

	referenced := false
	var buildExecMounted bool
	for _, opBytes := range def.Ops {
		var op wire.Op
		if err := op.Unmarshal(opBytes); err != nil {
			t.Fatal(err)
		}
		for _, in := range op.Inputs {
			if in.Digest == contextDigest {
				referenced = true
			}
		}
		if op.Kind == wire.KindExec {
			for _, m := range op.Exec.Mounts {
				if m.Dest == "/build" {
					buildExecMounted = true
				}
			}
		}
	}
	if !referenced {
		t.Fatal("expected the context Source op's digest to appear in some op's Inputs, but it is a dead node")
	}
	if !buildExecMounted {
		t.Fatal("expected at least one build-command Exec to mount the context at /build")
	}
}

func TestCacheIDIsProjectScopedAndNormalized(t *testing.T) {
	a := CacheID("proj", "/root/.cache/")
	b := CacheID("proj", "root/.cache")
	if a != b {
		t.Fatalf("expected normalized paths to collide: %s != %s", a, b)
	}
	other := CacheID("other", "/root/.cache")
	if a == other {
		t.Fatal("expected cache id to be project-scoped")
	}
}
