package progress

import (
	"testing"

	"github.com/DiverOfDark/peelbox/src/wire"
)

func TestApplyTracksFirstSeenOrder(t *testing.T) {
	tr := New()
	tr.Apply(&wire.StatusResponse{Vertexes: []wire.Vertex{
		{Digest: "a", Name: "first"},
		{Digest: "b", Name: "second"},
	}})
	tr.Apply(&wire.StatusResponse{Vertexes: []wire.Vertex{
		{Digest: "a", Name: "first", Started: true},
	}})

	snap := tr.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 vertices, got %d", len(snap))
	}
	if snap[0].Digest != "a" || snap[1].Digest != "b" {
		t.Fatalf("expected first-seen order a,b, got %s,%s", snap[0].Digest, snap[1].Digest)
	}
	if !snap[0].Started {
		t.Fatal("expected vertex a to be marked started")
	}
}

func TestApplyIsIdempotentAcrossRepeatedState(t *testing.T) {
	tr := New()
	for i := 0; i < 3; i++ {
		tr.Apply(&wire.StatusResponse{Vertexes: []wire.Vertex{
			{Digest: "a", Name: "x", Started: true, Completed: i > 0},
		}})
	}
	snap := tr.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected exactly 1 tracked vertex, got %d", len(snap))
	}
	if !snap[0].Started || !snap[0].Completed {
		t.Fatalf("expected vertex to end up started and completed: %+v", snap[0])
	}
}

func TestFailedReportsErroredVertices(t *testing.T) {
	tr := New()
	tr.Apply(&wire.StatusResponse{Vertexes: []wire.Vertex{
		{Digest: "a", Name: "ok"},
		{Digest: "b", Name: "bad", Error: "exit status 1"},
	}})
	failed := tr.Failed()
	if len(failed) != 1 || failed[0].Digest != "b" {
		t.Fatalf("expected only vertex b reported failed, got %+v", failed)
	}
}

func TestAllCompletedRequiresEveryVertex(t *testing.T) {
	tr := New()
	if tr.AllCompleted() {
		t.Fatal("expected AllCompleted false with no vertices yet")
	}
	tr.Apply(&wire.StatusResponse{Vertexes: []wire.Vertex{
		{Digest: "a", Completed: true},
		{Digest: "b", Completed: false},
	}})
	if tr.AllCompleted() {
		t.Fatal("expected AllCompleted false while b is incomplete")
	}
	tr.Apply(&wire.StatusResponse{Vertexes: []wire.Vertex{
		{Digest: "b", Completed: true},
	}})
	if !tr.AllCompleted() {
		t.Fatal("expected AllCompleted true once every vertex completes")
	}
}

func TestApplyAppendsLogsToExistingVertex(t *testing.T) {
	tr := New()
	tr.Apply(&wire.StatusResponse{Vertexes: []wire.Vertex{{Digest: "a"}}})
	tr.Apply(&wire.StatusResponse{Logs: []wire.VertexLog{
		{Vertex: "a", Msg: []byte("line one\n")},
		{Vertex: "a", Msg: []byte("line two\n")},
	}})
	snap := tr.Snapshot()
	if len(snap[0].Logs) != 2 {
		t.Fatalf("expected 2 log chunks, got %d", len(snap[0].Logs))
	}
}
