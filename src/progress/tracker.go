// Package progress aggregates the daemon's Status stream into per-vertex
// state a caller can poll or render (spec.md §4.5 "Progress Tracker"). It
// is grounded on please's src/core/progress.go (per-target progress
// inferred from streamed output, stored for later display) and
// src/cli/progress.go's mutable-state-plus-explicit-update discipline.
package progress

import (
	"sync"

	"github.com/DiverOfDark/peelbox/src/logging"
	"github.com/DiverOfDark/peelbox/src/wire"
)

var log = logging.MustGetLogger("progress")

// VertexState is the accumulated state of one LLB op across however many
// StatusResponse messages have mentioned it.
type VertexState struct {
	Digest    string
	Name      string
	Started   bool
	Completed bool
	Cached    bool
	Error     string
	Logs      [][]byte
}

// Tracker applies StatusResponse messages in arrival order and exposes a
// consistent snapshot at any point. All methods are safe for concurrent
// use: Apply is called from the goroutine draining Status while Snapshot
// may be called from a UI goroutine at any time.
type Tracker struct {
	mu    sync.Mutex
	byDig map[string]*VertexState
	order []string
}

func New() *Tracker {
	return &Tracker{byDig: map[string]*VertexState{}}
}

// Apply folds one StatusResponse into the tracker's state, logging each
// transition (not-started→started, started→completed) exactly once
// regardless of how many times the daemon re-reports a vertex's current
// state (spec.md §4.5 "idempotent had-state-before checks").
func (t *Tracker) Apply(sr *wire.StatusResponse) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, v := range sr.Vertexes {
		st, hadStateBefore := t.byDig[v.Digest]
		if !hadStateBefore {
			st = &VertexState{Digest: v.Digest, Name: v.Name}
			t.byDig[v.Digest] = st
			t.order = append(t.order, v.Digest)
		}

		if v.Started && !st.Started {
			log.Info("started: %s", v.Name)
		}
		if v.Completed && !st.Completed {
			if v.Cached {
				log.Info("cached: %s", v.Name)
			} else {
				log.Info("done: %s", v.Name)
			}
		}
		if v.Error != "" && st.Error == "" {
			log.Error("failed: %s: %s", v.Name, v.Error)
		}

		st.Name = v.Name
		st.Started = st.Started || v.Started
		st.Completed = st.Completed || v.Completed
		st.Cached = st.Cached || v.Cached
		if v.Error != "" {
			st.Error = v.Error
		}
	}

	for _, l := range sr.Logs {
		if st, ok := t.byDig[l.Vertex]; ok {
			st.Logs = append(st.Logs, l.Msg)
		}
	}
}

// Snapshot returns every known vertex's current state, in first-seen order.
func (t *Tracker) Snapshot() []VertexState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]VertexState, 0, len(t.order))
	for _, dig := range t.order {
		out = append(out, *t.byDig[dig])
	}
	return out
}

// Failed returns the vertices, if any, that reported an error.
func (t *Tracker) Failed() []VertexState {
	var out []VertexState
	for _, st := range t.Snapshot() {
		if st.Error != "" {
			out = append(out, st)
		}
	}
	return out
}

// AllCompleted reports whether every known vertex has finished.
func (t *Tracker) AllCompleted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.byDig) == 0 {
		return false
	}
	for _, st := range t.byDig {
		if !st.Completed {
			return false
		}
	}
	return true
}
