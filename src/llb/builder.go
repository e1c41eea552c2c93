// Package llb compiles a declarative specfmt.BuildSpec into the
// content-addressed operation graph the daemon executes (spec.md §4.1).
// It is grounded on please's src/remote/action.go: that file builds a
// Bazel remote-execution Action/Command/Digest graph from a BuildTarget
// the same way this package builds an Op/Definition graph from a
// BuildSpec — construct leaf inputs first, thread digests forward,
// compute a final root digest.
package llb

import (
	"fmt"

	"github.com/DiverOfDark/peelbox/src/digest"
	"github.com/DiverOfDark/peelbox/src/logging"
	"github.com/DiverOfDark/peelbox/src/wire"
)

var log = logging.MustGetLogger("llb")

// Builder accumulates ops for a single build and emits the serialized
// Definition the daemon consumes. A Builder is created per build, mutated
// only by sequential AddOp calls, and discarded after Compile
// (spec.md §3 "Lifecycles").
type Builder struct {
	contextName string
	contextPath string
	projectName string
	sessionID   string
	buildBase   string
	runtimeBase string

	ops      [][]byte
	digests  []string
	metadata []string
}

// New creates a Builder for the named local context (the key under which
// a FileSync provider must be registered on the session, spec.md §3
// invariant "local:// source ops require a FileSync provider").
func New(contextName string) *Builder {
	return &Builder{
		contextName: contextName,
		projectName: "default",
		buildBase:   DefaultBuildBase,
		runtimeBase: DefaultRuntimeBase,
	}
}

// SetContextPath sets the on-disk directory the local:// source resolves to.
func (b *Builder) SetContextPath(path string) *Builder { b.contextPath = path; return b }

// SetProjectName sets the project identity used to derive deterministic
// cache mount ids (spec.md §4.1 "Cache-mount identity"). An empty name
// defaults to "default" (spec.md §4.1 "Failure semantics"), which is
// logged since it silently changes cache ids across projects.
func (b *Builder) SetProjectName(name string) *Builder {
	if name == "" {
		log.Warning("project_name unset, defaulting to %q; cache ids will not be project-scoped", "default")
		name = "default"
	}
	b.projectName = name
	return b
}

// SetSessionID records the session this Definition will be submitted
// under; it is not encoded into the graph itself, and Compile neither
// reads nor checks it.
func (b *Builder) SetSessionID(id string) *Builder { b.sessionID = id; return b }

// SetImages overrides the default build-stage and runtime-stage base
// image references (spec.md §4.1 step 1, "build base image" and
// "runtime glibc base").
func (b *Builder) SetImages(buildBase, runtimeBase string) *Builder {
	if buildBase != "" {
		b.buildBase = buildBase
	}
	if runtimeBase != "" {
		b.runtimeBase = runtimeBase
	}
	return b
}

// AddOp records op at the next index, defaulting its platform and
// computing its digest (spec.md §4.1 "Op insertion").
func (b *Builder) AddOp(op wire.Op) (int, digest.Digest, error) {
	if op.Platform.IsZero() {
		op.Platform = wire.DefaultPlatform()
	}
	enc, err := op.Marshal()
	if err != nil {
		return 0, "", fmt.Errorf("encoding op: %w", err)
	}
	d := digest.Of(enc)
	i := len(b.ops)
	b.ops = append(b.ops, enc)
	b.digests = append(b.digests, string(d))
	b.metadata = append(b.metadata, "")
	return i, d, nil
}

// Digest returns the digest recorded for op index i.
func (b *Builder) Digest(i int) digest.Digest { return digest.Digest(b.digests[i]) }

// Definition serializes everything added so far.
func (b *Builder) Definition() ([]byte, error) {
	def := wire.Definition{Ops: b.ops, Digests: b.digests, Metadata: b.metadata}
	return def.Marshal()
}
